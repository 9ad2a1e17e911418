package masking

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskIP(t *testing.T) {
	tests := map[string]string{
		"202.58.132.56":    "202.xx.xx.56",
		"202.58.132.56/24": "202.xx.xx.56/24",
		"10.0.0.0/8":       "10.xx.xx.0/8",
		"example.com":      "example.com",
		"fe80::1":          "fe80::1",
		"1.2.3":            "1.2.3",
		"1.2.3.4.5":        "1.2.3.4.5",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskIP(in), in)
	}
}

func TestProcess(t *testing.T) {
	var out strings.Builder
	stats, err := Process(strings.NewReader("202.58.132.56\n\n  10.1.2.0/24  \nhost.local\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "202.xx.xx.56\n10.xx.xx.0/24\nhost.local", out.String())
	assert.Equal(t, Stats{Masked: 2, Unchanged: 1, Empty: 1}, stats)
	assert.Equal(t, 4, stats.Total())
	assert.Equal(t, 3, stats.Written())
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scope.txt")
	out := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(in, []byte("192.168.10.20\r\n172.16.0.0/12\r\n"), 0644))

	stats, err := ProcessFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Masked)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "192.xx.xx.20\n172.xx.xx.0/12", string(data))
}

func TestProcessFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "output.txt")

	_, err := ProcessFile(filepath.Join(dir, "scope.txt"), out)
	assert.ErrorIs(t, err, ErrInputNotFound)
	assert.NoFileExists(t, out)
}
