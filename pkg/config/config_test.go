package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFileYAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: results\ncommand_timeout: 45s\n"), 0644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
	assert.Equal(t, "verification_report.xlsx", cfg.ReportFile)
	assert.Equal(t, "tools", cfg.ToolsDir)
}

func TestLoadConfigFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secops.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"report_file":"out.xlsx","skip_tool_install":true}`), 0644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "out.xlsx", cfg.ReportFile)
	assert.True(t, cfg.SkipToolInstall)
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadConfigFromFile(bad)
	assert.Error(t, err)
}

func TestSkipToolInstallFromEnv(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"1":     true,
		"t":     true,
		"false": false,
		"0":     false,
		"":      false,
		"yes":   false,
	}
	for value, want := range cases {
		t.Setenv(SkipToolInstallEnv, value)
		assert.Equal(t, want, SkipToolInstallFromEnv(), "value %q", value)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	type sample struct {
		Name  string   `json:"name" yaml:"name"`
		Ports []int    `json:"ports" yaml:"ports"`
		Tags  []string `json:"tags" yaml:"tags"`
	}
	in := sample{Name: "scope", Ports: []int{22, 443}, Tags: []string{"a"}}

	for _, name := range []string{"nested/out.yaml", "nested/out.json"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteFile(path, in))

		var out sample
		require.NoError(t, ReadFile(path, &out))
		assert.Equal(t, in, out)
		assert.True(t, FileExists(path))
	}
	assert.False(t, FileExists(t.TempDir()))
}
