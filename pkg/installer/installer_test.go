package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

func newTestInstaller(t *testing.T, r runner.Runner) *Installer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	in := NewInstaller(filepath.Join(t.TempDir(), "tools"), r, logger)
	in.retry.InitDelay = time.Millisecond
	return in
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadToolConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tools:
  sslscan:
    check_cmd: sslscan --version
    url: https://example.com/sslscan.zip
    extract_to: sslscan
  impacket:
    pip_install: impacket
`), 0644))

	tc, err := LoadToolConfig(path)
	require.NoError(t, err)
	require.Len(t, tc.Tools, 2)
	assert.Equal(t, "sslscan --version", tc.Tools["sslscan"].CheckCmd)
	assert.Equal(t, "impacket", tc.Tools["impacket"].PipInstall)

	_, err = LoadToolConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	in := newTestInstaller(t, &runner.FakeRunner{})
	dest := filepath.Join(in.toolsDir, "tool.zip")
	require.NoError(t, in.Download(context.Background(), srv.URL+"/tool.zip", dest))
	assert.Equal(t, int32(3), hits.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDownloadStopsOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	in := newTestInstaller(t, &runner.FakeRunner{})
	err := in.Download(context.Background(), srv.URL+"/missing.zip", filepath.Join(in.toolsDir, "x.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadGivesUpAfterThreeAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	in := newTestInstaller(t, &runner.FakeRunner{})
	err := in.Download(context.Background(), srv.URL, filepath.Join(in.toolsDir, "x.zip"))
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestEnsureToolsExtractsArchive(t *testing.T) {
	archive := zipBytes(t, map[string]string{"sslscan/sslscan": "#!/bin/sh\n", "README": "docs"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	t.Setenv("PATH", os.Getenv("PATH"))
	in := newTestInstaller(t, &runner.FakeRunner{})
	summary := in.EnsureTools(context.Background(), ToolConfig{Tools: map[string]Tool{
		"sslscan": {URL: srv.URL + "/sslscan.zip", ExtractTo: "sslscan"},
	}})

	assert.Equal(t, []string{"sslscan"}, summary.Installed)
	assert.Empty(t, summary.Failed)
	assert.FileExists(t, filepath.Join(in.toolsDir, "sslscan", "sslscan", "sslscan"))
	assert.FileExists(t, filepath.Join(in.toolsDir, "sslscan", "README"))
	assert.NoFileExists(t, filepath.Join(in.toolsDir, "sslscan.zip"))
}

func TestEnsureToolsSkipsPresentAndContinuesAfterFailure(t *testing.T) {
	t.Setenv("PATH", os.Getenv("PATH"))

	fake := &runner.FakeRunner{}
	in := newTestInstaller(t, fake)
	summary := in.EnsureTools(context.Background(), ToolConfig{Tools: map[string]Tool{
		"nmap":    {CheckCmd: "nmap -V"},
		"broken":  {},
		"ikescan": {URL: "http://127.0.0.1:0/nothing.zip", ExtractTo: "ike"},
	}})

	assert.Equal(t, []string{"nmap"}, summary.Present)
	assert.Empty(t, summary.Installed)
	assert.Contains(t, summary.Failed, "broken")
	assert.Contains(t, summary.Failed, "ikescan")

	first := fake.Commands[0]
	assert.Equal(t, in.toolsDir, first.Dir)
	assert.Equal(t, "nmap -V", first.Args[len(first.Args)-1])
}

func TestEnsureToolsPipInstallVerifiesAfterwards(t *testing.T) {
	t.Setenv("PATH", os.Getenv("PATH"))

	fake := &runner.FakeRunner{
		Default:   runner.FakeResponse{Err: &runner.ExitError{Code: 127}},
		Responses: map[string]runner.FakeResponse{pythonExe(): {}},
	}
	in := newTestInstaller(t, fake)
	summary := in.EnsureTools(context.Background(), ToolConfig{Tools: map[string]Tool{
		"impacket": {CheckCmd: "impacket-smbclient -h", PipInstall: "impacket"},
	}})

	require.Contains(t, summary.Failed, "impacket")
	assert.Contains(t, summary.Failed["impacket"].Error(), "post-install check")
	require.Len(t, fake.Commands, 3)
	assert.Equal(t, []string{"-m", "pip", "install", "impacket"}, fake.Commands[1].Args)
}

func TestPrependPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	in := newTestInstaller(t, &runner.FakeRunner{})

	require.NoError(t, in.PrependPath())
	require.NoError(t, in.PrependPath())

	abs, err := filepath.Abs(in.toolsDir)
	require.NoError(t, err)
	assert.Equal(t, abs+string(os.PathListSeparator)+"/usr/bin", os.Getenv("PATH"))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string]string{"../../evil.txt": "x"}), 0644))

	err := ExtractZip(src, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, ErrUnsafeArchive)
	assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))

	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0644))
	assert.Error(t, ExtractZip(src, filepath.Join(dir, "out")))
}

func TestArchiveExt(t *testing.T) {
	assert.Equal(t, ".msi", archiveExt("https://example.com/nmap-setup.MSI"))
	assert.Equal(t, ".exe", archiveExt("https://example.com/tool.exe?dl=1"))
	assert.Equal(t, ".zip", archiveExt("https://example.com/download"))
	assert.True(t, strings.HasSuffix(archiveExt("https://example.com/a.zip"), "zip"))
}
