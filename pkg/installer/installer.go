// Package installer makes sure the external tools used by the verifiers are
// present, downloading and unpacking them into the tools directory when not.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/retry"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// ErrUnsafeArchive is returned for archive entries that would escape the target directory
var ErrUnsafeArchive = errors.New("archive entry escapes target directory")

// Tool describes how to detect and install one tool
type Tool struct {
	CheckCmd   string `json:"check_cmd" yaml:"check_cmd"`
	URL        string `json:"url" yaml:"url"`
	InstallCmd string `json:"install_cmd" yaml:"install_cmd"`
	ExtractTo  string `json:"extract_to" yaml:"extract_to"`
	PipInstall string `json:"pip_install" yaml:"pip_install"`
}

// ToolConfig is the content of tool_config.yaml / tool_config.json
type ToolConfig struct {
	Tools map[string]Tool `json:"tools" yaml:"tools"`
}

// LoadToolConfig reads the installer definitions
func LoadToolConfig(filePath string) (ToolConfig, error) {
	var tc ToolConfig
	if err := config.ReadFile(filePath, &tc); err != nil {
		return tc, err
	}
	return tc, nil
}

// Summary lists the outcome of EnsureTools per tool name
type Summary struct {
	Present   []string
	Installed []string
	Failed    map[string]error
}

// Installer installs tools into a directory
type Installer struct {
	toolsDir string
	runner   runner.Runner
	client   *http.Client
	retry    retry.Config
	logger   *logrus.Logger
}

// NewInstaller creates an installer. Shell commands go through r.
func NewInstaller(toolsDir string, r runner.Runner, logger *logrus.Logger) *Installer {
	if logger == nil {
		logger = logrus.New()
	}
	in := &Installer{
		toolsDir: toolsDir,
		runner:   r,
		client:   &http.Client{Timeout: 30 * time.Second},
		retry:    retry.DownloadConfig(),
		logger:   logger,
	}
	in.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		in.logger.Warnf("Download attempt %d failed: %v, retrying in %s", attempt, err, delay)
	}
	return in
}

// PrependPath puts the tools directory first on PATH
func (in *Installer) PrependPath() error {
	abs, err := filepath.Abs(in.toolsDir)
	if err != nil {
		return err
	}
	current := os.Getenv("PATH")
	for _, p := range filepath.SplitList(current) {
		if p == abs {
			return nil
		}
	}
	return os.Setenv("PATH", abs+string(os.PathListSeparator)+current)
}

// EnsureTools checks every tool in tc and installs the missing ones. A failure
// for one tool is logged and recorded in the summary; the others still run.
func (in *Installer) EnsureTools(ctx context.Context, tc ToolConfig) Summary {
	summary := Summary{Failed: make(map[string]error)}

	if err := os.MkdirAll(in.toolsDir, 0755); err != nil {
		in.logger.Errorf("Failed to create tools directory: %v", err)
	}
	if err := in.PrependPath(); err != nil {
		in.logger.Warnf("Failed to add %s to PATH: %v", in.toolsDir, err)
	}

	names := make([]string, 0, len(tc.Tools))
	for name := range tc.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tool := tc.Tools[name]
		if tool.CheckCmd != "" && in.shell(ctx, tool.CheckCmd) == nil {
			in.logger.Infof("%s already installed", name)
			summary.Present = append(summary.Present, name)
			continue
		}

		in.logger.Infof("%s not found, installing", name)
		if err := in.install(ctx, name, tool); err != nil {
			in.logger.Errorf("Failed to install %s: %v", name, err)
			summary.Failed[name] = err
			continue
		}
		if tool.CheckCmd != "" {
			if err := in.shell(ctx, tool.CheckCmd); err != nil {
				in.logger.Errorf("%s installed but check failed: %v", name, err)
				summary.Failed[name] = fmt.Errorf("post-install check: %w", err)
				continue
			}
		}
		in.logger.Infof("%s installed successfully", name)
		summary.Installed = append(summary.Installed, name)
	}
	return summary
}

func (in *Installer) install(ctx context.Context, name string, tool Tool) error {
	switch {
	case tool.URL != "":
		file := filepath.Join(in.toolsDir, name+archiveExt(tool.URL))
		if err := in.Download(ctx, tool.URL, file); err != nil {
			return err
		}
		switch {
		case tool.InstallCmd != "":
			if err := in.shell(ctx, tool.InstallCmd); err != nil {
				return fmt.Errorf("install command: %w", err)
			}
		case tool.ExtractTo != "":
			if err := ExtractZip(file, in.extractDir(tool.ExtractTo)); err != nil {
				return err
			}
		default:
			return nil
		}
		// the download is only removed once it has been used
		return os.Remove(file)
	case tool.PipInstall != "":
		_, err := in.runner.Run(ctx, runner.Command{Name: pythonExe(), Args: []string{"-m", "pip", "install", tool.PipInstall}})
		return err
	}
	return errors.New("no url or pip_install configured")
}

func (in *Installer) extractDir(to string) string {
	if filepath.IsAbs(to) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(to))+"/", filepath.ToSlash(filepath.Clean(in.toolsDir))+"/") {
		return to
	}
	return filepath.Join(in.toolsDir, to)
}

// shell runs a command line through the platform shell inside the tools directory
func (in *Installer) shell(ctx context.Context, line string) error {
	cmd := runner.Command{Name: "sh", Args: []string{"-c", line}, Dir: in.toolsDir}
	if runtime.GOOS == "windows" {
		cmd = runner.Command{Name: "cmd", Args: []string{"/C", line}, Dir: in.toolsDir}
	}
	_, err := in.runner.Run(ctx, cmd)
	return err
}

// Download fetches url into dest, retrying transient failures. Client errors are not retried.
func (in *Installer) Download(ctx context.Context, url, dest string) error {
	attempt := 0
	err := retry.Do(ctx, in.retry, func() error {
		attempt++
		in.logger.Infof("Attempt %d/%d: downloading %s", attempt, in.retry.MaxAttempts, url)
		return in.fetch(ctx, url, dest)
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	in.logger.Infof("Download successful: %s", url)
	return nil
}

func (in *Installer) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Stop(err)
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Stop(err)
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return retry.Stop(err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return retry.Stop(err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func archiveExt(url string) string {
	switch ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])); ext {
	case ".msi", ".exe":
		return ext
	}
	return ".zip"
}

func pythonExe() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}
