package scope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// ErrNmapNotFound is returned when no working nmap could be located
var ErrNmapNotFound = errors.New("nmap not found or not working properly")

// ScanResult is the outcome of one batch scan
type ScanResult struct {
	TargetFile string
	OutputBase string
	Duration   time.Duration
	Err        error
}

// Scanner runs nmap over target files
type Scanner struct {
	cfg    Config
	runner runner.Runner
	logger *logrus.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewScanner creates a scanner that executes through r
func NewScanner(cfg Config, r runner.Runner, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{cfg: cfg, runner: r, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func commonNmapPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{`C:\Program Files\Nmap\nmap.exe`, `C:\Program Files (x86)\Nmap\nmap.exe`}
	}
	return []string{"/usr/bin/nmap", "/usr/local/bin/nmap", "/opt/homebrew/bin/nmap", "/snap/bin/nmap"}
}

// FindNmap returns the first candidate that answers `nmap -V`: the configured
// path, PATH, then the usual install locations.
func (s *Scanner) FindNmap(ctx context.Context) (string, error) {
	var candidates []string
	if s.cfg.NmapPath != "" {
		candidates = append(candidates, s.cfg.NmapPath)
	}
	if p, err := exec.LookPath("nmap"); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range commonNmapPaths() {
		if _, err := os.Stat(p); err == nil {
			candidates = append(candidates, p)
		}
	}

	for _, c := range candidates {
		if _, err := s.runner.Run(ctx, runner.Command{Name: c, Args: []string{"-V"}}); err != nil {
			s.logger.Debugf("nmap candidate %s rejected: %v", c, err)
			continue
		}
		return c, nil
	}
	return "", ErrNmapNotFound
}

// ScanCommand builds the nmap invocation for one target file
func (s *Scanner) ScanCommand(nmap, targetFile string) runner.Command {
	base := s.OutputBase(targetFile)
	var args []string
	for _, group := range []string{s.cfg.NmapOptions.Basic, s.cfg.NmapOptions.Timing, s.cfg.NmapOptions.Rate} {
		args = append(args, strings.Fields(group)...)
	}
	if len(s.cfg.ExcludedPorts) > 0 {
		args = append(args, "--exclude-ports", strings.Join(s.cfg.ExcludedPorts, ","))
	}
	args = append(args, "-iL", targetFile, "-oA", base)
	return runner.Command{Name: nmap, Args: args, OutputFile: base + ".log"}
}

// OutputBase is the -oA prefix for a target file
func (s *Scanner) OutputBase(targetFile string) string {
	stem := strings.TrimSuffix(filepath.Base(targetFile), filepath.Ext(targetFile))
	return filepath.Join(s.cfg.OutputDir, "scan_"+stem)
}

// RunScans scans every file concurrently. Scan i starts i*scan_delay after the
// first. A failed scan is reported in its result and does not stop the others.
func (s *Scanner) RunScans(ctx context.Context, nmap string, files []string) ([]ScanResult, error) {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]ScanResult, len(files))
	var g errgroup.Group
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}

	delay := s.cfg.StartDelay()
	for i, file := range files {
		g.Go(func() error {
			res := ScanResult{TargetFile: file, OutputBase: s.OutputBase(file)}
			if err := s.sleep(ctx, time.Duration(i)*delay); err != nil {
				res.Err = err
			} else {
				s.logger.Infof("Started scan for %s", file)
				start := time.Now()
				_, res.Err = s.runner.Run(ctx, s.ScanCommand(nmap, file))
				res.Duration = time.Since(start)
				if res.Err != nil {
					s.logger.Errorf("Scan failed for %s: %v", file, res.Err)
				} else {
					s.logger.Infof("Completed scan for %s in %s", file, res.Duration.Round(time.Second))
				}
			}

			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
