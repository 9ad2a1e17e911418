// Package integration ties the verifier components into a single run:
// input validation, tool setup, parsing, verification and reporting.
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/categorizer"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/evidence"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/installer"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/parser"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/report"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/verifier"
)

// Stage errors let callers tell which step of a run failed
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSetup        = errors.New("setup failed")
	ErrParse        = errors.New("failed to parse input")
	ErrReport       = errors.New("failed to write report")
)

// Options select what a single run does
type Options struct {
	Input     string
	SkipTools bool
	DryRun    bool
	Category  string
}

// Pipeline verifies the findings of a scan export
type Pipeline struct {
	cfg        config.Config
	logger     *logrus.Logger
	rules      *categorizer.Rules
	runner     runner.Runner
	store      *evidence.Store
	installer  *installer.Installer
	dispatcher *verifier.Dispatcher
	progress   func(done, total int, row models.Row)
}

// PipelineOption customises a Pipeline
type PipelineOption func(*Pipeline)

// WithRunner replaces the process runner used for tools and installers
func WithRunner(r runner.Runner) PipelineOption {
	return func(p *Pipeline) { p.runner = r }
}

// WithProgress registers a callback invoked after each finding
func WithProgress(fn func(done, total int, row models.Row)) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

// NewPipeline wires the components described by cfg. A configured rules file
// that cannot be loaded is an error.
func NewPipeline(cfg config.Config, logger *logrus.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.New()
	}

	rules := categorizer.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := categorizer.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSetup, err)
		}
		rules = loaded
	}

	paths, err := runner.LoadToolPaths(cfg.ToolPathsFile)
	if err != nil {
		logger.Warnf("Ignoring tool path config: %v", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		rules:  rules,
		store:  evidence.NewStore(cfg.OutputDir, cfg.ToolsDir, logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = runner.NewExecRunner(cfg.CommandTimeout, paths.Tools, logger)
	}

	p.installer = installer.NewInstaller(cfg.ToolsDir, p.runner, logger)
	p.dispatcher = verifier.NewDispatcher(verifier.Deps{
		Runner:  p.runner,
		Store:   p.store,
		Rules:   rules,
		Scripts: runner.NewScriptResolver(paths.NmapScripts),
		Logger:  logger,
	})
	return p, nil
}

// Dispatcher exposes the category table, mainly for registering extra verifiers
func (p *Pipeline) Dispatcher() *verifier.Dispatcher {
	return p.dispatcher
}

// ResultsPath is where Run writes results.json
func (p *Pipeline) ResultsPath() string {
	if filepath.IsAbs(p.cfg.ResultsFile) {
		return p.cfg.ResultsFile
	}
	return filepath.Join(p.cfg.OutputDir, p.cfg.ResultsFile)
}

// Run executes one verification run and writes the report and results file
func (p *Pipeline) Run(ctx context.Context, opts Options) (report.RunSummary, error) {
	var summary report.RunSummary

	if err := parser.ValidateInput(opts.Input); err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p.logger.Infof("Processing %s", opts.Input)

	if err := p.store.Setup(); err != nil {
		return summary, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	p.installTools(ctx, opts)

	findings, err := parser.NewLoader(p.rules, p.logger).LoadFile(opts.Input)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrParse, err)
	}
	p.logger.Infof("Found %d vulnerabilities to verify", len(findings))

	if opts.Category != "" {
		findings = parser.FilterCategory(findings, opts.Category)
		if len(findings) == 0 {
			p.logger.Warnf("No vulnerabilities in category '%s'", opts.Category)
		} else {
			p.logger.Infof("Filtered to %d vulnerabilities in category '%s'", len(findings), opts.Category)
		}
	}

	var rows []models.Row
	if opts.DryRun {
		p.logger.Info("Dry run, skipping verification")
		rows = p.dryRun(findings)
	} else {
		rows = p.verify(ctx, findings)
	}

	if err := report.WriteVerificationReport(p.cfg.ReportFile, rows); err != nil {
		return summary, fmt.Errorf("%w: %v", ErrReport, err)
	}
	p.logger.Infof("Report saved as %s", p.cfg.ReportFile)

	summary = report.NewRunSummary(opts.Input, opts.DryRun, rows)
	if err := report.WriteResults(p.ResultsPath(), summary); err != nil {
		p.logger.Warnf("Failed to write results file: %v", err)
	}

	log := p.logger.WithField("run_id", summary.RunID)
	for _, status := range report.SortedStatuses(summary.Counts) {
		log.Infof("%s: %d", status, summary.Counts[status])
	}
	return summary, nil
}

func (p *Pipeline) installTools(ctx context.Context, opts Options) {
	switch {
	case opts.SkipTools, p.cfg.SkipToolInstall:
		p.logger.Info("Skipping tool installation")
		return
	case config.SkipToolInstallFromEnv():
		p.logger.Infof("Skipping tool installation (%s set)", config.SkipToolInstallEnv)
		return
	}

	if err := p.installer.PrependPath(); err != nil {
		p.logger.Warnf("Failed to add tools directory to PATH: %v", err)
	}
	tc, err := installer.LoadToolConfig(p.cfg.ToolConfigFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Warnf("Tool config %s not found, skipping installation", p.cfg.ToolConfigFile)
		} else {
			p.logger.Warnf("Invalid tool config %s, skipping installation: %v", p.cfg.ToolConfigFile, err)
		}
		return
	}

	res := p.installer.EnsureTools(ctx, tc)
	if len(res.Failed) > 0 {
		p.logger.Warnf("%d tool(s) failed to install; affected findings will need manual checks", len(res.Failed))
	}
}

func (p *Pipeline) dryRun(findings []models.Finding) []models.Row {
	rows := make([]models.Row, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, models.Row{
			Finding: f,
			Result:  models.VerificationResult{Status: models.StatusDryRun, EvidencePath: p.store.DryRunFolder()},
		})
	}
	return rows
}

func (p *Pipeline) verify(ctx context.Context, findings []models.Finding) []models.Row {
	rows := make([]models.Row, 0, len(findings))
	start := time.Now()
	for i, f := range findings {
		p.logger.Infof("[%d/%d] Verifying %s on %s", i+1, len(findings), f.Name, f.Target())
		row := models.Row{Finding: f, Result: p.dispatcher.Verify(ctx, f)}
		rows = append(rows, row)
		if p.progress != nil {
			p.progress(i+1, len(findings), row)
		}
	}
	p.logger.Infof("Verified %d findings in %s", len(rows), time.Since(start).Round(time.Second))
	return rows
}
