package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/api"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/integration"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/logging"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/ui"
)

const (
	appName    = "secops"
	appVersion = "1.0.0"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "Vulnerability verification and scan preparation toolkit",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SECOPS_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logging.Configure(log, c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			commandVerify(),
			commandMask(),
			commandSplit(),
			commandSubnets(),
			commandCreds(),
			commandServe(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads --config when present. A missing default file is not an error.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if !config.FileExists(path) {
		if c.IsSet("config") {
			return config.DefaultConfig(), fmt.Errorf("config file %s not found", path)
		}
		return config.DefaultConfig(), nil
	}
	return config.LoadConfigFromFile(path)
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func statusColor(s models.Status) *color.Color {
	switch s {
	case models.StatusVerified:
		return color.New(color.FgGreen)
	case models.StatusFalsePositive:
		return color.New(color.FgRed)
	case models.StatusDryRun:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgYellow)
	}
}

// commandVerify returns the verify command configuration
func commandVerify() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Aliases:   []string{"v"},
		Usage:     "Verify the findings of a vulnerability scan export",
		ArgsUsage: "<input-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "skip-tools",
				Usage: "Skip tool installation",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Parse and categorize without running any verification",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only verify findings of this category",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Root of the evidence tree",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Report workbook `FILE`",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for a single verification command",
			},
		},
		Action: func(c *cli.Context) error {
			input := c.Args().First()
			if input == "" {
				return cli.Exit("missing <input-file>", 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if c.IsSet("output-dir") {
				cfg.OutputDir = c.String("output-dir")
			}
			if c.IsSet("report") {
				cfg.ReportFile = c.String("report")
			}
			if c.IsSet("timeout") {
				cfg.CommandTimeout = c.Duration("timeout")
			}

			hook, err := logging.AttachFile(log, filepath.Join(cfg.OutputDir, cfg.LogFile))
			if err != nil {
				log.Warnf("Run log disabled: %v", err)
			} else {
				defer hook.Close()
			}

			p, err := integration.NewPipeline(cfg, log, integration.WithProgress(func(done, total int, row models.Row) {
				statusColor(row.Result.Status).Printf("[%d/%d] %s %s: %s\n",
					done, total, row.Finding.Target(), row.Finding.Name, row.Result.Status)
			}))
			if err != nil {
				color.Red("Setup failed: %v", err)
				return cli.Exit(err.Error(), 1)
			}

			ctx, stop := signalContext()
			defer stop()

			start := time.Now()
			summary, err := p.Run(ctx, integration.Options{
				Input:     input,
				SkipTools: c.Bool("skip-tools"),
				DryRun:    c.Bool("dry-run"),
				Category:  c.String("category"),
			})
			if err != nil {
				if errors.Is(err, integration.ErrInvalidInput) {
					color.Red("Invalid input: %v", err)
				} else {
					color.Red("Verification failed: %v", err)
				}
				return cli.Exit(err.Error(), 1)
			}

			fmt.Print(ui.RunReport(summary))
			color.Green("Verification completed in %v", time.Since(start).Round(time.Second))
			color.Green("Report saved to %s", cfg.ReportFile)
			color.Green("Results saved to %s", p.ResultsPath())
			return nil
		},
	}
}

// commandServe returns the dashboard command configuration
func commandServe() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"dashboard"},
		Usage:   "Serve verification results over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "127.0.0.1",
				Usage: "Host to bind",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   "8080",
				Usage:   "Port to listen on",
			},
			&cli.StringFlag{
				Name:  "results",
				Usage: "Results `FILE` to load, defaults to the one of the last run",
			},
			&cli.BoolFlag{
				Name:  "cors",
				Usage: "Allow cross-origin requests",
			},
			&cli.BoolFlag{
				Name:  "exports",
				Usage: "Enable the JSON and CSV export endpoints",
				Value: true,
			},
			&cli.IntFlag{
				Name:  "history",
				Value: 10,
				Usage: "Number of runs kept in the history",
			},
			&cli.DurationFlag{
				Name:  "reload",
				Value: 5 * time.Second,
				Usage: "How often to check the results file for a new run, 0 disables",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			results := c.String("results")
			if results == "" {
				results = cfg.ResultsFile
				if !filepath.IsAbs(results) {
					results = filepath.Join(cfg.OutputDir, results)
				}
			}

			d := api.NewDashboard(api.DashboardConfig{
				Addr:           c.String("host") + ":" + c.String("port"),
				EnableCORS:     c.Bool("cors"),
				ResultsHistory: c.Int("history"),
				AllowExports:   c.Bool("exports"),
			}, log)

			if err := d.LoadFile(results); err != nil {
				if c.IsSet("results") {
					return cli.Exit(fmt.Sprintf("load results: %v", err), 1)
				}
				color.Yellow("No results loaded from %s: %v", results, err)
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			go d.Watch(ctx, results, c.Duration("reload"))

			color.Green("Starting dashboard on http://%s:%s", c.String("host"), c.String("port"))
			color.Yellow("Press Ctrl+C to stop the dashboard")
			return d.Start()
		},
	}
}
