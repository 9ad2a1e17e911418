package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/credentials"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/masking"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/scope"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/subnet"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/ui"
)

// argOr returns the n-th positional argument or def
func argOr(c *cli.Context, n int, def string) string {
	if v := c.Args().Get(n); v != "" {
		return v
	}
	return def
}

// commandMask returns the mask command configuration
func commandMask() *cli.Command {
	return &cli.Command{
		Name:      "mask",
		Usage:     "Mask the middle octets of every address in a list",
		ArgsUsage: "[input-file] [output-file]",
		Action: func(c *cli.Context) error {
			in := argOr(c, 0, "scope.txt")
			out := argOr(c, 1, "output.txt")

			color.Cyan("Processing %s", in)
			stats, err := masking.ProcessFile(in, out)
			if err != nil {
				if errors.Is(err, masking.ErrInputNotFound) {
					color.Red("Error: Input file '%s' not found!", in)
				} else {
					color.Red("Error: %v", err)
				}
				return cli.Exit(err.Error(), 1)
			}

			color.Blue("Found %d entries in %s", stats.Total(), in)
			color.Green("Masked entries: %d", stats.Masked)
			color.Yellow("Unchanged entries: %d", stats.Unchanged)
			if stats.Empty > 0 {
				color.Yellow("Empty lines skipped: %d", stats.Empty)
			}
			color.Green("Wrote %d entries to %s", stats.Written(), out)
			return nil
		},
	}
}

// commandSplit returns the split command configuration
func commandSplit() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split a scope file into batches and scan them with nmap",
		ArgsUsage: "[scope-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scanner-config",
				Value: "scanner_config.yaml",
				Usage: "Splitter configuration `FILE`, created with defaults if missing",
			},
			&cli.BoolFlag{
				Name:  "create-example",
				Usage: "Create an example scope file and exit",
			},
		},
		Action: func(c *cli.Context) error {
			scopeFile := argOr(c, 0, "scope.txt")

			if c.Bool("create-example") {
				created, err := scope.CreateExample(scopeFile)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				if created {
					color.Green("Created example %s", scopeFile)
				} else {
					color.Yellow("%s already exists", scopeFile)
				}
				return nil
			}

			if _, err := os.Stat(scopeFile); err != nil {
				color.Red("Error: %s not found!", scopeFile)
				color.Yellow("Use --create-example to create an example scope file")
				return cli.Exit(err.Error(), 1)
			}

			cfg, err := scope.LoadConfig(c.String("scanner-config"), log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			targets, err := scope.ParseScopeFile(scopeFile, log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			color.Cyan("Loaded %d IPs and %d subnets", len(targets.IPs), len(targets.Subnets))

			files, err := scope.Split(cfg, targets)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if len(files) == 0 {
				color.Yellow("Nothing to scan")
				return nil
			}

			ctx, stop := signalContext()
			defer stop()

			s := scope.NewScanner(cfg, runner.NewExecRunner(cfg.Timeout(), nil, log), log)
			nmap, err := s.FindNmap(ctx)
			if err != nil {
				color.Red("%v", err)
				return cli.Exit(err.Error(), 1)
			}

			start := time.Now()
			results, err := s.RunScans(ctx, nmap, files)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					color.Red("Scan failed for %s: %v", r.TargetFile, r.Err)
				} else {
					color.Green("Scan completed for %s in %v", r.TargetFile, r.Duration.Round(time.Second))
				}
			}
			color.Cyan("%d scans, %d failed, total time %v", len(files), failed, time.Since(start).Round(time.Second))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// commandSubnets returns the subnets command configuration
func commandSubnets() *cli.Command {
	return &cli.Command{
		Name:      "subnets",
		Usage:     "Expand subnets into address ranges and write a workbook",
		ArgsUsage: "[scope-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "subnet_ranges_detailed.xlsx",
				Usage:   "Workbook `FILE`",
			},
			&cli.StringFlag{
				Name:  "lists",
				Usage: "Also write one address list per subnet into `DIR`",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: subnet.DefaultHostLimit,
				Usage: "Maximum addresses listed per subnet",
			},
		},
		Action: func(c *cli.Context) error {
			in := argOr(c, 0, "scope.txt")
			inputs, err := subnet.ReadSubnets(in)
			if err != nil {
				color.Red("Error reading %s: %v", in, err)
				return cli.Exit(err.Error(), 1)
			}
			color.Cyan("Found %d subnets in %s", len(inputs), in)

			analyses, stats := subnet.AnalyzeAll(inputs, c.Int("limit"))
			for _, a := range analyses {
				if !a.Valid() {
					color.Red("Invalid subnet %s: %v", a.Input, a.Err)
				} else if a.Truncated {
					color.Yellow("%s lists only the first %d addresses", a.Input, len(a.Addresses))
				}
			}

			out := c.String("output")
			if err := subnet.WriteWorkbook(out, analyses, stats, time.Now()); err != nil {
				return cli.Exit(fmt.Sprintf("write workbook: %v", err), 1)
			}
			if dir := c.String("lists"); dir != "" {
				files, err := subnet.WriteLists(dir, analyses)
				if err != nil {
					return cli.Exit(fmt.Sprintf("write lists: %v", err), 1)
				}
				color.Green("Wrote %d address lists to %s", len(files), dir)
			}

			color.Green("Valid subnets: %d, invalid: %d", stats.Valid, stats.Invalid)
			color.Green("Total IPs: %s, usable: %s", stats.TotalIPs, stats.UsableIPs)
			color.Green("Results saved to: %s", out)
			return nil
		},
	}
}

// commandCreds returns the creds command configuration
func commandCreds() *cli.Command {
	return &cli.Command{
		Name:  "creds",
		Usage: "Check scan credentials against the hosts of a sectioned scope",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scope",
				Value: "scope.txt",
				Usage: "Scope `FILE` with linux:, windows: and others: sections",
			},
			&cli.StringFlag{
				Name:  "credentials",
				Value: "credentials.txt",
				Usage: "Credentials `FILE` with \"key\" \"value\" lines per section",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   credentials.ResultsFile,
				Usage:   "Results CSV `FILE`",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: credentials.DefaultTimeout,
				Usage: "Timeout for each login",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Value:   10,
				Usage:   "Number of concurrent logins",
			},
		},
		Action: func(c *cli.Context) error {
			out := c.String("output")
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}

			color.Green("[+] Parsing configuration files")
			sc, err := credentials.ParseScopeFile(c.String("scope"), log)
			if err != nil {
				color.Red("Error: %s not found!", c.String("scope"))
				return cli.Exit(err.Error(), 1)
			}
			creds, err := credentials.ParseCredentialsFile(c.String("credentials"), log)
			if err != nil {
				color.Red("Error: %s not found!", c.String("credentials"))
				return cli.Exit(err.Error(), 1)
			}

			ctx, stop := signalContext()
			defer stop()

			checker := credentials.NewChecker(credentials.NewNetProber(c.Duration("timeout")), c.Int("threads"), log)
			outcomes := checker.Validate(ctx, sc, creds)

			if err := credentials.WriteCSV(out, outcomes); err != nil {
				color.Red("Error writing %s: %v", out, err)
				return cli.Exit(err.Error(), 1)
			}
			fmt.Print(ui.CredentialReport(outcomes))
			color.Cyan("[+] Validation complete! Results saved to %s", out)
			return nil
		},
	}
}
