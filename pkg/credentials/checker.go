package credentials

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ResultsFile is the default CSV written by a validation run
const ResultsFile = "validation_results.csv"

// Attempt statuses
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
	StatusSkipped = "Skipped"
)

// Attempt is one login over one protocol
type Attempt struct {
	Protocol string
	Status   string
	Details  string
}

// Outcome collects the attempts made against one host
type Outcome struct {
	Section  Section
	IP       string
	Attempts []Attempt
}

// Validated reports whether any attempt logged in
func (o Outcome) Validated() bool {
	for _, a := range o.Attempts {
		if a.Status == StatusSuccess {
			return true
		}
	}
	return false
}

// Skipped reports whether the host was not tried for lack of credentials
func (o Outcome) Skipped() bool {
	return len(o.Attempts) == 1 && o.Attempts[0].Status == StatusSkipped
}

// Summary is the single line shown for the host
func (o Outcome) Summary() Attempt {
	for _, a := range o.Attempts {
		if a.Status == StatusSuccess {
			return a
		}
	}
	if len(o.Attempts) > 1 {
		return Attempt{Protocol: "Both", Status: StatusFailed, Details: "Both SSH and SMB failed"}
	}
	if len(o.Attempts) == 0 {
		return Attempt{}
	}
	return o.Attempts[0]
}

// Checker validates credentials against every host of a scope
type Checker struct {
	prober      Prober
	concurrency int
	logger      *logrus.Logger
}

// NewChecker creates a checker running at most concurrency logins at once
func NewChecker(prober Prober, concurrency int, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Checker{prober: prober, concurrency: concurrency, logger: logger}
}

type target struct {
	section Section
	ip      string
}

// Validate tries the section credentials on each host. Outcomes keep the
// section order and the scope order within a section.
func (c *Checker) Validate(ctx context.Context, scope Scope, creds Credentials) []Outcome {
	var targets []target
	for _, s := range Sections {
		for _, ip := range scope[s] {
			targets = append(targets, target{section: s, ip: ip})
		}
	}

	out := make([]Outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			out[i] = c.check(gctx, t, creds[t.section])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Checker) check(ctx context.Context, t target, cred Credential) Outcome {
	o := Outcome{Section: t.section, IP: t.ip}
	if !cred.Complete() {
		protocol := "Both"
		switch t.section {
		case Linux:
			protocol = "SSH"
		case Windows:
			protocol = "SMB"
		}
		c.logger.Warnf("%s: Missing %s credentials", t.ip, t.section.Title())
		o.Attempts = []Attempt{{Protocol: protocol, Status: StatusSkipped, Details: "Missing credentials"}}
		return o
	}

	switch t.section {
	case Linux:
		o.Attempts = append(o.Attempts, c.attempt(ctx, t.ip, "SSH", cred))
	case Windows:
		o.Attempts = append(o.Attempts, c.attempt(ctx, t.ip, "SMB", cred))
	default:
		ssh := c.attempt(ctx, t.ip, "SSH", cred)
		o.Attempts = append(o.Attempts, ssh)
		if ssh.Status != StatusSuccess {
			o.Attempts = append(o.Attempts, c.attempt(ctx, t.ip, "SMB", cred))
		}
	}
	return o
}

func (c *Checker) attempt(ctx context.Context, ip, protocol string, cred Credential) Attempt {
	c.logger.Debugf("Testing %s connection to %s", protocol, ip)
	var err error
	if protocol == "SSH" {
		err = c.prober.SSH(ctx, ip, cred)
	} else {
		err = c.prober.SMB(ctx, ip, cred)
	}
	details := Describe(protocol, err)
	if err != nil {
		c.logger.Warnf("%s: %s validation failed - %s", ip, protocol, details)
		return Attempt{Protocol: protocol, Status: StatusFailed, Details: details}
	}
	c.logger.Infof("%s: %s validation successful", ip, protocol)
	return Attempt{Protocol: protocol, Status: StatusSuccess, Details: details}
}

// SectionStats counts the hosts of one section
type SectionStats struct {
	Total      int
	Successful int
	Failed     int
}

// Stats holds the counts of every section
type Stats map[Section]SectionStats

// Summarize counts outcomes per section. Skipped hosts count towards the total only.
func Summarize(outcomes []Outcome) Stats {
	stats := Stats{}
	for _, s := range Sections {
		stats[s] = SectionStats{}
	}
	for _, o := range outcomes {
		st := stats[o.Section]
		st.Total++
		switch {
		case o.Validated():
			st.Successful++
		case !o.Skipped():
			st.Failed++
		}
		stats[o.Section] = st
	}
	return stats
}

// Total sums every section
func (s Stats) Total() SectionStats {
	var t SectionStats
	for _, st := range s {
		t.Total += st.Total
		t.Successful += st.Successful
		t.Failed += st.Failed
	}
	return t
}

// SuccessRate is the validated share of all hosts, in percent
func (s Stats) SuccessRate() float64 {
	t := s.Total()
	if t.Total == 0 {
		return 0
	}
	return float64(t.Successful) / float64(t.Total) * 100
}

// WriteCSV writes one row per attempt to path
func WriteCSV(path string, outcomes []Outcome) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"System Type", "IP Address", "Protocol", "Status", "Details"}); err != nil {
		return err
	}
	for _, o := range outcomes {
		for _, a := range o.Attempts {
			if err := w.Write([]string{o.Section.Title(), o.IP, a.Protocol, a.Status, a.Details}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
