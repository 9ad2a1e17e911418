// Package verifier re-tests scanner findings with category specific external
// tools and records the outcome in the evidence tree.
package verifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/categorizer"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/evidence"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// Verifier checks a single finding
type Verifier interface {
	Verify(ctx context.Context, f models.Finding) (models.VerificationResult, error)
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, f models.Finding) (models.VerificationResult, error)

// Verify implements Verifier
func (fn VerifierFunc) Verify(ctx context.Context, f models.Finding) (models.VerificationResult, error) {
	return fn(ctx, f)
}

// Deps are the collaborators shared by all verifiers
type Deps struct {
	Runner  runner.Runner
	Store   *evidence.Store
	Rules   *categorizer.Rules
	Scripts *runner.ScriptResolver
	Logger  *logrus.Logger
}

// Dispatcher routes findings to the verifier registered for their category
type Dispatcher struct {
	verifiers map[models.Category]Verifier
	fallback  Verifier
	store     *evidence.Store
	logger    *logrus.Logger
}

// NewDispatcher creates a dispatcher with the built-in category table
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Rules == nil {
		deps.Rules = categorizer.DefaultRules()
	}

	d := &Dispatcher{
		verifiers: make(map[models.Category]Verifier),
		store:     deps.Store,
		logger:    deps.Logger,
	}
	for category, spec := range checkTable() {
		d.verifiers[category] = newToolCheck(deps, spec)
	}
	d.fallback = newToolCheck(deps, generalCheck)
	return d
}

// Register binds v to category, replacing any existing verifier
func (d *Dispatcher) Register(category models.Category, v Verifier) {
	d.verifiers[category] = v
}

// For returns the verifier for category, or the default verifier
func (d *Dispatcher) For(category models.Category) Verifier {
	if v, ok := d.verifiers[category]; ok {
		return v
	}
	return d.fallback
}

// Verify runs the verifier for f. Failures are recorded as Manual Check Required
// and never returned.
func (d *Dispatcher) Verify(ctx context.Context, f models.Finding) models.VerificationResult {
	log := d.logger.WithFields(logrus.Fields{
		"category": f.Category,
		"target":   f.Target(),
	})
	log.Infof("Verifying %s", f.Name)

	start := time.Now()
	res, err := d.For(f.Category).Verify(ctx, f)
	if err != nil {
		log.Warnf("Verification of %s failed: %v", f.Name, err)
		return d.manual(f, err)
	}

	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Infof("%s: %s", f.Name, res.Status)
	return res
}

func (d *Dispatcher) manual(f models.Finding, cause error) models.VerificationResult {
	dir := d.store.ManualFolder(f)
	note := manualNote(noteData{Finding: f, Reason: cause.Error()})
	if err := evidence.WriteManualSteps(dir, note); err != nil {
		d.logger.Errorf("Failed to write manual steps for %s: %v", f.Name, err)
	}
	return models.VerificationResult{Status: models.StatusManual, EvidencePath: dir}
}
