package verifier

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/evidence"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// invocation is the command a check runs plus where its parseable output lands
type invocation struct {
	cmd     runner.Command
	nmapXML string
}

// checkSpec describes one category: how to build its command and how to read the result
type checkSpec struct {
	build func(s *runner.ScriptResolver, f models.Finding, dir string) invocation
	// verified receives the lowercased tool output
	verified func(output string, f models.Finding) bool
	// knownIDs promotes findings listed in the category's verified ids
	knownIDs bool
}

type toolCheck struct {
	spec    checkSpec
	runner  runner.Runner
	store   *evidence.Store
	rules   knownVerifier
	scripts *runner.ScriptResolver
	logger  *logrus.Logger
}

type knownVerifier interface {
	KnownVerified(category models.Category, pluginID string) bool
}

func newToolCheck(deps Deps, spec checkSpec) *toolCheck {
	return &toolCheck{
		spec:    spec,
		runner:  deps.Runner,
		store:   deps.Store,
		rules:   deps.Rules,
		scripts: deps.Scripts,
		logger:  deps.Logger,
	}
}

// Verify implements Verifier
func (c *toolCheck) Verify(ctx context.Context, f models.Finding) (models.VerificationResult, error) {
	dir, err := c.store.Stage(f)
	if err != nil {
		return models.VerificationResult{}, err
	}

	inv := c.spec.build(c.scripts, f, dir)
	res, runErr := c.runner.Run(ctx, inv.cmd)

	if runErr != nil {
		c.logger.Warnf("%s failed for %s: %v", inv.cmd.Name, f.Target(), runErr)
		note := manualNote(noteData{Finding: f, Command: inv.cmd.String(), Reason: runErr.Error()})
		if err := evidence.WriteManualSteps(dir, note); err != nil {
			return models.VerificationResult{}, err
		}
		return c.finalize(dir, models.StatusManual, f)
	}

	output := res.Output
	if inv.nmapXML != "" {
		if text, err := readNmapXML(inv.nmapXML); err == nil {
			output = text
		} else if !os.IsNotExist(err) {
			c.logger.Debugf("Falling back to console output for %s: %v", f.Target(), err)
		}
	}

	status := models.StatusFalsePositive
	if c.spec.verified(strings.ToLower(output), f) ||
		(c.spec.knownIDs && c.rules.KnownVerified(f.Category, f.PluginID)) {
		status = models.StatusVerified
	}
	return c.finalize(dir, status, f)
}

func (c *toolCheck) finalize(dir string, status models.Status, f models.Finding) (models.VerificationResult, error) {
	path, err := c.store.Finalize(dir, status, f)
	if err != nil {
		return models.VerificationResult{}, err
	}
	return models.VerificationResult{Status: status, EvidencePath: path}, nil
}

type noteData struct {
	Finding models.Finding
	Command string
	Reason  string
}

var noteTemplate = template.Must(template.New("manual_steps").Funcs(sprig.TxtFuncMap()).Parse(
	`Manual Check Required: {{ if .Command }}Run '{{ .Command }}' and check for {{ .Finding.Name }}.{{ else }}Verify {{ .Finding.Name }} by hand.{{ end }}
Target: {{ .Finding.IP }}:{{ .Finding.Port }} ({{ .Finding.Category | default "General" }})
Reason: {{ .Reason | trim }}
{{- with .Finding.PluginID }}
Identifier: {{ . }}
{{- end }}
{{- with .Finding.Solution }}

Suggested remediation:
{{ . | trim | wrap 100 }}
{{- end }}
`))

func manualNote(data noteData) string {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Manual Check Required: %s on %s:%s (%s)\n", data.Finding.Name, data.Finding.IP, data.Finding.Port, data.Reason)
	}
	return buf.String()
}

// containsAny reports whether s contains any of subs
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// vulnerable reports a "vulnerable" marker that is not part of "not vulnerable"
func vulnerable(s string) bool {
	return strings.Contains(strings.ReplaceAll(s, "not vulnerable", ""), "vulnerable")
}

// lineHas reports whether a single line of s contains every one of subs
func lineHas(s string, subs ...string) bool {
	for _, line := range strings.Split(s, "\n") {
		ok := true
		for _, sub := range subs {
			if !strings.Contains(line, sub) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func nameIn(output string, f models.Finding) bool {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	return name != "" && strings.Contains(output, name)
}
