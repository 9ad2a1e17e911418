// Package categorizer assigns findings to verification categories using
// keyword and identifier rules.
package categorizer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule describes how findings are matched to a category
type Rule struct {
	Name        models.Category     `json:"name" yaml:"name"`
	Keywords    []string            `json:"keywords" yaml:"keywords"`
	Identifiers map[string][]string `json:"identifiers" yaml:"identifiers"`   // vulnerability name -> plugin ids
	VerifiedIDs []string            `json:"verified_ids" yaml:"verified_ids"` // ids known to reproduce
}

// Rules is the ordered category rule set. It is read-only once loaded.
type Rules struct {
	Categories []Rule `json:"categories" yaml:"categories"`

	byName map[models.Category]*Rule
}

// DefaultRules returns the built-in rule set
func DefaultRules() *Rules {
	rules, err := parseRules("default_rules.yaml", defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("categorizer: invalid built-in rules: %v", err))
	}
	return rules
}

// LoadRules reads a YAML or JSON rule file
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}
	rules, err := parseRules(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse category rules %s: %w", path, err)
	}
	return rules, nil
}

func parseRules(name string, data []byte) (*Rules, error) {
	var rules Rules
	if err := config.Decode(name, data, &rules); err != nil {
		return nil, err
	}
	if len(rules.Categories) == 0 {
		return nil, fmt.Errorf("no categories defined")
	}

	rules.byName = make(map[models.Category]*Rule, len(rules.Categories))
	for i := range rules.Categories {
		r := &rules.Categories[i]
		if r.Name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		for j, kw := range r.Keywords {
			r.Keywords[j] = strings.ToLower(kw)
		}
		rules.byName[r.Name] = r
	}
	return &rules, nil
}

// Categorize returns the category for the finding; it never fails and
// defaults to General
func (r *Rules) Categorize(f models.Finding) models.Category {
	service := strings.ToLower(f.Service)
	name := strings.ToLower(f.Name)

	for _, rule := range r.Categories {
		if rule.Name == models.CategoryGeneral {
			continue
		}
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(service, kw) || strings.Contains(name, kw) {
				return rule.Name
			}
		}
	}

	for _, rule := range r.Categories {
		if rule.Name == models.CategoryGeneral {
			continue
		}
		if rule.matchesIdentifier(name, f.PluginID) {
			return rule.Name
		}
	}

	return models.CategoryGeneral
}

func (rule Rule) matchesIdentifier(name, pluginID string) bool {
	for mapped, ids := range rule.Identifiers {
		if mapped != "" && strings.Contains(name, strings.ToLower(mapped)) {
			return true
		}
		if pluginID == "" {
			continue
		}
		for _, id := range ids {
			if id != "" && strings.Contains(pluginID, id) {
				return true
			}
		}
	}
	return false
}

// Apply returns a copy of f with its category assigned
func (r *Rules) Apply(f models.Finding) models.Finding {
	return f.WithCategory(r.Categorize(f))
}

// KnownVerified reports whether pluginID is in the known-verified set of category
func (r *Rules) KnownVerified(category models.Category, pluginID string) bool {
	rule, ok := r.byName[category]
	if !ok || pluginID == "" {
		return false
	}
	for _, id := range rule.VerifiedIDs {
		if id == strings.TrimSpace(pluginID) {
			return true
		}
	}
	return false
}

// Names returns the category names in evaluation order
func (r *Rules) Names() []models.Category {
	names := make([]models.Category, 0, len(r.Categories))
	for _, rule := range r.Categories {
		names = append(names, rule.Name)
	}
	return names
}
