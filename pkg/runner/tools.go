package runner

import (
	"fmt"
	"path"
	"strings"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
)

// ToolPaths is the optional tool location file
type ToolPaths struct {
	Tools       map[string]string `json:"tools" yaml:"tools"`
	NmapScripts NmapScripts       `json:"nmap_scripts" yaml:"nmap_scripts"`
}

// NmapScripts lists which nmap scripts are installed and what to use instead
type NmapScripts struct {
	Available []string          `json:"available" yaml:"available"`
	Fallbacks map[string]string `json:"fallbacks" yaml:"fallbacks"`
}

// LoadToolPaths reads a tool path file. A missing file yields an empty set.
func LoadToolPaths(filePath string) (ToolPaths, error) {
	var tp ToolPaths
	if filePath == "" || !config.FileExists(filePath) {
		return tp, nil
	}
	if err := config.ReadFile(filePath, &tp); err != nil {
		return tp, fmt.Errorf("parse tool paths %s: %w", filePath, err)
	}
	return tp, nil
}

// ScriptResolver maps nmap scripts to installed alternatives
type ScriptResolver struct {
	scripts NmapScripts
}

// NewScriptResolver creates a resolver. With no available list every script is used as is.
func NewScriptResolver(scripts NmapScripts) *ScriptResolver {
	return &ScriptResolver{scripts: scripts}
}

// Resolve returns script if installed, otherwise its fallback
func (r *ScriptResolver) Resolve(script string) string {
	if r == nil || len(r.scripts.Available) == 0 {
		return script
	}
	for _, available := range r.scripts.Available {
		if available == script {
			return script
		}
		if ok, _ := path.Match(available, script); ok {
			return script
		}
	}
	if fb, ok := r.scripts.Fallbacks[script]; ok && fb != "" {
		return fb
	}
	return DefaultScriptFallback(script)
}

// DefaultScriptFallback is used when a script is not installed
func DefaultScriptFallback(script string) string {
	switch {
	case strings.HasPrefix(script, "postgres-vuln"), strings.HasPrefix(script, "mysql-vuln"):
		return "banner"
	case strings.HasPrefix(script, "ssh-vuln-cve"):
		return "ssh-auth-methods"
	case script == "http-traversal", script == "http-passwd", script == "http-xss",
		script == "http-stored-xss", script == "http-sql-injection":
		return "http-vuln-*"
	default:
		return "banner"
	}
}
