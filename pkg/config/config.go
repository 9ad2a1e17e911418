package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SkipToolInstallEnv disables tool installation when set to a true value
const SkipToolInstallEnv = "SKIP_TOOL_INSTALL"

// Config holds the verifier configuration
type Config struct {
	OutputDir       string        `json:"output_dir" yaml:"output_dir"`               // Root of the evidence tree
	ToolsDir        string        `json:"tools_dir" yaml:"tools_dir"`                 // Where downloaded tools are unpacked
	ConfigDir       string        `json:"config_dir" yaml:"config_dir"`               // Directory holding optional config files
	ReportFile      string        `json:"report_file" yaml:"report_file"`             // Spreadsheet written at the end of a run
	ResultsFile     string        `json:"results_file" yaml:"results_file"`           // JSON results consumed by the dashboard
	LogFile         string        `json:"log_file" yaml:"log_file"`                   // Plain-text run log
	CommandTimeout  time.Duration `json:"command_timeout" yaml:"command_timeout"`     // Timeout for a single external command
	SkipToolInstall bool          `json:"skip_tool_install" yaml:"skip_tool_install"` // Do not run the installer
	RulesFile       string        `json:"rules_file" yaml:"rules_file"`               // Category rules; empty means built-in
	ToolConfigFile  string        `json:"tool_config_file" yaml:"tool_config_file"`   // Installer definitions
	ToolPathsFile   string        `json:"tool_paths_file" yaml:"tool_paths_file"`     // Explicit tool locations and nmap scripts
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() Config {
	return Config{
		OutputDir:      "output",
		ToolsDir:       "tools",
		ConfigDir:      "config",
		ReportFile:     "verification_report.xlsx",
		ResultsFile:    "results.json",
		LogFile:        "vuln_verifier.log",
		CommandTimeout: 300 * time.Second,
		ToolConfigFile: filepath.Join("config", "tool_config.yaml"),
		ToolPathsFile:  filepath.Join("config", "tool_path_config.yaml"),
	}
}

// LoadConfigFromFile overlays a YAML or JSON file on top of DefaultConfig
func LoadConfigFromFile(filePath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", filePath, err)
	}

	if err := Decode(filePath, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filePath, err)
	}
	return cfg, nil
}

// Decode unmarshals data into v, choosing JSON or YAML by file extension
func Decode(filePath string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// ReadFile reads filePath into v using Decode
func ReadFile(filePath string, v any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return Decode(filePath, data, v)
}

// WriteFile encodes v as JSON or YAML by extension and writes it to filePath
func WriteFile(filePath string, v any) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}

// SkipToolInstallFromEnv reports whether SKIP_TOOL_INSTALL is set to true, 1 or t
func SkipToolInstallFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(SkipToolInstallEnv))) {
	case "true", "1", "t":
		return true
	}
	return false
}

// FileExists checks if a regular file exists
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
