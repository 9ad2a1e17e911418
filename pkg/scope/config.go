// Package scope splits a target list into batches and scans each batch with
// nmap in parallel.
package scope

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/config"
)

// NmapOptions are the option groups passed to every scan
type NmapOptions struct {
	Basic  string `json:"basic" yaml:"basic"`
	Timing string `json:"timing" yaml:"timing"`
	Rate   string `json:"rate" yaml:"rate"`
}

// Config controls splitting and scanning
type Config struct {
	IPsPerFile     int         `json:"ips_per_file" yaml:"ips_per_file"`
	SubnetsPerFile int         `json:"subnets_per_file" yaml:"subnets_per_file"`
	OutputDir      string      `json:"output_dir" yaml:"output_dir"`
	TempDir        string      `json:"temp_dir" yaml:"temp_dir"`
	NmapOptions    NmapOptions `json:"nmap_options" yaml:"nmap_options"`
	ExcludedPorts  []string    `json:"excluded_ports" yaml:"excluded_ports"`
	ScanDelay      float64     `json:"scan_delay" yaml:"scan_delay"` // seconds between scan starts
	NmapPath       string      `json:"nmap_path,omitempty" yaml:"nmap_path,omitempty"`
	ScanTimeout    string      `json:"scan_timeout,omitempty" yaml:"scan_timeout,omitempty"` // per scan, e.g. "12h"
	MaxParallel    int         `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"` // 0 runs every batch at once
}

// DefaultConfig returns the splitter defaults
func DefaultConfig() Config {
	return Config{
		IPsPerFile:     20,
		SubnetsPerFile: 3,
		OutputDir:      "output",
		TempDir:        "temp",
		NmapOptions: NmapOptions{
			Basic:  "-sS -Pn -p- -T4",
			Timing: "--max-rtt-timeout 100ms --max-retries 3",
			Rate:   "--min-rate 450 --max-rate 15000",
		},
		ExcludedPorts: []string{},
		ScanDelay:     2,
	}
}

// Timeout returns the per scan timeout, 24h when unset or invalid
func (c Config) Timeout() time.Duration {
	if d, err := time.ParseDuration(c.ScanTimeout); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// StartDelay is the stagger between two scan starts
func (c Config) StartDelay() time.Duration {
	if c.ScanDelay <= 0 {
		return 0
	}
	return time.Duration(c.ScanDelay * float64(time.Second))
}

// LoadConfig reads the splitter config at path over the defaults. A missing
// file is created with the defaults; an unreadable one is ignored with a warning.
func LoadConfig(path string, logger *logrus.Logger) (Config, error) {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := DefaultConfig()

	if !config.FileExists(path) {
		if err := config.WriteFile(path, cfg); err != nil {
			return cfg, fmt.Errorf("write default config %s: %w", path, err)
		}
		logger.Infof("Created default scanner config %s", path)
		return cfg, nil
	}

	if err := config.ReadFile(path, &cfg); err != nil {
		logger.Warnf("Invalid config file %s, using defaults: %v", path, err)
		return DefaultConfig(), nil
	}
	if cfg.IPsPerFile <= 0 {
		cfg.IPsPerFile = DefaultConfig().IPsPerFile
	}
	if cfg.SubnetsPerFile <= 0 {
		cfg.SubnetsPerFile = DefaultConfig().SubnetsPerFile
	}
	return cfg, nil
}
