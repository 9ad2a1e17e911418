// Package parser loads vulnerability scan exports into findings.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

var (
	// ErrInputMissing is returned when the input file does not exist
	ErrInputMissing = errors.New("input file does not exist")
	// ErrNotCSV is returned when the input file does not have a .csv extension
	ErrNotCSV = errors.New("input file must be a CSV file")
)

// Layout maps finding fields to CSV column names
type Layout struct {
	Name        string
	IP          string
	Port        string
	Service     string
	Vuln        string
	PluginID    string
	Description string
	Solution    string
}

var (
	// NessusLayout is the Nessus CSV export
	NessusLayout = Layout{
		Name:        "nessus",
		IP:          "Host",
		Port:        "Port",
		Service:     "Protocol",
		Vuln:        "Name",
		PluginID:    "Plugin ID",
		Description: "Description",
		Solution:    "Solution",
	}
	// AssetLayout is the asset-centric export with CVE identifiers
	AssetLayout = Layout{
		Name:        "asset",
		IP:          "Asset IP Address",
		Port:        "Service Port",
		Service:     "Service Protocol",
		Vuln:        "Vulnerability Title",
		PluginID:    "Vulnerability CVE IDs",
		Description: "Vulnerability Description",
		Solution:    "Vulnerability Solution",
	}
	// DefaultLayout is assumed when no known header set is present
	DefaultLayout = Layout{
		Name:        "default",
		IP:          "Host",
		Port:        "Port",
		Service:     "Service",
		Vuln:        "Vulnerability",
		PluginID:    "Plugin ID",
		Description: "Description",
		Solution:    "Solution",
	}
)

// DetectLayout picks the layout for a header row
func DetectLayout(header []string) Layout {
	has := make(map[string]bool, len(header))
	for _, h := range header {
		has[h] = true
	}
	switch {
	case has["Plugin ID"] && has["Host"]:
		return NessusLayout
	case has["Asset IP Address"] && has["Vulnerability Title"]:
		return AssetLayout
	default:
		return DefaultLayout
	}
}

// Categorizer assigns a category to a finding
type Categorizer interface {
	Apply(f models.Finding) models.Finding
}

// Loader reads scan exports
type Loader struct {
	categorizer Categorizer
	logger      *logrus.Logger
}

// NewLoader creates a loader. If categorizer is nil findings keep an empty category.
func NewLoader(categorizer Categorizer, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{categorizer: categorizer, logger: logger}
}

// ValidateInput checks that path exists and looks like a CSV file
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%w: %s", ErrNotCSV, path)
	}
	return nil
}

// LoadFile validates and parses the CSV file at path
func (l *Loader) LoadFile(path string) ([]models.Finding, error) {
	if err := ValidateInput(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	findings, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	l.logger.Infof("Parsed %d vulnerabilities from %s", len(findings), path)
	return findings, nil
}

// Load parses CSV content. Rows without ip, port or vulnerability name are skipped.
func (l *Loader) Load(r io.Reader) ([]models.Finding, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	layout := DetectLayout(header)
	l.logger.Debugf("Detected %s CSV layout", layout.Name)

	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var findings []models.Finding
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			l.logger.Warnf("Skipping unreadable row %d: %v", line, err)
			continue
		}

		get := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		f := models.Finding{
			IP:          get(layout.IP),
			Port:        get(layout.Port),
			Service:     get(layout.Service),
			Name:        get(layout.Vuln),
			PluginID:    get(layout.PluginID),
			Description: get(layout.Description),
			Solution:    get(layout.Solution),
		}
		if f.IP == "" || f.Port == "" || f.Name == "" {
			l.logger.Warnf("Skipping row %d with missing ip, port or vulnerability name", line)
			continue
		}

		if l.categorizer != nil {
			f = l.categorizer.Apply(f)
		}
		findings = append(findings, f)
	}

	return findings, nil
}

// FilterCategory keeps the findings whose category equals name, ignoring case
func FilterCategory(findings []models.Finding, name string) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if strings.EqualFold(string(f.Category), name) {
			out = append(out, f)
		}
	}
	return out
}
