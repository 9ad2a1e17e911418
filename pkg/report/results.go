package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

// RunSummary is the content of results.json
type RunSummary struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Input       string         `json:"input"`
	DryRun      bool           `json:"dry_run"`
	Counts      map[string]int `json:"counts"`
	Rows        []models.Row   `json:"rows"`
}

// NewRunSummary creates a summary with a fresh run id
func NewRunSummary(input string, dryRun bool, rows []models.Row) RunSummary {
	return RunSummary{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Input:       input,
		DryRun:      dryRun,
		Counts:      CountByStatus(rows),
		Rows:        rows,
	}
}

// CountByStatus counts rows per status
func CountByStatus(rows []models.Row) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[string(r.Result.Status)]++
	}
	return counts
}

// SortedStatuses returns the keys of counts in a stable order
func SortedStatuses(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteResults writes the summary as indented JSON
func WriteResults(path string, s RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := mkdir(dir); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write results %s: %w", path, err)
	}
	return nil
}

// ReadResults loads a summary written by WriteResults
func ReadResults(path string) (RunSummary, error) {
	var s RunSummary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse results %s: %w", path, err)
	}
	return s, nil
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
