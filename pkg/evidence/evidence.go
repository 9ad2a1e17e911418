// Package evidence manages the on-disk evidence tree: one folder per finding,
// grouped by verification status and category.
package evidence

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

const (
	// MetadataFile holds the finding that produced an evidence folder
	MetadataFile = "vulnerability_info.json"
	// ManualStepsFile holds the remediation note for findings needing a manual check
	ManualStepsFile = "manual_steps.txt"

	maxNameLength = 200
	pendingDir    = "pending"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	separators  = regexp.MustCompile(`[\s_]+`)
)

// SanitizeName makes s safe to use as a single path element
func SanitizeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = separators.ReplaceAllString(s, "_")
	s = truncate(s, maxNameLength)
	if s == "" {
		return "unnamed"
	}
	return s
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// FolderName returns the evidence folder name for a finding: <name>_<ip>_<port>,
// followed by the plugin id when there is one. The name is shortened first so
// the suffix always survives the length cap.
func FolderName(f models.Finding) string {
	suffix := "_" + f.IP + "_" + f.Port
	if id := strings.TrimSpace(f.PluginID); id != "" {
		suffix += "_" + id
	}
	suffix = separators.ReplaceAllString(unsafeChars.ReplaceAllString(suffix, "_"), "_")
	name := SanitizeName(f.Name)
	if room := maxNameLength - utf8.RuneCountInString(suffix); room > 0 {
		name = truncate(name, room)
	}
	return SanitizeName(name + suffix)
}

// Store creates and moves evidence folders below a root directory
type Store struct {
	root     string
	toolsDir string
	logger   *logrus.Logger
}

// NewStore creates a store rooted at outputDir
func NewStore(outputDir, toolsDir string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{root: outputDir, toolsDir: toolsDir, logger: logger}
}

// Root returns the output directory
func (s *Store) Root() string {
	return s.root
}

// Setup creates the status/category directory tree and the tools directory
func (s *Store) Setup() error {
	dirs := []string{
		filepath.Join(s.root, models.StatusDryRun.Dir()),
		filepath.Join(s.root, pendingDir),
	}
	for _, status := range []models.Status{models.StatusVerified, models.StatusFalsePositive, models.StatusManual} {
		for _, c := range models.Categories {
			dirs = append(dirs, filepath.Join(s.root, status.Dir(), c.Dir()))
		}
	}
	if s.toolsDir != "" {
		dirs = append(dirs, s.toolsDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	s.logger.Debugf("Evidence tree ready under %s", s.root)
	return nil
}

// Stage creates a working folder for f and writes its metadata.
// The folder is moved into the status tree by Finalize.
func (s *Store) Stage(f models.Finding) (string, error) {
	base := filepath.Join(s.root, pendingDir, f.Category.Dir())
	dir := filepath.Join(base, FolderName(f))

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear staging folder: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Warnf("Failed to create evidence folder %s: %v", dir, err)
		dir = filepath.Join(base, fallbackName(f))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create evidence folder: %w", err)
		}
	}

	if err := WriteMetadata(dir, f); err != nil {
		return "", err
	}
	return dir, nil
}

// Finalize moves a staged folder to <root>/<status>/<category>/<name> and returns the new path
func (s *Store) Finalize(staged string, status models.Status, f models.Finding) (string, error) {
	parent := filepath.Join(s.root, status.Dir(), f.Category.Dir())
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("create status folder: %w", err)
	}

	target := filepath.Join(parent, filepath.Base(staged))
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("replace evidence folder: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		return "", fmt.Errorf("move evidence folder: %w", err)
	}
	return target, nil
}

// ManualFolder returns the folder used when a verifier could not run at all:
// <root>/manual/<category>/<folder>
func (s *Store) ManualFolder(f models.Finding) string {
	return filepath.Join(s.root, models.StatusManual.Dir(), f.Category.Dir(), FolderName(f))
}

// DryRunFolder is the evidence path reported for dry runs
func (s *Store) DryRunFolder() string {
	return filepath.Join(s.root, models.StatusDryRun.Dir())
}

// WriteMetadata writes f as JSON into dir
func WriteMetadata(dir string, f models.Finding) error {
	data, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads the finding stored in dir
func ReadMetadata(dir string) (models.Finding, error) {
	var f models.Finding
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return f, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse metadata: %w", err)
	}
	return f, nil
}

// WriteManualSteps writes the remediation note for a finding into dir
func WriteManualSteps(dir, note string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManualStepsFile), []byte(note), 0644)
}

func fallbackName(f models.Finding) string {
	h := fnv.New32a()
	h.Write([]byte(f.Name + f.IP + f.Port + f.PluginID))
	return fmt.Sprintf("vuln_%08x", h.Sum32())
}
