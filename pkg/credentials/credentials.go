// Package credentials checks scan credentials against the hosts of a
// sectioned scope before an authenticated scan is started.
package credentials

import (
	"bufio"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Section groups the hosts that share one set of credentials
type Section string

const (
	Linux   Section = "linux"
	Windows Section = "windows"
	Others  Section = "others"
)

// Sections lists every section in validation order
var Sections = []Section{Linux, Windows, Others}

// Title is the display name of the section
func (s Section) Title() string {
	switch s {
	case Linux:
		return "Linux"
	case Windows:
		return "Windows"
	default:
		return "Others"
	}
}

// Scope maps each section to its hosts
type Scope map[Section][]string

// Credential holds the lowercased key/value pairs of one section
type Credential map[string]string

func (c Credential) Username() string { return c["username"] }
func (c Credential) Password() string { return c["password"] }
func (c Credential) Domain() string   { return c["domain"] }

// Complete reports whether both a username and a password were given.
// An empty value still counts as given.
func (c Credential) Complete() bool {
	_, user := c["username"]
	_, pass := c["password"]
	return user && pass
}

// Credentials maps each section to its credential
type Credentials map[Section]Credential

// sectionHeader returns the section a line opens, if any
func sectionHeader(line string) (Section, bool) {
	lower := strings.ToLower(line)
	for _, s := range Sections {
		if strings.HasPrefix(lower, string(s)+":") {
			return s, true
		}
	}
	return "", false
}

// sectionLines calls fn for each content line under a section header.
// Blank lines, comment lines and lines before the first header are dropped.
func sectionLines(r io.Reader, fn func(Section, string)) error {
	var current Section
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if s, ok := sectionHeader(line); ok {
			current = s
			continue
		}
		if current != "" {
			fn(current, line)
		}
	}
	return sc.Err()
}

// ParseScope reads a scope listing with linux:, windows: and others: sections.
// Inline comments are stripped; lines that are not addresses are logged and skipped.
func ParseScope(r io.Reader, logger *logrus.Logger) (Scope, error) {
	if logger == nil {
		logger = logrus.New()
	}
	scope := Scope{}
	err := sectionLines(r, func(s Section, line string) {
		text := strings.TrimSpace(strings.SplitN(line, "#", 2)[0])
		addr, err := netip.ParseAddr(text)
		if err != nil {
			logger.Errorf("Invalid IP: %s", line)
			return
		}
		scope[s] = append(scope[s], addr.String())
	})
	if err != nil {
		return nil, err
	}
	for _, s := range Sections {
		logger.Infof("Loaded %d %s IPs", len(scope[s]), s)
	}
	return scope, nil
}

// ParseCredentials reads `"key" "value"` lines grouped by section
func ParseCredentials(r io.Reader, logger *logrus.Logger) (Credentials, error) {
	if logger == nil {
		logger = logrus.New()
	}
	creds := Credentials{}
	for _, s := range Sections {
		creds[s] = Credential{}
	}
	err := sectionLines(r, func(s Section, line string) {
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return
		}
		key := strings.ToLower(strings.Trim(parts[0], `"`))
		creds[s][key] = strings.Trim(parts[1], `"`)
	})
	if err != nil {
		return nil, err
	}
	for _, s := range Sections {
		if !creds[s].Complete() {
			logger.Warnf("%s credentials incomplete (missing username or password)", s)
		}
	}
	return creds, nil
}

// ParseScopeFile opens path and parses it with ParseScope
func ParseScopeFile(path string, logger *logrus.Logger) (Scope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseScope(f, logger)
}

// ParseCredentialsFile opens path and parses it with ParseCredentials
func ParseCredentialsFile(path string, logger *logrus.Logger) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCredentials(f, logger)
}
