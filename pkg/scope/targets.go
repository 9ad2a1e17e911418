package scope

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Targets are the validated entries of a scope file in first-seen order
type Targets struct {
	IPs     []string
	Subnets []string
	Invalid []string
}

// ParseScope reads one address or CIDR block per line. Blank lines and
// lines starting with # are ignored. Host prefixes (/32, /128) count as addresses.
func ParseScope(r io.Reader, logger *logrus.Logger) (Targets, error) {
	if logger == nil {
		logger = logrus.New()
	}
	var t Targets
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, isSubnet, ok := classify(line)
		if !ok {
			logger.Warnf("Invalid entry skipped: %s", line)
			t.Invalid = append(t.Invalid, line)
			continue
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		if isSubnet {
			t.Subnets = append(t.Subnets, entry)
		} else {
			t.IPs = append(t.IPs, entry)
		}
	}
	return t, sc.Err()
}

// ParseScopeFile parses the scope file at path
func ParseScopeFile(path string, logger *logrus.Logger) (Targets, error) {
	f, err := os.Open(path)
	if err != nil {
		return Targets{}, fmt.Errorf("open scope file: %w", err)
	}
	defer f.Close()
	return ParseScope(f, logger)
}

func classify(line string) (entry string, isSubnet, ok bool) {
	if !strings.Contains(line, "/") {
		addr, err := netip.ParseAddr(line)
		if err != nil {
			return "", false, false
		}
		return addr.String(), false, true
	}

	prefix, err := netip.ParsePrefix(line)
	if err != nil {
		return "", false, false
	}
	if prefix.IsSingleIP() {
		return prefix.Addr().String(), false, true
	}
	// keep the host bits as written, nmap scans the enclosing block either way
	return prefix.String(), true, true
}

// Split writes batches of targets into cfg.TempDir as scope_N.txt and
// subnet_N.txt and returns the file paths in order.
func Split(cfg Config, t Targets) ([]string, error) {
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	var files []string
	write := func(prefix string, entries []string, size int) error {
		for i, n := 0, 1; i < len(entries); i, n = i+size, n+1 {
			end := i + size
			if end > len(entries) {
				end = len(entries)
			}
			name := filepath.Join(cfg.TempDir, fmt.Sprintf("%s_%d.txt", prefix, n))
			if err := os.WriteFile(name, []byte(strings.Join(entries[i:end], "\n")), 0644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			files = append(files, name)
		}
		return nil
	}

	if err := write("scope", t.IPs, max(cfg.IPsPerFile, 1)); err != nil {
		return files, err
	}
	if err := write("subnet", t.Subnets, max(cfg.SubnetsPerFile, 1)); err != nil {
		return files, err
	}
	return files, nil
}

const exampleScope = `# Example scope file
# Individual IPs:
192.168.1.1
10.0.0.1
172.16.1.1

# Subnets:
192.168.0.0/24
10.0.0.0/16
172.16.0.0/12
`

// CreateExample writes an example scope file unless path already exists
func CreateExample(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(exampleScope), 0644); err != nil {
		return false, err
	}
	return true, nil
}
