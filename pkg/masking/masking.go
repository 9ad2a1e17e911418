// Package masking hides the middle octets of IPv4 addresses and subnets so
// scope lists can be shared in reports.
package masking

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInputNotFound is returned when the input file does not exist
var ErrInputNotFound = errors.New("input file not found")

// Stats counts how the lines of an input were handled
type Stats struct {
	Masked    int
	Unchanged int
	Empty     int
}

// Total is the number of lines read
func (s Stats) Total() int {
	return s.Masked + s.Unchanged + s.Empty
}

// Written is the number of entries in the output
func (s Stats) Written() int {
	return s.Masked + s.Unchanged
}

// MaskIP replaces the second and third octet with "xx".
// 202.58.132.56 becomes 202.xx.xx.56 and 10.1.2.0/24 becomes 10.xx.xx.0/24.
// Values that do not have four dot separated parts are returned unchanged.
func MaskIP(s string) string {
	addr, suffix := s, ""
	if i := strings.Index(s, "/"); i >= 0 {
		addr, suffix = s[:i], s[i:]
	}
	octets := strings.Split(addr, ".")
	if len(octets) != 4 {
		return s
	}
	return octets[0] + ".xx.xx." + octets[3] + suffix
}

// Process masks every non-empty line of r and writes the entries to w joined by newlines
func Process(r io.Reader, w io.Writer) (Stats, error) {
	var (
		stats   Stats
		entries []string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			stats.Empty++
			continue
		}
		masked := MaskIP(line)
		if masked == line {
			stats.Unchanged++
		} else {
			stats.Masked++
		}
		entries = append(entries, masked)
	}
	if err := sc.Err(); err != nil {
		return stats, err
	}

	if _, err := io.WriteString(w, strings.Join(entries, "\n")); err != nil {
		return stats, err
	}
	return stats, nil
}

// ProcessFile masks the lines of in and writes them to out. Nothing is written
// when in cannot be read.
func ProcessFile(in, out string) (Stats, error) {
	f, err := os.Open(in)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stats{}, fmt.Errorf("%w: %s", ErrInputNotFound, in)
		}
		return Stats{}, err
	}
	defer f.Close()

	var buf strings.Builder
	stats, err := Process(f, &buf)
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", in, err)
	}
	if err := os.WriteFile(out, []byte(buf.String()), 0644); err != nil {
		return stats, fmt.Errorf("write %s: %w", out, err)
	}
	return stats, nil
}
