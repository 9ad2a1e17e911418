// Package subnet expands CIDR blocks into address ranges and summarises them.
package subnet

import (
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"os"
	"strings"
)

// DefaultHostLimit caps the addresses listed per subnet
const DefaultHostLimit = 65536

// ErrNoSubnets is returned when the input holds no entries
var ErrNoSubnets = errors.New("no valid subnets found in the input file")

// Analysis describes one input line
type Analysis struct {
	Input       string
	Err         error
	Version     int
	Network     string
	Broadcast   string
	Netmask     string
	Prefix      int
	FirstUsable string
	LastUsable  string
	Total       *big.Int
	Usable      *big.Int
	Class       string
	Addresses   []string // every address of the block, up to the host limit
	Truncated   bool
}

// Valid reports whether the input parsed as an address or CIDR block
func (a Analysis) Valid() bool {
	return a.Err == nil
}

// Stats aggregates a set of analyses
type Stats struct {
	TotalSubnets int
	Valid        int
	Invalid      int
	TotalIPs     *big.Int
	UsableIPs    *big.Int
}

// ReadSubnets returns the non-empty, non-comment lines of path
func ReadSubnets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoSubnets
	}
	return out, nil
}

func parse(input string) (netip.Prefix, error) {
	if !strings.Contains(input, "/") {
		addr, err := netip.ParseAddr(input)
		if err != nil {
			return netip.Prefix{}, err
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	p, err := netip.ParsePrefix(input)
	if err != nil {
		return netip.Prefix{}, err
	}
	return p.Masked(), nil
}

// Analyze expands input. limit caps the listed addresses; 0 means DefaultHostLimit.
func Analyze(input string, limit int) Analysis {
	if limit <= 0 {
		limit = DefaultHostLimit
	}
	a := Analysis{Input: input, Total: new(big.Int), Usable: new(big.Int)}

	p, err := parse(input)
	if err != nil {
		a.Err = err
		return a
	}

	bits := p.Addr().BitLen()
	network := p.Addr()
	last := lastAddr(p)

	a.Prefix = p.Bits()
	a.Network = network.String()
	a.Netmask = netmask(bits, p.Bits()).String()
	a.Total.Lsh(big.NewInt(1), uint(bits-p.Bits()))

	if network.Is4() {
		a.Version = 4
		a.Broadcast = last.String()
		a.Class = class(network.As4()[0])
	} else {
		a.Version = 6
		a.Broadcast = "N/A (IPv6)"
		a.Class = "N/A (IPv6)"
	}

	// host bits left after the prefix
	hostBits := bits - p.Bits()
	switch {
	case hostBits == 0:
		a.FirstUsable, a.LastUsable = network.String(), network.String()
		a.Usable.SetInt64(1)
	case hostBits == 1:
		a.FirstUsable, a.LastUsable = network.String(), last.String()
		a.Usable.SetInt64(2)
	case a.Version == 4:
		a.FirstUsable, a.LastUsable = network.Next().String(), last.Prev().String()
		a.Usable.Sub(a.Total, big.NewInt(2))
	default:
		// the subnet-router anycast address is the only reserved one in IPv6
		a.FirstUsable, a.LastUsable = network.Next().String(), last.String()
		a.Usable.Sub(a.Total, big.NewInt(1))
	}

	for addr := network; len(a.Addresses) < limit; addr = addr.Next() {
		a.Addresses = append(a.Addresses, addr.String())
		if addr == last {
			break
		}
	}
	a.Truncated = big.NewInt(int64(len(a.Addresses))).Cmp(a.Total) < 0
	return a
}

// AnalyzeAll analyses every input and totals the results
func AnalyzeAll(inputs []string, limit int) ([]Analysis, Stats) {
	stats := Stats{TotalSubnets: len(inputs), TotalIPs: new(big.Int), UsableIPs: new(big.Int)}
	out := make([]Analysis, 0, len(inputs))
	for _, in := range inputs {
		a := Analyze(in, limit)
		if a.Valid() {
			stats.Valid++
			stats.TotalIPs.Add(stats.TotalIPs, a.Total)
			stats.UsableIPs.Add(stats.UsableIPs, a.Usable)
		} else {
			stats.Invalid++
		}
		out = append(out, a)
	}
	return out, stats
}

func class(firstOctet byte) string {
	switch {
	case firstOctet < 128:
		return "Class A"
	case firstOctet < 192:
		return "Class B"
	case firstOctet < 224:
		return "Class C"
	case firstOctet < 240:
		return "Class D (Multicast)"
	default:
		return "Class E (Reserved)"
	}
}

func netmask(bits, ones int) netip.Addr {
	b := make([]byte, bits/8)
	for i := range b {
		switch {
		case ones >= 8:
			b[i] = 0xff
			ones -= 8
		case ones > 0:
			b[i] = byte(0xff << (8 - ones))
			ones = 0
		}
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().AsSlice()
	mask := netmask(len(b)*8, p.Bits()).AsSlice()
	for i := range b {
		b[i] |= ^mask[i]
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

// DetailColumn is the IP Details column for a: the addresses followed by a
// metadata block. Invalid inputs yield the error lines.
func DetailColumn(a Analysis) []string {
	if !a.Valid() {
		return []string{"INVALID SUBNET: " + a.Input, "Error: " + a.Err.Error()}
	}
	col := append([]string{}, a.Addresses...)
	if a.Truncated {
		col = append(col, fmt.Sprintf("... truncated after %d addresses", len(a.Addresses)))
	}
	return append(col, append([]string{""}, Metadata(a)...)...)
}

// Metadata renders the summary lines of a valid analysis
func Metadata(a Analysis) []string {
	return []string{
		"Network ID: " + a.Network,
		"Broadcast: " + a.Broadcast,
		"Netmask: " + a.Netmask,
		fmt.Sprintf("Prefix: /%d", a.Prefix),
		"",
		"First Usable: " + a.FirstUsable,
		"Last Usable: " + a.LastUsable,
		"",
		"Total IPs: " + a.Total.String(),
		"Usable IPs: " + a.Usable.String(),
		"Network Class: " + a.Class,
	}
}
