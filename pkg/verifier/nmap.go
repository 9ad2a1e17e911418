package verifier

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// nmapRun is the subset of nmap -oX output the checks inspect
type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Ports       []nmapPort   `xml:"ports>port"`
	HostScripts []nmapScript `xml:"hostscript>script"`
}

type nmapPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   string `xml:"portid,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name    string `xml:"name,attr"`
		Product string `xml:"product,attr"`
		Version string `xml:"version,attr"`
	} `xml:"service"`
	Scripts []nmapScript `xml:"script"`
}

type nmapScript struct {
	ID     string `xml:"id,attr"`
	Output string `xml:"output,attr"`
}

// readNmapXML flattens port states, service banners and script output into text.
// The command line echoed in the XML is not included, so script names cannot
// match output markers.
func readNmapXML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return "", fmt.Errorf("parse nmap xml: %w", err)
	}

	var b strings.Builder
	for _, h := range run.Hosts {
		for _, p := range h.Ports {
			fmt.Fprintf(&b, "%s/%s %s %s %s %s\n", p.PortID, p.Protocol, p.State.State,
				p.Service.Name, p.Service.Product, p.Service.Version)
			for _, s := range p.Scripts {
				fmt.Fprintf(&b, "%s: %s\n", s.ID, s.Output)
			}
		}
		for _, s := range h.HostScripts {
			fmt.Fprintf(&b, "%s: %s\n", s.ID, s.Output)
		}
	}
	return b.String(), nil
}

// portOr returns the finding port, or def when the export carries no usable port
func portOr(f models.Finding, def string) string {
	p := strings.TrimSpace(f.Port)
	if p == "" || p == "0" {
		return def
	}
	return p
}

// nmapScan builds `nmap -p <port> [extra] --script <script> <ip> -oA <dir>/nmap_scan`
func nmapScan(s *runner.ScriptResolver, f models.Finding, dir, port, script string, extra ...string) invocation {
	base := filepath.Join(dir, "nmap_scan")
	args := []string{"-p", port}
	args = append(args, extra...)
	args = append(args, "--script", s.Resolve(script), f.IP, "-oA", base)
	return invocation{
		cmd:     runner.Command{Name: "nmap", Args: args, OutputFile: base + ".txt"},
		nmapXML: base + ".xml",
	}
}
