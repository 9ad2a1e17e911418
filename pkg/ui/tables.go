package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/credentials"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/report"
)

// Table renders a bordered table. Cells holding a known status are coloured.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) {
				if st, ok := StatusStyle(rows[row][col]); ok {
					return st.Padding(0, 1)
				}
			}
			return CellStyle
		})
	return t.String()
}

// Mark is the one-character status shown in credential tables
func Mark(status string) string {
	switch status {
	case credentials.StatusSuccess:
		return "✓"
	case credentials.StatusSkipped:
		return "!"
	default:
		return "✗"
	}
}

// CredentialReport renders one table per section with hosts followed by the
// statistics table and the overall success rate.
func CredentialReport(outcomes []credentials.Outcome) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Validation Results Summary"))
	b.WriteString("\n")

	for _, s := range credentials.Sections {
		var rows [][]string
		for _, o := range outcomes {
			if o.Section != s {
				continue
			}
			a := o.Summary()
			rows = append(rows, []string{o.IP, a.Protocol, Mark(a.Status), a.Details})
		}
		if len(rows) == 0 {
			continue
		}
		b.WriteString(SectionStyle.Render(s.Title() + " Systems:"))
		b.WriteString("\n")
		b.WriteString(Table([]string{"IP Address", "Protocol", "Status", "Details"}, rows))
		b.WriteString("\n")
	}

	stats := credentials.Summarize(outcomes)
	var rows [][]string
	for _, s := range credentials.Sections {
		rows = append(rows, statsRow(s.Title(), stats[s]))
	}
	rows = append(rows, statsRow("TOTAL", stats.Total()))

	b.WriteString(SectionStyle.Render("Overall Validation Statistics:"))
	b.WriteString("\n")
	b.WriteString(Table([]string{"System Type", "Total", "Successful", "Failed"}, rows))
	b.WriteString("\n")
	fmt.Fprintf(&b, "\nOverall Success Rate: %.1f%%\n", stats.SuccessRate())
	return b.String()
}

func statsRow(name string, s credentials.SectionStats) []string {
	return []string{name, strconv.Itoa(s.Total), strconv.Itoa(s.Successful), strconv.Itoa(s.Failed)}
}

// RunReport renders the status counts of a verification run
func RunReport(s report.RunSummary) string {
	var rows [][]string
	total := 0
	for _, status := range report.SortedStatuses(s.Counts) {
		rows = append(rows, []string{status, strconv.Itoa(s.Counts[status])})
		total += s.Counts[status]
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(total)})

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Verification Summary"))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("run " + s.RunID))
	b.WriteString("\n")
	b.WriteString(Table([]string{"Status", "Findings"}, rows))
	b.WriteString("\n")
	return b.String()
}
