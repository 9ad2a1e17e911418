package subnet

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the analysis workbook
const (
	SheetOverall = "Overall Summary"
	SheetSummary = "Subnet Summary"
	SheetDetails = "IP Details"
)

// SummaryHeaders are the columns of the Subnet Summary sheet
var SummaryHeaders = []string{
	"Subnet", "IP Version", "Network Class", "Prefix", "Netmask", "Network ID",
	"Broadcast", "First Usable", "Last Usable", "Total IPs", "Usable IPs",
}

func summaryRow(a Analysis) []interface{} {
	if !a.Valid() {
		return []interface{}{a.Input, "Invalid", "Error", "Error", "Error", "Error", "Error", "Error", "Error", 0, 0}
	}
	return []interface{}{
		a.Input, fmt.Sprintf("IPv%d", a.Version), a.Class, fmt.Sprintf("/%d", a.Prefix), a.Netmask,
		a.Network, a.Broadcast, a.FirstUsable, a.LastUsable, number(a.Total), number(a.Usable),
	}
}

// number keeps counts numeric in the sheet when they fit
func number(b *big.Int) interface{} {
	if b.IsInt64() {
		return b.Int64()
	}
	return b.String()
}

type styles struct {
	header, cell, errorCell int
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	}); err != nil {
		return s, err
	}
	if s.cell, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	}); err != nil {
		return s, err
	}
	s.errorCell, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "FF0000"},
		Border: border,
	})
	return s, err
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}, style int) error {
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(values), row)
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, start, end, style)
}

func setWidths(f *excelize.File, sheet string, cols int, width float64) error {
	last, _ := excelize.ColumnNumberToName(cols)
	return f.SetColWidth(sheet, "A", last, width)
}

// WriteWorkbook writes the three-sheet analysis report to path
func WriteWorkbook(path string, analyses []Analysis, stats Stats, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetOverall); err != nil {
		return err
	}
	for _, name := range []string{SheetSummary, SheetDetails} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	st, err := newStyles(f)
	if err != nil {
		return err
	}

	overall := [][]interface{}{
		{"Total Subnets", stats.TotalSubnets},
		{"Valid Subnets", stats.Valid},
		{"Invalid Subnets", stats.Invalid},
		{"Total IP Addresses", number(stats.TotalIPs)},
		{"Total Usable IP Addresses", number(stats.UsableIPs)},
		{"Report Generated", generated.Format("2006-01-02 15:04:05")},
	}
	if err := writeRow(f, SheetOverall, 1, []interface{}{"Metric", "Value"}, st.header); err != nil {
		return err
	}
	for i, row := range overall {
		if err := writeRow(f, SheetOverall, i+2, row, st.cell); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetOverall, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetOverall, "B", "B", 30); err != nil {
		return err
	}

	header := make([]interface{}, len(SummaryHeaders))
	for i, h := range SummaryHeaders {
		header[i] = h
	}
	if err := writeRow(f, SheetSummary, 1, header, st.header); err != nil {
		return err
	}
	for i, a := range analyses {
		values := summaryRow(a)
		if err := writeRow(f, SheetSummary, i+2, values, st.cell); err != nil {
			return err
		}
		for col, v := range values {
			if s, ok := v.(string); ok && strings.Contains(s, "Error") {
				cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
				if err := f.SetCellStyle(SheetSummary, cell, cell, st.errorCell); err != nil {
					return err
				}
			}
		}
	}
	if err := setWidths(f, SheetSummary, len(SummaryHeaders), 18); err != nil {
		return err
	}

	for i, a := range analyses {
		col := DetailColumn(a)
		values := make([]interface{}, 0, len(col)+1)
		values = append(values, a.Input)
		for _, v := range col {
			values = append(values, v)
		}
		top, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetSheetCol(SheetDetails, top, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetDetails, top, top, st.header); err != nil {
			return err
		}
	}
	if len(analyses) > 0 {
		if err := setWidths(f, SheetDetails, len(analyses), 20); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// ListFileName is the per subnet address list name
func ListFileName(input string) string {
	r := strings.NewReplacer("/", "_", ":", "-", "\\", "_")
	return r.Replace(input) + "_ips.txt"
}

// WriteLists writes one address list per valid analysis into dir
func WriteLists(dir string, analyses []Analysis) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var files []string
	for _, a := range analyses {
		if !a.Valid() {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "# Subnet: %s\n", a.Input)
		for _, line := range Metadata(a) {
			if line != "" {
				fmt.Fprintf(&b, "# %s\n", line)
			}
		}
		if a.Truncated {
			fmt.Fprintf(&b, "# Listing truncated after %d addresses\n", len(a.Addresses))
		}
		b.WriteString(strings.Join(a.Addresses, "\n"))
		b.WriteString("\n")

		name := filepath.Join(dir, ListFileName(a.Input))
		if err := os.WriteFile(name, []byte(b.String()), 0644); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}
