// Package report writes verification outcomes as a spreadsheet and as the
// JSON results file served by the dashboard.
package report

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

// SheetName is the worksheet holding the verification rows
const SheetName = "Verification Report"

// Headers are the report columns in order
var Headers = []string{"IP", "Port", "Service", "Vulnerability", "Plugin ID", "Category", "Status", "PoC Folder Path"}

const statusColumn = 7

var statusFills = map[models.Status]string{
	models.StatusVerified:      "00FF00",
	models.StatusFalsePositive: "FF0000",
	models.StatusManual:        "FFFF00",
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func rowValues(r models.Row) []string {
	f := r.Finding
	return []string{f.IP, f.Port, f.Service, f.Name, f.PluginID, string(f.Category), string(r.Result.Status), r.Result.EvidencePath}
}

// WriteVerificationReport writes one row per finding to path
func WriteVerificationReport(path string, rows []models.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4A86E8"}, Pattern: 1},
		Border: thinBorder(),
	})
	if err != nil {
		return err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder()})
	if err != nil {
		return err
	}
	fillStyles := make(map[models.Status]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thinBorder(),
		})
		if err != nil {
			return err
		}
		fillStyles[status] = id
	}

	widths := make([]int, len(Headers))
	table := make([][]string, 0, len(rows)+1)
	table = append(table, Headers)
	for _, r := range rows {
		table = append(table, rowValues(r))
	}

	for i, values := range table {
		rowNum := i + 1
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		end, _ := excelize.CoordinatesToCellName(len(Headers), rowNum)

		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = v
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
		if err := f.SetSheetRow(SheetName, start, &cells); err != nil {
			return err
		}

		style := cellStyle
		if i == 0 {
			style = headerStyle
		}
		if err := f.SetCellStyle(SheetName, start, end, style); err != nil {
			return err
		}
		if i == 0 {
			continue
		}

		status := rows[i-1].Result.Status
		if status == models.StatusDryRun {
			continue
		}
		fill, ok := fillStyles[status]
		if !ok {
			fill = fillStyles[models.StatusManual]
		}
		cell, _ := excelize.CoordinatesToCellName(statusColumn, rowNum)
		if err := f.SetCellStyle(SheetName, cell, cell, fill); err != nil {
			return err
		}
	}

	for j, w := range widths {
		col, _ := excelize.ColumnNumberToName(j + 1)
		if err := f.SetColWidth(SheetName, col, col, float64(min(w+2, excelize.MaxColumnWidth))); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := mkdir(dir); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}
