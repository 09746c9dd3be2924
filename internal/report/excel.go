package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet cell styling, mirrored across the summary and per-file sheets.
const (
	headerFillColor = "2B3E50"
	passFillColor   = "D4EDDA"
	failFillColor   = "F8D7DA"
	warnFillColor   = "FFF3CD"
)

// WriteExcelReport renders one workbook: a Summary sheet plus one sheet of
// findings per file, with columns severity, kind, trace_index_or_blank,
// message, context.
func WriteExcelReport(path string, reports []FileReport) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	statusStyles := make(map[string]int, 3)
	for status, color := range map[string]string{
		"PASS":    passFillColor,
		"FAIL":    failFillColor,
		"WARNING": warnFillColor,
	} {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Font: &excelize.Font{Bold: true},
		})
		if err != nil {
			return err
		}
		statusStyles[status] = style
	}
	styleFor := func(value string) (int, bool) {
		switch strings.ToUpper(value) {
		case "PASS":
			return statusStyles["PASS"], true
		case "FAIL", "FAILURE", "ERROR":
			return statusStyles["FAIL"], true
		case "WARNING":
			return statusStyles["WARNING"], true
		}
		return 0, false
	}

	const summary = "Summary"
	if err := f.SetSheetName(f.GetSheetName(0), summary); err != nil {
		return err
	}
	summaryHeader := []interface{}{"File", "Status", "Findings", "Changes", "Duration (s)", "Message"}
	if err := writeRow(f, summary, 1, summaryHeader); err != nil {
		return err
	}
	for i, r := range reports {
		row := []interface{}{
			r.File,
			r.Status,
			len(r.Findings),
			r.Changes,
			fmt.Sprintf("%.1f", r.Duration.Seconds()),
			r.Message,
		}
		if err := writeRow(f, summary, i+2, row); err != nil {
			return err
		}
		cell := fmt.Sprintf("B%d", i+2)
		if style, ok := styleFor(r.Status); ok {
			if err := f.SetCellStyle(summary, cell, cell, style); err != nil {
				return err
			}
		}
	}
	if err := styleHeader(f, summary, len(summaryHeader), headerStyle); err != nil {
		return err
	}

	findingHeader := []interface{}{"severity", "kind", "trace_index_or_blank", "message", "context"}
	for _, r := range reports {
		sheet := safeSheetName(r.File)
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeRow(f, sheet, 1, findingHeader); err != nil {
			return err
		}
		for i, finding := range r.Findings {
			row := []interface{}{
				string(finding.Severity),
				finding.Kind,
				finding.Scope(),
				finding.Message,
				finding.Context,
			}
			if err := writeRow(f, sheet, i+2, row); err != nil {
				return err
			}
			cell := fmt.Sprintf("A%d", i+2)
			if style, ok := styleFor(statusForSeverity(string(finding.Severity))); ok {
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return err
				}
			}
		}
		if err := styleHeader(f, sheet, len(findingHeader), headerStyle); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func statusForSeverity(sev string) string {
	switch strings.ToLower(sev) {
	case "error":
		return "FAIL"
	case "warning":
		return "WARNING"
	default:
		return "PASS"
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleHeader(f *excelize.File, sheet string, cols int, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	// Generous fixed widths beat measuring every cell.
	endCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", endCol, 24)
}

// safeSheetName builds a valid Excel sheet name (31 chars, restricted
// characters) from a file name.
func safeSheetName(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	for _, ch := range `[]:*?/\` {
		name = strings.ReplaceAll(name, string(ch), "_")
	}
	if len(name) > 27 {
		name = name[:27]
	}
	if name == "" || strings.EqualFold(name, "Summary") {
		name = "file"
	}
	return name + "_Val"
}
