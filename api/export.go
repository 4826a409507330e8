/*
export.go - Monthly summary export as an Excel workbook

PURPOSE:
  Renders a month's PeriodSummary plus its underlying entries as a
  two-sheet .xlsx workbook: "Summary" with the aggregated figures and
  "Entries" with the raw normalized rows. Payroll teams live in Excel;
  this is the handoff format.

FORMAT:
  Sheet "Summary":
    Title row, then key/value figures (calendar days, working days,
    worked, overtime, leave), then per-project shares, then weekly
    totals.
  Sheet "Entries":
    One row per time entry: date, start, end, break, worked, project.

SEE ALSO:
  - handlers.go: GetSummary for the JSON variant
  - ../engine/aggregate.go: The fold that produces the figures
*/
package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/warp/timekeep/engine"
)

// ExportSummary streams the monthly summary workbook (?month=YYYY-MM).
func (h *Handler) ExportSummary(w http.ResponseWriter, r *http.Request) {
	summary, emp, err := h.buildSummary(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	entries, err := h.Store.EntriesInRange(r.Context(), emp.ID, summary.Period.Start, summary.Period.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	buf, filename, err := BuildSummaryWorkbook(*summary, *emp, entries)
	if err != nil {
		h.Logger.Error("workbook generation failed", "employee", emp.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	buf.WriteTo(w)
}

// BuildSummaryWorkbook renders the summary and its entries as .xlsx.
// Returns the file content, a suggested filename, and any render error.
func BuildSummaryWorkbook(summary engine.PeriodSummary, emp engine.Employee, entries []engine.TimeEntry) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	idx, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(summarySheet, "A", "A", 24)
	f.SetColWidth(summarySheet, "B", "C", 14)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})

	monthLabel := summary.Period.Start.Time.Format("January 2006")
	f.SetCellValue(summarySheet, "A1", fmt.Sprintf("%s - %s", emp.Name, monthLabel))
	f.MergeCell(summarySheet, "A1", "C1")
	f.SetCellStyle(summarySheet, "A1", "A1", titleStyle)

	row := 3
	figure := func(label string, value any) {
		f.SetCellValue(summarySheet, cell("A", row), label)
		f.SetCellValue(summarySheet, cell("B", row), value)
		row++
	}
	figure("Calendar days", summary.CalendarDays)
	figure("Working days", summary.WorkingDays)
	figure("Worked hours", summary.WorkedHours.String())
	figure("Overtime hours", summary.OvertimeHours.String())
	figure("Leave days", summary.LeaveDays)

	row++
	f.SetCellValue(summarySheet, cell("A", row), "Project")
	f.SetCellValue(summarySheet, cell("B", row), "Hours")
	f.SetCellValue(summarySheet, cell("C", row), "Share %")
	f.SetCellStyle(summarySheet, cell("A", row), cell("C", row), headerStyle)
	row++
	for _, p := range summary.ByProject {
		f.SetCellValue(summarySheet, cell("A", row), p.Project)
		f.SetCellValue(summarySheet, cell("B", row), p.Hours.String())
		f.SetCellValue(summarySheet, cell("C", row), p.Share.StringFixed(1))
		row++
	}

	row++
	f.SetCellValue(summarySheet, cell("A", row), "Week of")
	f.SetCellValue(summarySheet, cell("B", row), "Hours")
	f.SetCellStyle(summarySheet, cell("A", row), cell("B", row), headerStyle)
	row++
	for _, wk := range summary.Weeks {
		f.SetCellValue(summarySheet, cell("A", row), wk.WeekStart.String())
		f.SetCellValue(summarySheet, cell("B", row), wk.Hours.String())
		row++
	}

	const entrySheet = "Entries"
	if _, err := f.NewSheet(entrySheet); err != nil {
		return nil, "", err
	}
	f.SetColWidth(entrySheet, "A", "A", 12)
	f.SetColWidth(entrySheet, "B", "C", 10)
	f.SetColWidth(entrySheet, "D", "E", 12)
	f.SetColWidth(entrySheet, "F", "G", 18)

	headers := []string{"Date", "Start", "End", "Break (min)", "Worked (h)", "Project", "Notes"}
	for i, hName := range headers {
		f.SetCellValue(entrySheet, cell(colName(i), 1), hName)
	}
	f.SetCellStyle(entrySheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, e := range entries {
		r := i + 2
		f.SetCellValue(entrySheet, cell("A", r), e.Date.String())
		f.SetCellValue(entrySheet, cell("B", r), e.Start.Format("15:04"))
		f.SetCellValue(entrySheet, cell("C", r), e.End.Format("15:04"))
		f.SetCellValue(entrySheet, cell("D", r), e.BreakMinutes)
		f.SetCellValue(entrySheet, cell("E", r), e.WorkedHours().String())
		f.SetCellValue(entrySheet, cell("F", r), e.Project)
		f.SetCellValue(entrySheet, cell("G", r), e.Notes)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("timesheet_%s_%s.xlsx", emp.ID, summary.Period.Start.Time.Format("2006-01"))
	return buf, filename, nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
