package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/happycreater/binance-historical-data/pkg/types"
)

// WriteResultsXLSX writes per-job results and the run summary to an Excel
// workbook with a Results sheet and a Summary sheet.
func WriteResultsXLSX(results []types.DownloadResult, summary Summary, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const resultsSheet = "Results"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), resultsSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := writeResultsSheet(fx, resultsSheet, results, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, summarySheet, summary, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func writeResultsSheet(fx *excelize.File, sheet string, results []types.DownloadResult, headerStyle int) error {
	headers := []string{"Remote Path", "Symbol", "Date", "Interval", "Outcome", "Bytes", "Verified", "Duration (ms)", "Error"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	lastHeaderCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", lastHeaderCell, headerStyle); err != nil {
		return err
	}

	for rowIdx, result := range results {
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}
		values := []interface{}{
			result.Job.RemotePath,
			result.Job.Symbol,
			result.Job.Date,
			result.Job.Interval,
			string(result.Outcome),
			result.BytesWritten,
			result.Verified,
			result.Duration.Milliseconds(),
			errText,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := fx.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := fx.SetColWidth(sheet, "A", "A", 60); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "I", "I", 50)
}

func writeSummarySheet(fx *excelize.File, sheet string, summary Summary, headerStyle int) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total jobs", summary.Total},
		{"Downloaded", summary.Downloaded},
		{"Skipped (exists)", summary.Skipped},
		{"Not found", summary.NotFound},
		{"Failed", summary.Failed},
		{"Bytes downloaded", summary.BytesDownloaded},
		{"Archives merged", summary.Merges},
		{"Rows appended", summary.RowsAppended},
		{"Merge errors", summary.MergeErrors},
		{"Elapsed", summary.Duration.String()},
	}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err := fx.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "A", "A", 24)
}
