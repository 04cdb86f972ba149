package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"alzhcare-monitor/internal/models"
)

// DailyStatsHeader 每日统计导出表头
var DailyStatsHeader = []string{
	"Date",
	"Falls",
	"SOS Activations",
	"Vitals Alerts",
	"Locations Visited",
	"Updated At",
}

// AlertHistoryHeader 告警明细导出表头
var AlertHistoryHeader = []string{
	"ID",
	"Kind",
	"Severity",
	"Opened At",
	"Last Occurrence",
	"Occurrences",
	"Duration (s)",
	"Value",
	"Reference Range",
	"Resolved",
}

// GenerateDailyStatsExport 生成每日统计 Excel 文件（监护人留档用）
// summaries 按日期倒序传入，空列表只生成表头
func GenerateDailyStatsExport(summaries []models.DailySummary, episodes []models.AlertEpisode) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	if err := writeDailyStatsSheet(f, summaries); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeAlertHistorySheet(f, episodes); err != nil {
		f.Close()
		return nil, err
	}

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

func writeDailyStatsSheet(f *excelize.File, summaries []models.DailySummary) error {
	sheetName := "Daily Stats"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeHeader(f, sheetName, DailyStatsHeader); err != nil {
		return err
	}

	columnWidths := []float64{14, 10, 16, 14, 18, 22}
	if err := setColumnWidths(f, sheetName, columnWidths); err != nil {
		return err
	}

	for rowIdx, summary := range summaries {
		row := rowIdx + 2 // 第1行是表头
		values := []interface{}{
			summary.Date,
			summary.FallsCount,
			summary.SOSCount,
			summary.VitalsAlertsCount,
			summary.LocationsCount,
			summary.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writeRow(f, sheetName, row, values); err != nil {
			return err
		}
	}

	return freezeHeader(f, sheetName)
}

func writeAlertHistorySheet(f *excelize.File, episodes []models.AlertEpisode) error {
	sheetName := "Alert History"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := writeHeader(f, sheetName, AlertHistoryHeader); err != nil {
		return err
	}

	columnWidths := []float64{26, 12, 10, 22, 22, 12, 12, 10, 16, 10}
	if err := setColumnWidths(f, sheetName, columnWidths); err != nil {
		return err
	}

	for rowIdx, ep := range episodes {
		row := rowIdx + 2

		var value interface{}
		if ep.Value != nil {
			value = *ep.Value
		}
		resolved := "No"
		if ep.Resolved {
			resolved = "Yes"
		}

		values := []interface{}{
			ep.ID,
			string(ep.Kind),
			ep.Severity,
			ep.OpenedAt.Format("2006-01-02 15:04:05"),
			ep.LastOccurrenceAt.Format("2006-01-02 15:04:05"),
			ep.Occurrences,
			ep.DurationSec,
			value,
			ep.ReferenceRange,
			resolved,
		}
		if err := writeRow(f, sheetName, row, values); err != nil {
			return err
		}
	}

	return freezeHeader(f, sheetName)
}

// writeHeader 写表头并应用样式
func writeHeader(f *excelize.File, sheetName string, headers []string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func setColumnWidths(f *excelize.File, sheetName string, widths []float64) error {
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheetName string, row int, values []interface{}) error {
	for col, value := range values {
		if value == nil || value == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
		}
	}
	return nil
}

// freezeHeader 冻结表头行
func freezeHeader(f *excelize.File, sheetName string) error {
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// ExportFilename 导出文件名（含生成时间）
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("alzhcare_report_%s.xlsx", now.Format("20060102_150405"))
}
