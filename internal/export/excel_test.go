package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"alzhcare-monitor/internal/export"
	"alzhcare-monitor/internal/models"
)

func TestGenerateDailyStatsExport(t *testing.T) {
	value := 45.0
	summaries := []models.DailySummary{
		{
			Date:              "2026-08-30",
			FallsCount:        2,
			SOSCount:          1,
			VitalsAlertsCount: 3,
			LocationsCount:    2,
			UpdatedAt:         time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC),
		},
		{
			Date:      "2026-08-29",
			UpdatedAt: time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC),
		},
	}
	episodes := []models.AlertEpisode{
		{
			ID:               "1756555200000-abcd1234",
			Kind:             models.KindBPM,
			Severity:         models.SeverityMedium,
			OpenedAt:         time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			LastOccurrenceAt: time.Date(2026, 8, 30, 12, 2, 0, 0, time.UTC),
			Occurrences:      3,
			DurationSec:      120,
			Value:            &value,
			ReferenceRange:   "60-100",
		},
	}

	data, err := export.GenerateDailyStatsExport(summaries, episodes)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Daily Stats", "Alert History"}, f.GetSheetList())

	date, err := f.GetCellValue("Daily Stats", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", date)

	falls, err := f.GetCellValue("Daily Stats", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", falls)

	kind, err := f.GetCellValue("Alert History", "B2")
	require.NoError(t, err)
	assert.Equal(t, "bpm", kind)

	occurrences, err := f.GetCellValue("Alert History", "F2")
	require.NoError(t, err)
	assert.Equal(t, "3", occurrences)
}

func TestGenerateEmptyExport(t *testing.T) {
	data, err := export.GenerateDailyStatsExport(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Daily Stats", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	// 无数据行
	empty, err := f.GetCellValue("Daily Stats", "A2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestExportFilename(t *testing.T) {
	name := export.ExportFilename(time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "alzhcare_report_20260830_150405.xlsx", name)
}
