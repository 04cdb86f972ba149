package projector_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
	"alzhcare-monitor/internal/projector"
	"alzhcare-monitor/internal/store"
)

func setupTestProjector(t *testing.T) (*projector.Projector, *store.AlertStore) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Store.KeyPrefix = "alzhcare:"
	cfg.Store.ClassCapacity = 50
	cfg.Store.HistoryAlertCapPerKind = 10
	cfg.Store.HistoryNormalCap = 5

	logger := zap.NewNop()
	s := store.New(cfg, redisClient, logger)
	return projector.New(cfg, s, logger), s
}

func seedHistory(ctx context.Context, s *store.AlertStore, date time.Time) {
	s.SaveReadingsHistory(ctx, []models.HistoryRecord{
		{
			ID: "h1", Status: "alert", Kind: models.KindBPM,
			OpenedAt: date, Timestamp: date.Add(2 * time.Minute),
			Value: 45, LastValue: 47, Occurrences: 3, DurationSec: 120,
			ReferenceRange: "60–100",
		},
		{
			ID: "h2", Status: "alert", Kind: models.KindSpO2,
			OpenedAt: date.AddDate(0, 0, -1), Timestamp: date.AddDate(0, 0, -1),
			Value: 92, LastValue: 92, Occurrences: 1,
		},
		{
			ID: "h3", Status: "normal",
			OpenedAt: date, Timestamp: date,
		},
	})
}

func TestBuildDailySummary_VitalsAlwaysFromLocal(t *testing.T) {
	p, s := setupTestProjector(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	seedHistory(ctx, s, day)

	remote := &models.RemoteDailySummary{Date: "2026-08-30"}
	remote.Falls = &struct {
		TotalFalls int                   `json:"total_falls"`
		Falls      []models.AlertEpisode `json:"falls"`
	}{TotalFalls: 2, Falls: []models.AlertEpisode{{ID: "f1"}, {ID: "f2"}}}
	remote.SOS = &struct {
		TotalSOSActivations int                   `json:"total_sos_activations"`
		Events              []models.AlertEpisode `json:"events"`
	}{TotalSOSActivations: 1, Events: []models.AlertEpisode{{ID: "s1"}}}
	remote.Locations = &struct {
		UniqueLocations int                    `json:"unique_locations"`
		Locations       []models.LocationVisit `json:"locations"`
	}{UniqueLocations: 4, Locations: []models.LocationVisit{{Name: "Casa"}}}

	summary := p.BuildDailySummary(ctx, "2026-08-30", remote)

	// 跌倒/SOS/位置的计数来自远端
	assert.Equal(t, 2, summary.FallsCount)
	assert.Equal(t, 1, summary.SOSCount)
	assert.Equal(t, 4, summary.LocationsCount)
	assert.Len(t, summary.Falls, 2)
	assert.Len(t, summary.Locations, 1)

	// 生命体征列表和计数始终来自本地历史，只取目标日期的 alert 条目
	require.Len(t, summary.VitalsAlerts, 1)
	assert.Equal(t, 1, summary.VitalsAlertsCount)
	assert.Equal(t, "h1", summary.VitalsAlerts[0].ID)
	assert.Equal(t, 3, summary.VitalsAlerts[0].Occurrences)
	assert.Equal(t, 120, summary.VitalsAlerts[0].DurationSec)
}

func TestBuildDailySummary_OfflineFallback(t *testing.T) {
	p, s := setupTestProjector(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	seedHistory(ctx, s, day)

	resolvedFall := s.Append(ctx, models.ClassFalls, models.AlertEpisode{Kind: models.KindFall})
	s.Resolve(ctx, models.ClassFalls, resolvedFall.ID)
	s.Append(ctx, models.ClassFalls, models.AlertEpisode{Kind: models.KindFall})

	open := s.Append(ctx, models.ClassSOS, models.AlertEpisode{Kind: models.KindSOS})
	resolved := s.Append(ctx, models.ClassSOS, models.AlertEpisode{Kind: models.KindSOS})
	s.Resolve(ctx, models.ClassSOS, resolved.ID)

	summary := p.BuildDailySummary(ctx, "2026-08-30", nil)

	// 离线：跌倒取全部（含已消解），SOS 只取未消解
	assert.Equal(t, 2, summary.FallsCount)
	require.Len(t, summary.SOSEvents, 1)
	assert.Equal(t, open.ID, summary.SOSEvents[0].ID)
	assert.Equal(t, 1, summary.SOSCount)
	assert.Equal(t, 0, summary.LocationsCount)

	require.Len(t, summary.VitalsAlerts, 1)
	assert.Equal(t, "h1", summary.VitalsAlerts[0].ID)
}

func TestBuildDailySummary_EmptyStore(t *testing.T) {
	p, _ := setupTestProjector(t)

	summary := p.BuildDailySummary(context.Background(), "2026-08-30", nil)

	assert.Equal(t, 0, summary.FallsCount)
	assert.Equal(t, 0, summary.SOSCount)
	assert.Equal(t, 0, summary.VitalsAlertsCount)
	assert.NotNil(t, summary.Falls)
	assert.NotNil(t, summary.VitalsAlerts)
}
