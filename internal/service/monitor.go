package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"alzhcare-monitor/internal/aggregator"
	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/export"
	"alzhcare-monitor/internal/geofence"
	"alzhcare-monitor/internal/models"
	"alzhcare-monitor/internal/projector"
	"alzhcare-monitor/internal/reconciler"
	"alzhcare-monitor/internal/store"
)

// Monitor 监护服务主循环
// 持有所有协作组件，单一事件循环驱动四类周期任务：
//   - 当前数据轮询（在线 10s / 离线重连 10s）
//   - 快速历史轮询（30s）
//   - 每日汇总刷新（60s）
//   - 健康探测（30s）
//
// 所有改写本地存储的流程（轮询、MQTT 遥测、消解操作）经 mu 串行化，
// 保证分组折叠不会并发读改写同一个告警分区。
type Monitor struct {
	config     *config.Config
	store      *store.AlertStore
	aggregator *aggregator.Aggregator
	reconciler *reconciler.Reconciler
	projector  *projector.Projector
	backend    reconciler.Backend
	profile    *geofence.Service
	logger     *zap.Logger

	mu           sync.Mutex
	online       bool
	snapshot     *reconciler.Snapshot
	summary      models.DailySummary
	quickHistory []models.Reading
	geoResult    geofence.Result
}

// NewMonitor 创建监护服务
func NewMonitor(
	cfg *config.Config,
	s *store.AlertStore,
	agg *aggregator.Aggregator,
	rec *reconciler.Reconciler,
	proj *projector.Projector,
	backend reconciler.Backend,
	profile *geofence.Service,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:     cfg,
		store:      s,
		aggregator: agg,
		reconciler: rec,
		projector:  proj,
		backend:    backend,
		profile:    profile,
		logger:     logger,
		online:     true,
		snapshot:   &reconciler.Snapshot{},
	}
}

// Run 启动事件循环，阻塞直到 ctx 取消
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Monitor service starting",
		zap.Int("poll_current_sec", m.config.Poll.CurrentSec),
		zap.Int("poll_health_sec", m.config.Poll.HealthSec),
	)

	// 启动时先跑一轮，界面不用等第一个周期
	m.RefreshCurrent(ctx)
	m.RefreshQuickHistory(ctx)
	m.RefreshDailySummary(ctx)
	m.RunDailyCleanup(ctx)

	currentTicker := time.NewTicker(m.currentInterval())
	quickTicker := time.NewTicker(time.Duration(m.config.Poll.QuickHistorySec) * time.Second)
	summaryTicker := time.NewTicker(time.Duration(m.config.Poll.DailySummarySec) * time.Second)
	healthTicker := time.NewTicker(time.Duration(m.config.Poll.HealthSec) * time.Second)
	defer currentTicker.Stop()
	defer quickTicker.Stop()
	defer summaryTicker.Stop()
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor service stopping")
			return
		case <-currentTicker.C:
			wasOnline := m.Online()
			m.RefreshCurrent(ctx)
			m.RunDailyCleanup(ctx)
			if wasOnline != m.Online() {
				currentTicker.Reset(m.currentInterval())
			}
		case <-quickTicker.C:
			m.RefreshQuickHistory(ctx)
		case <-summaryTicker.C:
			m.RefreshDailySummary(ctx)
		case <-healthTicker.C:
			wasOnline := m.Online()
			m.ProbeHealth(ctx)
			if wasOnline != m.Online() {
				currentTicker.Reset(m.currentInterval())
			}
		}
	}
}

// currentInterval 当前数据轮询周期（离线时用重连周期）
func (m *Monitor) currentInterval() time.Duration {
	if m.Online() {
		return time.Duration(m.config.Poll.CurrentSec) * time.Second
	}
	return time.Duration(m.config.Poll.ReconnectSec) * time.Second
}

// RefreshCurrent 执行一次当前数据周期：协调、分类分组、围栏判定
func (m *Monitor) RefreshCurrent(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.reconciler.Refresh(ctx)
	if snap.Current == nil {
		m.transitionOffline(ctx)
		return
	}

	if !m.online {
		m.online = true
		m.logger.Info("Backend connection restored")
	}
	m.snapshot = snap

	reading := snap.Current.Reading(time.Now())
	events := snap.Current.Events()
	m.aggregator.ProcessReading(ctx, reading, events)
	m.checkGeofence(reading)
}

// transitionOffline 切换到离线降级视图
func (m *Monitor) transitionOffline(ctx context.Context) {
	if m.online {
		m.logger.Warn("Backend unreachable, switching to offline mode")
	}
	m.online = false
	m.snapshot = m.reconciler.OfflineSnapshot(ctx)
}

// ProbeHealth 健康探测；在线/离线状态由探测结果驱动，
// 探测失败时立即切换到离线降级视图，不等下一个当前数据周期
func (m *Monitor) ProbeHealth(ctx context.Context) {
	healthy := m.reconciler.Probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if healthy && !m.online {
		m.online = true
		m.logger.Info("Backend health probe succeeded, resuming online polling")
	}
	if !healthy && m.online {
		m.transitionOffline(ctx)
	}
}

// checkGeofence 围栏判定；离开所有围栏记录告警日志
func (m *Monitor) checkGeofence(reading models.Reading) {
	if reading.Location == nil {
		return
	}

	result := m.profile.CheckGeofence(reading.Location.Latitude, reading.Location.Longitude)
	if result.IsInGeofence != m.geoResult.IsInGeofence || result.LocationName != m.geoResult.LocationName {
		if result.IsInGeofence {
			m.logger.Info("Wearer entered geofence",
				zap.String("location", result.LocationName),
				zap.Float64("distance_m", result.DistanceMeters),
			)
		} else {
			m.logger.Warn("Wearer outside all configured geofences",
				zap.Float64("latitude", reading.Location.Latitude),
				zap.Float64("longitude", reading.Location.Longitude),
			)
		}
	}
	m.geoResult = result
}

// RefreshQuickHistory 拉取快速历史（最近读数序列）
func (m *Monitor) RefreshQuickHistory(ctx context.Context) {
	readings, err := m.backend.QuickHistory(ctx)
	if err != nil {
		m.logger.Warn("Quick history fetch failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.quickHistory = readings
	m.mu.Unlock()
}

// RefreshDailySummary 刷新当日汇总并缓存到本地每日统计
func (m *Monitor) RefreshDailySummary(ctx context.Context) {
	date := models.DateOf(time.Now())

	remote, err := m.backend.DailySummary(ctx, date)
	if err != nil {
		m.logger.Warn("Daily summary fetch degraded to local data", zap.Error(err))
		remote = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = m.projector.BuildDailySummary(ctx, date, remote)
	m.store.SaveDailyStats(ctx, date, m.summary)
}

// RunDailyCleanup 每天一次的保留窗口清理（用存储里的标记判断是否已做）
func (m *Monitor) RunDailyCleanup(ctx context.Context) {
	today := models.DateOf(time.Now())
	if m.store.LastCleanupDate(ctx) == today {
		return
	}

	retention := time.Duration(m.config.Store.RetentionDays) * 24 * time.Hour
	m.store.PurgeOlderThan(ctx, retention)
	m.store.SetLastCleanupDate(ctx, today)
	m.logger.Info("Daily retention cleanup completed",
		zap.String("date", today),
		zap.Int("retention_days", m.config.Store.RetentionDays),
	)
}

// HandleTelemetry 设备直推遥测入口（MQTT 消费者回调）
func (m *Monitor) HandleTelemetry(ctx context.Context, reading models.Reading, events models.EventFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.aggregator.ProcessReading(ctx, reading, events)
	m.checkGeofence(reading)
}

// ResolveFall 监护人确认一次跌倒
func (m *Monitor) ResolveFall(ctx context.Context, fallID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok := m.reconciler.ResolveFall(ctx, fallID)
	if ok && m.snapshot != nil {
		m.snapshot.FallAlerts = m.store.Episodes(ctx, models.ClassFalls)
	}
	return ok
}

// ResolveSOS 监护人解除一次 SOS
func (m *Monitor) ResolveSOS(ctx context.Context, sosID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok := m.reconciler.ResolveSOS(ctx, sosID)
	if ok && m.snapshot != nil {
		m.snapshot.SOSAlerts = m.store.Episodes(ctx, models.ClassSOS)
	}
	return ok
}

// Online 当前在线状态
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Snapshot 最近一次协调产出的告警视图
func (m *Monitor) Snapshot() *reconciler.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// DailySummary 最近一次构建的当日汇总
func (m *Monitor) DailySummary() models.DailySummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// QuickHistory 最近一次拉取的快速历史
func (m *Monitor) QuickHistory() []models.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quickHistory
}

// ExportReport 生成 Excel 留档（最近 N 天每日统计 + 当前全部生命体征告警）
func (m *Monitor) ExportReport(ctx context.Context, days int) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var summaries []models.DailySummary
	for i := 0; i < days; i++ {
		date := models.DateOf(now.AddDate(0, 0, -i))
		if summary := m.store.DailyStats(ctx, date); summary != nil {
			summaries = append(summaries, *summary)
		}
	}

	episodes := m.store.Episodes(ctx, models.ClassVitals)
	episodes = append(episodes, m.store.Episodes(ctx, models.ClassFalls)...)
	episodes = append(episodes, m.store.Episodes(ctx, models.ClassSOS)...)

	data, err := export.GenerateDailyStatsExport(summaries, episodes)
	if err != nil {
		return nil, "", err
	}
	return data, export.ExportFilename(now), nil
}
