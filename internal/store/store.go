package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
)

// 存储分区后缀（键 = 前缀 + 后缀）
const (
	keyVitalsAlerts    = "vitals_alerts"
	keyFallAlerts      = "fall_alerts"
	keySOSAlerts       = "sos_alerts"
	keyLastReading     = "last_reading"
	keyDailyStats      = "daily_stats"
	keyReadingsHistory = "readings_history"
	keyLastCleanup     = "last_cleanup"
)

// PartitionStats 单个分区的占用统计
type PartitionStats struct {
	Items int `json:"items"`
	Bytes int `json:"bytes"`
}

// AlertStore 本地持久化告警存储（按键分区的 Redis 存储）
// 是系统中唯一的共享可变资源：聚合器负责折叠写入，协调器负责
// 消解与远端回写，读取方（汇总投影、展示层）从不修改。
// 所有读路径在存储缺失或数据损坏时降级为"无数据"，从不向调用方抛错；
// 所有写路径在存储失败时记录日志并吞掉错误（该类遥测缓存允许丢数据）。
type AlertStore struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
	mu          sync.Mutex
}

// New 创建告警存储
func New(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *AlertStore {
	return &AlertStore{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// classKey 告警类别对应的分区键
func (s *AlertStore) classKey(class models.AlertClass) string {
	switch class {
	case models.ClassFalls:
		return s.config.Store.KeyPrefix + keyFallAlerts
	case models.ClassSOS:
		return s.config.Store.KeyPrefix + keySOSAlerts
	default:
		return s.config.Store.KeyPrefix + keyVitalsAlerts
	}
}

func (s *AlertStore) key(suffix string) string {
	return s.config.Store.KeyPrefix + suffix
}

// readJSON 读取并反序列化一个分区；缺失或损坏时返回 false
func (s *AlertStore) readJSON(ctx context.Context, key string, dest interface{}) bool {
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Failed to read storage key",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		// 损坏的数据按"空"处理，不向上抛
		s.logger.Warn("Corrupt data in storage key, treating as empty",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

// writeJSON 序列化并写入一个分区；失败只记录日志
func (s *AlertStore) writeJSON(ctx context.Context, key string, value interface{}) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to marshal storage value",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	if err := s.redisClient.Set(ctx, key, jsonData, 0).Err(); err != nil {
		s.logger.Error("Failed to write storage key",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Episodes 返回一个类别的全部告警事件（最新在前）
// 从不出错：存储缺失或损坏时返回空列表
func (s *AlertStore) Episodes(ctx context.Context, class models.AlertClass) []models.AlertEpisode {
	var episodes []models.AlertEpisode
	if !s.readJSON(ctx, s.classKey(class), &episodes) {
		return []models.AlertEpisode{}
	}
	return episodes
}

// Append 新建一个告警事件：补全 ID 和时间戳，插入队首，按类别容量截断
func (s *AlertStore) Append(ctx context.Context, class models.AlertClass, ep models.AlertEpisode) models.AlertEpisode {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if ep.OpenedAt.IsZero() {
		ep.OpenedAt = now
	}
	if ep.LastOccurrenceAt.IsZero() {
		ep.LastOccurrenceAt = ep.OpenedAt
	}
	if ep.ID == "" {
		ep.ID = models.NewEpisodeID(ep.OpenedAt)
	}
	if ep.Occurrences < 1 {
		ep.Occurrences = 1
	}

	episodes := s.Episodes(ctx, class)
	episodes = append([]models.AlertEpisode{ep}, episodes...)

	// 只保留最近的 N 条，最旧的被丢弃
	if limit := s.config.Store.ClassCapacity; len(episodes) > limit {
		episodes = episodes[:limit]
	}

	s.writeJSON(ctx, s.classKey(class), episodes)

	s.logger.Debug("Alert episode appended",
		zap.String("class", string(class)),
		zap.String("kind", string(ep.Kind)),
		zap.String("id", ep.ID),
	)

	return ep
}

// ReplaceEpisodes 整体替换一个类别的事件列表（聚合器折叠、协调器回写用）
func (s *AlertStore) ReplaceEpisodes(ctx context.Context, class models.AlertClass, episodes []models.AlertEpisode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit := s.config.Store.ClassCapacity; len(episodes) > limit {
		episodes = episodes[:limit]
	}
	s.writeJSON(ctx, s.classKey(class), episodes)
}

// Resolve 按 ID 消解一个告警事件
// ID 按字符串比较（容忍数字/字符串形式不一致）；幂等：重复消解会刷新 ResolvedAt。
// 找不到时返回 false。
func (s *AlertStore) Resolve(ctx context.Context, class models.AlertClass, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	episodes := s.Episodes(ctx, class)
	for i := range episodes {
		if episodes[i].ID != id {
			continue
		}
		now := time.Now()
		episodes[i].Resolved = true
		episodes[i].ResolvedAt = &now
		s.writeJSON(ctx, s.classKey(class), episodes)

		s.logger.Info("Alert episode resolved",
			zap.String("class", string(class)),
			zap.String("id", id),
		)
		return true
	}

	return false
}

// SaveLastReading 覆盖"最后一次读数"槽位
// status=="normal" 时同时转发到读数历史；alert 读数的历史条目由聚合器
// 以分组明细的形式写入。
func (s *AlertStore) SaveLastReading(ctx context.Context, reading models.Reading, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.LastReading{
		Timestamp: time.Now(),
		Reading:   reading,
		Status:    status,
	}
	s.writeJSON(ctx, s.key(keyLastReading), rec)

	if status == "normal" {
		history := s.history(ctx)
		history = append([]models.HistoryRecord{{
			ID:           models.NewEpisodeID(reading.Timestamp),
			Status:       "normal",
			OpenedAt:     reading.Timestamp,
			Timestamp:    reading.Timestamp,
			Occurrences:  1,
			BPM:          reading.BPM,
			SpO2:         reading.SpO2,
			TemperatureC: reading.TemperatureC,
		}}, history...)
		s.writeHistory(ctx, history)
	}
}

// LastReading 读取"最后一次读数"槽位；无数据返回 nil
func (s *AlertStore) LastReading(ctx context.Context) *models.LastReading {
	var rec models.LastReading
	if !s.readJSON(ctx, s.key(keyLastReading), &rec) {
		return nil
	}
	return &rec
}

// ReadingsHistory 返回读数历史（最新在前）
func (s *AlertStore) ReadingsHistory(ctx context.Context) []models.HistoryRecord {
	return s.history(ctx)
}

// SaveReadingsHistory 保存读数历史并实施容量上限
func (s *AlertStore) SaveReadingsHistory(ctx context.Context, records []models.HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeHistory(ctx, records)
}

func (s *AlertStore) history(ctx context.Context) []models.HistoryRecord {
	var records []models.HistoryRecord
	if !s.readJSON(ctx, s.key(keyReadingsHistory), &records) {
		return []models.HistoryRecord{}
	}
	return records
}

// writeHistory 写入历史前实施上限：alert 条目每种最多 HistoryAlertCapPerKind，
// normal 条目最多 HistoryNormalCap，无论输入顺序和体量，合并后的历史不会无界增长
func (s *AlertStore) writeHistory(ctx context.Context, records []models.HistoryRecord) {
	alertPerKind := make(map[models.AlertKind]int)
	normalCount := 0
	capped := make([]models.HistoryRecord, 0, len(records))

	for _, rec := range records {
		if rec.Status == "alert" {
			if alertPerKind[rec.Kind] >= s.config.Store.HistoryAlertCapPerKind {
				continue
			}
			alertPerKind[rec.Kind]++
		} else {
			if normalCount >= s.config.Store.HistoryNormalCap {
				continue
			}
			normalCount++
		}
		capped = append(capped, rec)
	}

	s.writeJSON(ctx, s.key(keyReadingsHistory), capped)
}

// DailyStats 按日期读取每日汇总；无数据返回 nil
func (s *AlertStore) DailyStats(ctx context.Context, date string) *models.DailySummary {
	all := s.dailyStats(ctx)
	if summary, ok := all[date]; ok {
		return &summary
	}
	return nil
}

// SaveDailyStats 保存某日汇总，只保留最近 N 天，最旧的日期被淘汰
func (s *AlertStore) SaveDailyStats(ctx context.Context, date string, summary models.DailySummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.dailyStats(ctx)
	summary.UpdatedAt = time.Now()
	all[date] = summary

	if len(all) > s.config.Store.DailyStatsDays {
		dates := make([]string, 0, len(all))
		for d := range all {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates[:len(dates)-s.config.Store.DailyStatsDays] {
			delete(all, d)
		}
	}

	s.writeJSON(ctx, s.key(keyDailyStats), all)
}

func (s *AlertStore) dailyStats(ctx context.Context) map[string]models.DailySummary {
	all := make(map[string]models.DailySummary)
	s.readJSON(ctx, s.key(keyDailyStats), &all)
	return all
}

// UnresolvedAlerts 返回全部未消解的告警（离线快照用）
func (s *AlertStore) UnresolvedAlerts(ctx context.Context, class models.AlertClass) []models.AlertEpisode {
	episodes := s.Episodes(ctx, class)
	unresolved := make([]models.AlertEpisode, 0, len(episodes))
	for _, ep := range episodes {
		if !ep.Resolved {
			unresolved = append(unresolved, ep)
		}
	}
	return unresolved
}

// PurgeOlderThan 保留窗口清理
// 每个告警类别中 LastOccurrenceAt（为零时回退 OpenedAt）早于窗口的事件被丢弃；
// 读数历史只清理过期的 alert 条目，normal 条目不按时间淘汰（上限已单独控制）。
func (s *AlertStore) PurgeOlderThan(ctx context.Context, retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)

	for _, class := range []models.AlertClass{models.ClassVitals, models.ClassFalls, models.ClassSOS} {
		episodes := s.Episodes(ctx, class)
		kept := make([]models.AlertEpisode, 0, len(episodes))
		for _, ep := range episodes {
			ts := ep.LastOccurrenceAt
			if ts.IsZero() {
				ts = ep.OpenedAt
			}
			if ts.After(cutoff) {
				kept = append(kept, ep)
			}
		}
		if len(kept) != len(episodes) {
			s.writeJSON(ctx, s.classKey(class), kept)
			s.logger.Info("Purged old alert episodes",
				zap.String("class", string(class)),
				zap.Int("dropped", len(episodes)-len(kept)),
			)
		}
	}

	history := s.history(ctx)
	kept := make([]models.HistoryRecord, 0, len(history))
	for _, rec := range history {
		if rec.Status == "alert" && !rec.Timestamp.After(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	if len(kept) != len(history) {
		s.writeHistory(ctx, kept)
	}
}

// StorageFootprint 返回每个分区的条目数与字节数（可观测性用）
// 键缺失时对应分区计为 0，从不出错
func (s *AlertStore) StorageFootprint(ctx context.Context) map[string]PartitionStats {
	stats := make(map[string]PartitionStats)
	for _, suffix := range []string{
		keyVitalsAlerts, keyFallAlerts, keySOSAlerts,
		keyLastReading, keyDailyStats, keyReadingsHistory,
	} {
		val, err := s.redisClient.Get(ctx, s.key(suffix)).Result()
		if err != nil {
			stats[suffix] = PartitionStats{}
			continue
		}

		items := 0
		var asList []json.RawMessage
		if json.Unmarshal([]byte(val), &asList) == nil {
			items = len(asList)
		} else {
			var asMap map[string]json.RawMessage
			if json.Unmarshal([]byte(val), &asMap) == nil {
				items = len(asMap)
			} else {
				items = 1
			}
		}

		stats[suffix] = PartitionStats{Items: items, Bytes: len(val)}
	}
	return stats
}

// LastCleanupDate 读取保留清理标记（本地日历日期，清理每天只跑一次）
func (s *AlertStore) LastCleanupDate(ctx context.Context) string {
	val, err := s.redisClient.Get(ctx, s.key(keyLastCleanup)).Result()
	if err != nil {
		return ""
	}
	return val
}

// SetLastCleanupDate 更新保留清理标记
func (s *AlertStore) SetLastCleanupDate(ctx context.Context, date string) {
	if err := s.redisClient.Set(ctx, s.key(keyLastCleanup), date, 0).Err(); err != nil {
		s.logger.Error("Failed to set cleanup marker",
			zap.Error(err),
		)
	}
}

// ClearAll 清空本存储拥有的全部键（整体重置用，不做部分清理）
func (s *AlertStore) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{
		s.key(keyVitalsAlerts), s.key(keyFallAlerts), s.key(keySOSAlerts),
		s.key(keyLastReading), s.key(keyDailyStats), s.key(keyReadingsHistory),
		s.key(keyLastCleanup),
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		s.logger.Error("Failed to clear storage",
			zap.Error(err),
		)
		return
	}
	s.logger.Info("All local storage cleared")
}
