package aggregator

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"alzhcare-monitor/internal/classifier"
	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
	"alzhcare-monitor/internal/store"
)

// Aggregator 告警聚合器（窗口化去重/分组）
// 把原始读数流转成有界增长的 AlertEpisode：时间上接近的同类异常折叠进
// 同一事件并累计次数与持续时间，真正新的异常开启新事件。
// 生理传感器有噪声，不分组的话一次持续异常会刷爆告警列表；
// 时间窗口加数值容差用来区分"还在异常"和"再次异常但情况不同"，
// 后者对趋势型的环境温度尤其关键。
type Aggregator struct {
	config     *config.Config
	store      *store.AlertStore
	classifier *classifier.Classifier
	logger     *zap.Logger
}

// New 创建聚合器
func New(cfg *config.Config, s *store.AlertStore, c *classifier.Classifier, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		config:     cfg,
		store:      s,
		classifier: c,
		logger:     logger,
	}
}

// ProcessReading 处理一次读数及其布尔事件
// 1. 阈值分类
// 2. 更新"最后一次读数"槽位（并转发读数历史）
// 3. 每条异常判定折叠进告警存储和读数历史
// 4. 跌倒/SOS 事件的去抖建档，SOS 关断时自动消解
func (a *Aggregator) ProcessReading(ctx context.Context, reading models.Reading, events models.EventFlags) []models.Finding {
	t := reading.Timestamp
	if t.IsZero() {
		t = time.Now()
		reading.Timestamp = t
	}

	findings := a.classifier.Classify(reading)

	status := "normal"
	if len(findings) > 0 {
		status = "alert"
	}
	a.store.SaveLastReading(ctx, reading, status)

	for _, finding := range findings {
		a.foldFinding(ctx, finding, t, reading.Location)
		a.foldHistory(ctx, finding, t)
	}

	a.processFall(ctx, t, reading, events)
	a.processSOS(ctx, t, reading, events)

	return findings
}

// groupingWindow 同类发现的折叠窗口
func (a *Aggregator) groupingWindow() time.Duration {
	return time.Duration(a.config.Alert.GroupingWindowSec) * time.Second
}

// eventDebounce 跌倒/SOS 的重触发抑制窗口
func (a *Aggregator) eventDebounce() time.Duration {
	return time.Duration(a.config.Alert.EventDebounceSec) * time.Second
}

// temperatureDrifted 温度折叠的附加容差检查
// 即使在时间窗口内，温度漂移超过容差也按新事件处理
func (a *Aggregator) temperatureDrifted(kind models.AlertKind, value, lastValue float64) bool {
	if kind != models.KindTemperature {
		return false
	}
	return math.Abs(value-lastValue) > a.config.Alert.TemperatureToleranceC
}

// foldFinding 将一条异常判定折叠进生命体征告警存储
// 折叠目标是该种类最新的未消解事件；超出窗口或温度漂移超容差则开新事件。
func (a *Aggregator) foldFinding(ctx context.Context, finding models.Finding, t time.Time, loc *models.Location) {
	episodes := a.store.Episodes(ctx, models.ClassVitals)

	for i := range episodes {
		if episodes[i].Kind != finding.Kind {
			continue
		}
		// 同种类最新的事件就是唯一可能的折叠目标
		if episodes[i].Resolved {
			break
		}
		if t.Sub(episodes[i].LastOccurrenceAt) > a.groupingWindow() {
			break
		}
		lastValue := finding.Value
		if episodes[i].LastValue != nil {
			lastValue = *episodes[i].LastValue
		}
		if a.temperatureDrifted(finding.Kind, finding.Value, lastValue) {
			break
		}

		episodes[i].Fold(t, &finding.Value)
		a.store.ReplaceEpisodes(ctx, models.ClassVitals, episodes)

		a.logger.Debug("Vital finding folded into episode",
			zap.String("kind", string(finding.Kind)),
			zap.String("id", episodes[i].ID),
			zap.Int("occurrences", episodes[i].Occurrences),
		)
		return
	}

	value := finding.Value
	lastValue := finding.Value
	ep := models.AlertEpisode{
		ID:               models.NewEpisodeID(t),
		Kind:             finding.Kind,
		Severity:         finding.Severity,
		OpenedAt:         t,
		LastOccurrenceAt: t,
		Occurrences:      1,
		Value:            &value,
		LastValue:        &lastValue,
		ReferenceRange:   finding.ReferenceRange,
		Location:         loc,
	}

	episodes = append([]models.AlertEpisode{ep}, episodes...)
	a.store.ReplaceEpisodes(ctx, models.ClassVitals, episodes)

	a.logger.Info("New vital alert episode",
		zap.String("kind", string(finding.Kind)),
		zap.Float64("value", finding.Value),
		zap.String("id", ep.ID),
	)
}

// foldHistory 将一条异常判定折叠进读数历史（与告警存储同样的折叠规则）
func (a *Aggregator) foldHistory(ctx context.Context, finding models.Finding, t time.Time) {
	records := a.store.ReadingsHistory(ctx)

	for i := range records {
		if records[i].Status != "alert" || records[i].Kind != finding.Kind {
			continue
		}
		if t.Sub(records[i].Timestamp) > a.groupingWindow() {
			break
		}
		if a.temperatureDrifted(finding.Kind, finding.Value, records[i].LastValue) {
			break
		}

		records[i].Occurrences++
		records[i].Timestamp = t
		records[i].DurationSec = int(t.Sub(records[i].OpenedAt) / time.Second)
		records[i].LastValue = finding.Value
		a.store.SaveReadingsHistory(ctx, records)
		return
	}

	rec := models.HistoryRecord{
		ID:             models.NewEpisodeID(t),
		Status:         "alert",
		OpenedAt:       t,
		Timestamp:      t,
		Occurrences:    1,
		Kind:           finding.Kind,
		Value:          finding.Value,
		LastValue:      finding.Value,
		ReferenceRange: finding.ReferenceRange,
		Severity:       finding.Severity,
	}
	records = append([]models.HistoryRecord{rec}, records...)
	a.store.SaveReadingsHistory(ctx, records)
}

// processFall 跌倒事件的去抖建档
// 只有当不存在跌倒事件、最近一条已消解、或距其最后时间超过抑制窗口时
// 才开新事件，否则并入最近一条（重触发抑制）。
func (a *Aggregator) processFall(ctx context.Context, t time.Time, reading models.Reading, events models.EventFlags) {
	if !events.FallDetected {
		return
	}

	episodes := a.store.Episodes(ctx, models.ClassFalls)
	if len(episodes) > 0 {
		last := &episodes[0]
		if !last.Resolved && t.Sub(last.LastOccurrenceAt) <= a.eventDebounce() {
			last.Fold(t, nil)
			a.store.ReplaceEpisodes(ctx, models.ClassFalls, episodes)
			return
		}
	}

	ep := a.store.Append(ctx, models.ClassFalls, models.AlertEpisode{
		Kind:             models.KindFall,
		Severity:         models.SeverityHigh,
		OpenedAt:         t,
		LastOccurrenceAt: t,
		Message:          "Fall detected",
		Location:         reading.Location,
		Sensors:          sensorSnapshot(reading, events),
	})

	a.logger.Warn("New fall alert episode",
		zap.String("id", ep.ID),
		zap.Time("at", t),
	)
}

// processSOS SOS 事件处理
// 按下：与跌倒相同的去抖建档；松开：自动消解当前唯一未消解的 SOS 事件，
// 不等待监护人手工操作。
func (a *Aggregator) processSOS(ctx context.Context, t time.Time, reading models.Reading, events models.EventFlags) {
	episodes := a.store.Episodes(ctx, models.ClassSOS)

	if !events.SOSActive {
		// SOS 按钮从按下转为松开：自动消解
		for _, ep := range episodes {
			if !ep.Resolved {
				a.store.Resolve(ctx, models.ClassSOS, ep.ID)
				a.logger.Info("SOS episode auto-resolved (button released)",
					zap.String("id", ep.ID),
				)
				break
			}
		}
		return
	}

	if len(episodes) > 0 {
		last := &episodes[0]
		if !last.Resolved && t.Sub(last.LastOccurrenceAt) <= a.eventDebounce() {
			last.Fold(t, nil)
			a.store.ReplaceEpisodes(ctx, models.ClassSOS, episodes)
			return
		}
	}

	ep := a.store.Append(ctx, models.ClassSOS, models.AlertEpisode{
		Kind:             models.KindSOS,
		Severity:         models.SeverityCritical,
		OpenedAt:         t,
		LastOccurrenceAt: t,
		Message:          "SOS button pressed",
		Location:         reading.Location,
		Sensors:          sensorSnapshot(reading, events),
	})

	a.logger.Warn("New SOS alert episode",
		zap.String("id", ep.ID),
		zap.Time("at", t),
	)
}

// sensorSnapshot 建档时附带的原始传感器快照
func sensorSnapshot(reading models.Reading, events models.EventFlags) *models.SensorSnapshot {
	return &models.SensorSnapshot{
		BPM:         reading.BPM,
		SpO2:        reading.SpO2,
		Temperature: reading.TemperatureC,
		Fall:        events.FallDetected,
		SOS:         events.SOSActive,
	}
}
