package projector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
	"alzhcare-monitor/internal/store"
)

// Projector 每日汇总投影器
// 纯派生：从本地存储（必要时加上远端汇总载荷）构建 DailySummary，
// 从不修改任何事件。同一字段只有一个权威来源：
//   - 生命体征告警的列表和计数始终来自本地读数历史（只有本地分组引擎
//     掌握次数/持续时间明细）
//   - 跌倒/SOS/位置的计数在远端可用时来自远端
//
// 避免同一指标出现两个不同的数字。
type Projector struct {
	config *config.Config
	store  *store.AlertStore
	logger *zap.Logger
}

// New 创建投影器
func New(cfg *config.Config, s *store.AlertStore, logger *zap.Logger) *Projector {
	return &Projector{
		config: cfg,
		store:  s,
		logger: logger,
	}
}

// BuildDailySummary 构建某日汇总
// remote 为 nil 时走离线回退路径（全部字段从本地存储派生）
func (p *Projector) BuildDailySummary(ctx context.Context, date string, remote *models.RemoteDailySummary) models.DailySummary {
	summary := models.DailySummary{
		Date:         date,
		UpdatedAt:    time.Now(),
		Falls:        []models.AlertEpisode{},
		SOSEvents:    []models.AlertEpisode{},
		VitalsAlerts: []models.AlertEpisode{},
		Locations:    []models.LocationVisit{},
	}

	// 生命体征：始终从本地读数历史重建（目标日期内的 alert 条目）
	for _, rec := range p.store.ReadingsHistory(ctx) {
		if rec.Status != "alert" {
			continue
		}
		if models.DateOf(rec.Timestamp) != date {
			continue
		}
		summary.VitalsAlerts = append(summary.VitalsAlerts, rec.Episode())
	}
	summary.VitalsAlertsCount = len(summary.VitalsAlerts)

	if remote != nil {
		if remote.Falls != nil {
			summary.FallsCount = remote.Falls.TotalFalls
			if remote.Falls.Falls != nil {
				summary.Falls = remote.Falls.Falls
			}
		}
		if remote.SOS != nil {
			summary.SOSCount = remote.SOS.TotalSOSActivations
			if remote.SOS.Events != nil {
				summary.SOSEvents = remote.SOS.Events
			}
		}
		if remote.Locations != nil {
			summary.LocationsCount = remote.Locations.UniqueLocations
			if remote.Locations.Locations != nil {
				summary.Locations = remote.Locations.Locations
			}
		}
		return summary
	}

	// 离线回退：跌倒取全部（含已消解），SOS 取未消解
	summary.Falls = p.store.Episodes(ctx, models.ClassFalls)
	summary.FallsCount = len(summary.Falls)
	summary.SOSEvents = p.store.UnresolvedAlerts(ctx, models.ClassSOS)
	summary.SOSCount = len(summary.SOSEvents)

	return summary
}
