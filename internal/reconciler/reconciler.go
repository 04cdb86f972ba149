package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
	"alzhcare-monitor/internal/store"
)

// Backend 后端 REST 协作者接口（client.BackendClient 实现）
type Backend interface {
	CurrentData(ctx context.Context) (*models.CurrentData, error)
	VitalsAlerts(ctx context.Context) ([]models.AlertEpisode, error)
	Falls(ctx context.Context) ([]models.AlertEpisode, error)
	SOSEvents(ctx context.Context) ([]models.AlertEpisode, error)
	DailySummary(ctx context.Context, date string) (*models.RemoteDailySummary, error)
	QuickHistory(ctx context.Context) ([]models.Reading, error)
	ResolveFall(ctx context.Context, fallID string) error
	ResolveSOS(ctx context.Context, sosID string) error
	Health(ctx context.Context) bool
}

// Snapshot 一次协调周期产出的统一告警视图
type Snapshot struct {
	Current      *models.CurrentData
	VitalsAlerts []models.AlertEpisode
	FallAlerts   []models.AlertEpisode
	SOSAlerts    []models.AlertEpisode
	Online       bool
	Degraded     bool      // 降级模式：数据来自本地存储
	LastUpdate   time.Time // 最后一次成功更新时间
}

// Reconciler 远端/本地数据协调器
// 每个轮询周期按类别优先级合并远端与本地集合：
//   - 生命体征告警：可达时以远端为准，本地副本仅作离线回退
//   - 跌倒/SOS：本地非空时以本地为准（跌倒消解是纯本地工作流，
//     不能被可能过期的远端历史覆盖）
//
// 单个子请求失败绝不中止整个刷新周期，对应集合降级为回退值。
type Reconciler struct {
	config  *config.Config
	backend Backend
	store   *store.AlertStore
	logger  *zap.Logger
}

// New 创建协调器
func New(cfg *config.Config, backend Backend, s *store.AlertStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		config:  cfg,
		backend: backend,
		store:   s,
		logger:  logger,
	}
}

// Refresh 执行一次在线协调周期
// 当前数据与三个告警集合并发拉取（相互无顺序依赖），全部落定后合并
func (r *Reconciler) Refresh(ctx context.Context) *Snapshot {
	var (
		current    *models.CurrentData
		currentErr error

		remoteVitals []models.AlertEpisode
		vitalsErr    error
		remoteFalls  []models.AlertEpisode
		fallsErr     error
		remoteSOS    []models.AlertEpisode
		sosErr       error
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		current, currentErr = r.backend.CurrentData(ctx)
	}()
	go func() {
		defer wg.Done()
		remoteVitals, vitalsErr = r.backend.VitalsAlerts(ctx)
	}()
	go func() {
		defer wg.Done()
		remoteFalls, fallsErr = r.backend.Falls(ctx)
	}()
	go func() {
		defer wg.Done()
		remoteSOS, sosErr = r.backend.SOSEvents(ctx)
	}()
	wg.Wait()

	if currentErr != nil {
		r.logger.Warn("Failed to fetch current data",
			zap.Error(currentErr),
		)
	}

	snapshot := &Snapshot{
		Current:    current,
		Online:     true,
		LastUpdate: time.Now(),
	}

	// 生命体征：远端为准；拉取失败降级为本地副本
	if vitalsErr != nil {
		r.logger.Warn("Vitals alerts fetch degraded to local store",
			zap.Error(vitalsErr),
		)
		snapshot.VitalsAlerts = r.store.Episodes(ctx, models.ClassVitals)
	} else {
		snapshot.VitalsAlerts = remoteVitals
		r.importRemoteVitals(ctx, remoteVitals)
	}

	// 跌倒/SOS：本地非空时本地为准，远端历史仅在本地为空时使用
	snapshot.FallAlerts = r.mergeLocalFirst(ctx, models.ClassFalls, remoteFalls, fallsErr)
	snapshot.SOSAlerts = r.mergeLocalFirst(ctx, models.ClassSOS, remoteSOS, sosErr)

	return snapshot
}

// mergeLocalFirst 本地优先的合并：本地非空 → 本地；本地为空 → 远端（失败则空）
func (r *Reconciler) mergeLocalFirst(ctx context.Context, class models.AlertClass, remote []models.AlertEpisode, remoteErr error) []models.AlertEpisode {
	local := r.store.Episodes(ctx, class)
	if len(local) > 0 {
		return local
	}
	if remoteErr != nil {
		r.logger.Warn("Remote alert fetch failed and local store empty",
			zap.String("class", string(class)),
			zap.Error(remoteErr),
		)
		return []models.AlertEpisode{}
	}
	return remote
}

// importRemoteVitals 把远端生命体征告警并入本地副本（离线回退用）
// 按 ID 或（种类, 开始时间）去重，避免重复导入
func (r *Reconciler) importRemoteVitals(ctx context.Context, remote []models.AlertEpisode) {
	if len(remote) == 0 {
		return
	}

	local := r.store.Episodes(ctx, models.ClassVitals)
	seen := make(map[string]bool, len(local))
	for _, ep := range local {
		seen[ep.ID] = true
		seen[string(ep.Kind)+"@"+ep.OpenedAt.UTC().Format(time.RFC3339)] = true
	}

	for _, ep := range remote {
		if ep.ID != "" && seen[ep.ID] {
			continue
		}
		if seen[string(ep.Kind)+"@"+ep.OpenedAt.UTC().Format(time.RFC3339)] {
			continue
		}
		r.store.Append(ctx, models.ClassVitals, ep)
	}
}

// OfflineSnapshot 基于本地存储构建降级视图
// 跌倒列表包含已消解的（当日回顾需要完整历史），生命体征和 SOS 只取未消解的
func (r *Reconciler) OfflineSnapshot(ctx context.Context) *Snapshot {
	snapshot := &Snapshot{
		VitalsAlerts: r.store.UnresolvedAlerts(ctx, models.ClassVitals),
		FallAlerts:   r.store.Episodes(ctx, models.ClassFalls),
		SOSAlerts:    r.store.UnresolvedAlerts(ctx, models.ClassSOS),
		Online:       false,
		Degraded:     true,
	}

	if last := r.store.LastReading(ctx); last != nil {
		snapshot.LastUpdate = last.Timestamp
		snapshot.Current = &models.CurrentData{
			ESP32: &models.SensorSnapshot{
				BPM:         last.Reading.BPM,
				SpO2:        last.Reading.SpO2,
				Temperature: last.Reading.TemperatureC,
			},
			Location:  last.Reading.Location,
			Timestamp: &last.Reading.Timestamp,
		}
	}

	return snapshot
}

// ResolveSOS 消解一次 SOS 告警
// 先尝试远端调用；无论远端成败都执行本地消解（本地是界面一致性的
// 事实来源，网络失败不能让界面卡在未消解状态）
func (r *Reconciler) ResolveSOS(ctx context.Context, sosID string) bool {
	remoteErr := r.backend.ResolveSOS(ctx, sosID)
	if remoteErr != nil {
		r.logger.Warn("Remote SOS resolve failed, falling back to local",
			zap.String("sos_id", sosID),
			zap.Error(remoteErr),
		)
	}

	localOK := r.store.Resolve(ctx, models.ClassSOS, sosID)
	return localOK || remoteErr == nil
}

// ResolveFall 消解一次跌倒告警
// 纯本地工作流：跌倒没有远端消解端点，本地同步更新
func (r *Reconciler) ResolveFall(ctx context.Context, fallID string) bool {
	return r.store.Resolve(ctx, models.ClassFalls, fallID)
}

// Probe 可达性探测
func (r *Reconciler) Probe(ctx context.Context) bool {
	return r.backend.Health(ctx)
}
