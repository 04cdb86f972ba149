package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
)

// apiResponse 后端统一响应包封 {success, data}
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// BackendClient 后端 REST 协作者
// 只读为主，仅两个变更调用（跌倒/SOS 消解）；健康检查走独立的基础路径。
type BackendClient struct {
	httpClient *resty.Client
	healthURL  string
	logger     *zap.Logger
}

// New 创建后端客户端
func New(cfg *config.Config, logger *zap.Logger) *BackendClient {
	httpClient := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second).
		SetRetryCount(cfg.API.RetryCount).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &BackendClient{
		httpClient: httpClient,
		healthURL:  cfg.API.HealthURL,
		logger:     logger,
	}
}

// get 通用 GET，校验 HTTP 状态和 success 标志
func (c *BackendClient) get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	var response apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get(endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call backend API %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("backend API %s returned HTTP %d", endpoint, resp.StatusCode())
	}
	if !response.Success {
		return nil, fmt.Errorf("backend API %s returned success=false", endpoint)
	}

	return response.Data, nil
}

// post 通用 POST（变更调用）
func (c *BackendClient) post(ctx context.Context, endpoint string, body interface{}) error {
	var response apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&response).
		Post(endpoint)

	if err != nil {
		return fmt.Errorf("failed to call backend API %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("backend API %s returned HTTP %d", endpoint, resp.StatusCode())
	}
	if !response.Success {
		return fmt.Errorf("backend API %s returned success=false", endpoint)
	}

	return nil
}

// decodeEpisodes 规范化远端集合形状
// 后端可能返回裸数组或 {history: [...]}，在这里统一成事件列表，
// 内部逻辑不再分支判断形状。
func decodeEpisodes(data json.RawMessage) ([]models.AlertEpisode, error) {
	if len(data) == 0 {
		return []models.AlertEpisode{}, nil
	}

	var asList []models.AlertEpisode
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}

	var asObject struct {
		History []models.AlertEpisode `json:"history"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("failed to decode alert collection: %w", err)
	}
	if asObject.History == nil {
		return []models.AlertEpisode{}, nil
	}
	return asObject.History, nil
}

// CurrentData 获取当前综合读数
func (c *BackendClient) CurrentData(ctx context.Context) (*models.CurrentData, error) {
	data, err := c.get(ctx, "/current")
	if err != nil {
		return nil, err
	}

	var current models.CurrentData
	if err := json.Unmarshal(data, &current); err != nil {
		return nil, fmt.Errorf("failed to decode current data: %w", err)
	}
	return &current, nil
}

// VitalsAlerts 获取生命体征告警集合
func (c *BackendClient) VitalsAlerts(ctx context.Context) ([]models.AlertEpisode, error) {
	data, err := c.get(ctx, "/vitals-alerts")
	if err != nil {
		return nil, err
	}
	return decodeEpisodes(data)
}

// Falls 获取跌倒告警集合
func (c *BackendClient) Falls(ctx context.Context) ([]models.AlertEpisode, error) {
	data, err := c.get(ctx, "/falls")
	if err != nil {
		return nil, err
	}
	return decodeEpisodes(data)
}

// SOSEvents 获取 SOS 告警集合
func (c *BackendClient) SOSEvents(ctx context.Context) ([]models.AlertEpisode, error) {
	data, err := c.get(ctx, "/sos")
	if err != nil {
		return nil, err
	}
	return decodeEpisodes(data)
}

// DailySummary 获取每日汇总；date 为空表示今天
func (c *BackendClient) DailySummary(ctx context.Context, date string) (*models.RemoteDailySummary, error) {
	endpoint := "/daily-summary"
	if date != "" {
		endpoint = fmt.Sprintf("/daily-summary?date=%s", date)
	}

	data, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var summary models.RemoteDailySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode daily summary: %w", err)
	}
	return &summary, nil
}

// QuickHistory 获取最近读数列表（明确不缓存，每次都取新鲜数据）
func (c *BackendClient) QuickHistory(ctx context.Context) ([]models.Reading, error) {
	data, err := c.get(ctx, "/quick-history")
	if err != nil {
		return nil, err
	}

	var readings []models.Reading
	if err := json.Unmarshal(data, &readings); err == nil {
		return readings, nil
	}

	var asObject struct {
		History []models.Reading `json:"history"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("failed to decode quick history: %w", err)
	}
	return asObject.History, nil
}

// ResolveFall 远端消解一次跌倒告警
func (c *BackendClient) ResolveFall(ctx context.Context, fallID string) error {
	return c.post(ctx, fmt.Sprintf("/falls/%s/resolve", fallID), map[string]interface{}{})
}

// ResolveSOS 远端消解一次 SOS 告警
func (c *BackendClient) ResolveSOS(ctx context.Context, sosID string) error {
	body := map[string]interface{}{"sosId": nil}
	if sosID != "" {
		body["sosId"] = sosID
	}
	return c.post(ctx, "/sos/resolve", body)
}

// Health 可达性探测（独立基础路径，任何失败都视为不可达）
func (c *BackendClient) Health(ctx context.Context) bool {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.healthURL + "/health")

	if err != nil {
		c.logger.Debug("Health probe failed",
			zap.Error(err),
		)
		return false
	}
	return resp.IsSuccess()
}
