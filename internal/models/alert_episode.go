package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertKind 告警种类
type AlertKind string

const (
	KindBPM         AlertKind = "bpm"
	KindSpO2        AlertKind = "spo2"
	KindTemperature AlertKind = "temperature"
	KindFall        AlertKind = "fall"
	KindSOS         AlertKind = "sos"
)

// AlertClass 存储分区（告警类别）
type AlertClass string

const (
	ClassVitals AlertClass = "vitals"
	ClassFalls  AlertClass = "falls"
	ClassSOS    AlertClass = "sos"
)

// 告警级别
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Finding 分类器对单次读数的一条异常判定（分组前）
type Finding struct {
	Kind           AlertKind `json:"kind"`
	Value          float64   `json:"value"`
	ReferenceRange string    `json:"reference_range"`
	Severity       string    `json:"severity"`
}

// AlertEpisode 告警事件（可分组的异常记录）
// 三个类别共用一个带标签的结构，Kind 区分具体载荷：
//   - 生命体征（bpm/spo2/temperature）：Value、LastValue、ReferenceRange
//   - 跌倒/SOS：Message、Sensors 快照
type AlertEpisode struct {
	ID               string     `json:"id"`
	Kind             AlertKind  `json:"kind"`
	Severity         string     `json:"severity"`
	OpenedAt         time.Time  `json:"opened_at"`
	LastOccurrenceAt time.Time  `json:"last_occurrence_at"`
	Occurrences      int        `json:"occurrences"`
	DurationSec      int        `json:"duration_sec"`
	Resolved         bool       `json:"resolved"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	Location         *Location  `json:"location,omitempty"`

	// 生命体征载荷
	Value          *float64 `json:"value,omitempty"`
	LastValue      *float64 `json:"last_value,omitempty"` // 最近一次并入的数值（温度容差比较用）
	ReferenceRange string   `json:"reference_range,omitempty"`

	// 跌倒/SOS 载荷
	Message string          `json:"message,omitempty"`
	Sensors *SensorSnapshot `json:"sensors,omitempty"`
}

// UnmarshalJSON 容忍数值型 id
// 旧版固件配套的后端用毫秒时间戳数值做事件 id，这里统一转成字符串
func (e *AlertEpisode) UnmarshalJSON(data []byte) error {
	type alias AlertEpisode
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ID = idString(aux.ID)
	return nil
}

// idString 把 string 或 number 形式的 id 统一成字符串
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// NewEpisodeID 生成事件 ID（时间前缀保证按创建时间可排序，uuid 后缀保证唯一）
func NewEpisodeID(t time.Time) string {
	return fmt.Sprintf("%d-%s", t.UnixMilli(), uuid.NewString()[:8])
}

// Fold 将时间 T 的一次新发现并入本事件
func (e *AlertEpisode) Fold(t time.Time, value *float64) {
	e.Occurrences++
	e.LastOccurrenceAt = t
	e.DurationSec = int(t.Sub(e.OpenedAt) / time.Second)
	if value != nil {
		v := *value
		e.LastValue = &v
	}
}

// HistoryRecord 读数历史条目
// Status=="alert" 时携带分组后的告警明细（与 AlertEpisode 同样的折叠规则），
// Status=="normal" 时只保留读数快照
type HistoryRecord struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"` // "normal" 或 "alert"
	OpenedAt    time.Time `json:"opened_at"`
	Timestamp   time.Time `json:"timestamp"` // 最近一次并入时间
	Occurrences int       `json:"occurrences"`
	DurationSec int       `json:"duration_sec"`

	// alert 条目
	Kind           AlertKind `json:"kind,omitempty"`
	Value          float64   `json:"value,omitempty"`
	LastValue      float64   `json:"last_value,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Severity       string    `json:"severity,omitempty"`

	// normal 条目快照
	BPM          *int     `json:"bpm,omitempty"`
	SpO2         *int     `json:"spo2,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
}

// Episode 将一条 alert 历史条目转换为 AlertEpisode 形状（每日汇总用）
func (h *HistoryRecord) Episode() AlertEpisode {
	v := h.Value
	lv := h.LastValue
	return AlertEpisode{
		ID:               h.ID,
		Kind:             h.Kind,
		Severity:         h.Severity,
		OpenedAt:         h.OpenedAt,
		LastOccurrenceAt: h.Timestamp,
		Occurrences:      h.Occurrences,
		DurationSec:      h.DurationSec,
		Value:            &v,
		LastValue:        &lv,
		ReferenceRange:   h.ReferenceRange,
	}
}
