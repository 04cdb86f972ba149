package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alzhcare-monitor/internal/models"
)

// 设备固件多个版本并存，遥测字段名不统一
// 这里集中维护同义字段表，按顺序取第一个可解析的值
var (
	bpmKeys  = []string{"bpm", "BPM", "batimentos", "heartRate", "heart_rate", "hr"}
	spo2Keys = []string{"spo2", "SpO2", "oxigenio", "saturacao", "oximeter", "oxygen"}
	tempKeys = []string{"temperaturaAmbiente", "temperatura", "temperature", "temp", "ambient_temp"}
	fallKeys = []string{"quedaDetectada", "queda", "fallDetected", "fall_detected", "fall"}
	sosKeys  = []string{"sos", "sosActive", "sos_active", "emergency"}
)

// Normalize 将原始遥测负载规范化为统一读数
// 无法解析的数值字段视为缺失，绝不落为 0
func Normalize(payload []byte, now time.Time) (models.Reading, models.EventFlags, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.Reading{}, models.EventFlags{}, fmt.Errorf("failed to parse telemetry payload: %w", err)
	}

	reading := models.Reading{Timestamp: now}

	if ts, ok := parseTimestamp(raw); ok {
		reading.Timestamp = ts
	}
	if v, ok := firstInt(raw, bpmKeys); ok {
		reading.BPM = &v
	}
	if v, ok := firstInt(raw, spo2Keys); ok {
		reading.SpO2 = &v
	}
	if v, ok := firstFloat(raw, tempKeys); ok {
		reading.TemperatureC = &v
	}
	reading.Location = parseLocation(raw)

	events := models.EventFlags{
		FallDetected: firstBool(raw, fallKeys),
		SOSActive:    firstBool(raw, sosKeys),
	}

	return reading, events, nil
}

func parseTimestamp(raw map[string]interface{}) (time.Time, bool) {
	for _, key := range []string{"timestamp", "ts", "time"} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, true
			}
		case float64:
			// 毫秒级 Unix 时间戳
			if v > 1e12 {
				return time.UnixMilli(int64(v)), true
			}
			if v > 0 {
				return time.Unix(int64(v), 0), true
			}
		}
	}
	return time.Time{}, false
}

// parseLocation 支持嵌套 gps 对象和顶层经纬度两种形态
func parseLocation(raw map[string]interface{}) *models.Location {
	source := raw
	if gps, ok := raw["gps"].(map[string]interface{}); ok {
		source = gps
	}

	lat, latOK := anyFloat(firstValue(source, []string{"lat", "latitude"}))
	lng, lngOK := anyFloat(firstValue(source, []string{"lng", "lon", "longitude"}))
	if !latOK || !lngOK {
		return nil
	}

	loc := &models.Location{Latitude: lat, Longitude: lng}
	if v, ok := anyFloat(firstValue(source, []string{"speed", "velocidade"})); ok {
		loc.Speed = &v
	}
	if v, ok := anyFloat(firstValue(source, []string{"satellites", "satelites"})); ok {
		n := int(v)
		loc.Satellites = &n
	}
	if v, ok := anyFloat(firstValue(source, []string{"accuracy", "precisao"})); ok {
		loc.Accuracy = &v
	}
	return loc
}

func firstValue(raw map[string]interface{}, keys []string) interface{} {
	for _, key := range keys {
		if value, ok := raw[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func firstInt(raw map[string]interface{}, keys []string) (int, bool) {
	if f, ok := anyFloat(firstValue(raw, keys)); ok {
		return int(f), true
	}
	return 0, false
}

func firstFloat(raw map[string]interface{}, keys []string) (float64, bool) {
	return anyFloat(firstValue(raw, keys))
}

func firstBool(raw map[string]interface{}, keys []string) bool {
	value := firstValue(raw, keys)
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "1" || s == "yes"
	}
	return false
}

// anyFloat 宽松数值转换：数字或数字字符串，其余视为缺失
func anyFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
