package models

import (
	"time"
)

// Location GPS 位置信息（来自佩戴设备）
type Location struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Speed      *float64 `json:"speed,omitempty"`      // km/h
	Satellites *int     `json:"satellites,omitempty"` // 可见卫星数
	Accuracy   *float64 `json:"accuracy,omitempty"`   // 定位精度（米）
	Address    string   `json:"address,omitempty"`    // 反向地理编码地址（由外部协作者提供）
}

// Reading 一次传感器读数快照（记录后不可变）
// BPM/SpO2 使用指针区分"缺失"和真实数值；0 也视为无数据（上游哨兵值）
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	BPM          *int      `json:"bpm,omitempty"`
	SpO2         *int      `json:"spo2,omitempty"`
	TemperatureC *float64  `json:"temperature_c,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// EventFlags 布尔型安全事件（由上游传感器直接断言，不经过阈值分类）
type EventFlags struct {
	FallDetected bool `json:"fall_detected"`
	SOSActive    bool `json:"sos_active"`
}

// LastReading 最后一次读数槽位（含分类结果）
type LastReading struct {
	Timestamp time.Time `json:"timestamp"`
	Reading   Reading   `json:"reading"`
	Status    string    `json:"status"` // "normal" 或 "alert"
}

// SensorSnapshot 设备端原始传感器数据（/current 响应中的 esp32 字段）
type SensorSnapshot struct {
	BPM         *int     `json:"BPM,omitempty"`
	SpO2        *int     `json:"SpO2,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Fall        bool     `json:"fall,omitempty"`
	SOS         bool     `json:"sos,omitempty"`
}

// CurrentData 后端 /current 接口返回的当前综合数据
type CurrentData struct {
	ESP32         *SensorSnapshot `json:"esp32,omitempty"`
	Location      *Location       `json:"location,omitempty"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
	FallDetection *struct {
		FallDetected bool `json:"fall_detected"`
	} `json:"fall_detection,omitempty"`
	SOS *struct {
		Active bool `json:"active"`
	} `json:"sos,omitempty"`
}

// Reading 将当前数据转换为规范 Reading
func (c *CurrentData) Reading(now time.Time) Reading {
	r := Reading{Timestamp: now, Location: c.Location}
	if c.Timestamp != nil {
		r.Timestamp = *c.Timestamp
	}
	if c.ESP32 != nil {
		r.BPM = c.ESP32.BPM
		r.SpO2 = c.ESP32.SpO2
		r.TemperatureC = c.ESP32.Temperature
	}
	return r
}

// Events 提取布尔型安全事件标志
func (c *CurrentData) Events() EventFlags {
	var f EventFlags
	if c.ESP32 != nil {
		f.FallDetected = c.ESP32.Fall
		f.SOSActive = c.ESP32.SOS
	}
	if c.FallDetection != nil && c.FallDetection.FallDetected {
		f.FallDetected = true
	}
	if c.SOS != nil && c.SOS.Active {
		f.SOSActive = true
	}
	return f
}
