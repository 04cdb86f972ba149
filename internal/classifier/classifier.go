package classifier

import (
	"fmt"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
)

// Classifier 生理/环境阈值分类器
// 纯函数：一次读数产生零或多条异常判定，不访问存储也不产生副作用。
// 跌倒/SOS 是上游直接断言的布尔事件，不经过这里。
type Classifier struct {
	config *config.Config
}

// New 创建分类器
func New(cfg *config.Config) *Classifier {
	return &Classifier{config: cfg}
}

// Classify 对一次读数做阈值判定
// 0 值（或缺失）是上游的"无数据"哨兵，三个传感器通道都不把 0 当真实读数。
func (c *Classifier) Classify(reading models.Reading) []models.Finding {
	var findings []models.Finding
	th := c.config.Alert

	if reading.BPM != nil && *reading.BPM > 0 {
		bpm := *reading.BPM
		if bpm < th.BPMLow || bpm > th.BPMHigh {
			findings = append(findings, models.Finding{
				Kind:           models.KindBPM,
				Value:          float64(bpm),
				ReferenceRange: fmt.Sprintf("%d–%d", th.BPMLow, th.BPMHigh),
				Severity:       models.SeverityMedium,
			})
		}
	}

	if reading.SpO2 != nil && *reading.SpO2 > 0 {
		spo2 := *reading.SpO2
		if spo2 < th.SpO2Min {
			findings = append(findings, models.Finding{
				Kind:           models.KindSpO2,
				Value:          float64(spo2),
				ReferenceRange: fmt.Sprintf("≥%d%%", th.SpO2Min),
				Severity:       models.SeverityHigh,
			})
		}
	}

	if reading.TemperatureC != nil && *reading.TemperatureC > 0 {
		temp := *reading.TemperatureC
		if temp < th.TempLowC || temp > th.TempHighC {
			findings = append(findings, models.Finding{
				Kind:           models.KindTemperature,
				Value:          temp,
				ReferenceRange: fmt.Sprintf("%g–%g°C", th.TempLowC, th.TempHighC),
				Severity:       models.SeverityLow,
			})
		}
	}

	return findings
}
