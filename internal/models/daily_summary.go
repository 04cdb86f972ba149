package models

import "time"

// LocationVisit 当日到访位置
type LocationVisit struct {
	Name      string     `json:"name,omitempty"`
	Address   string     `json:"address,omitempty"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	VisitedAt *time.Time `json:"visited_at,omitempty"`
}

// DailySummary 每日汇总（派生数据，按需重新生成，从不作为事实来源）
type DailySummary struct {
	Date              string          `json:"date"` // 本地日历日期 "2006-01-02"
	FallsCount        int             `json:"falls_count"`
	SOSCount          int             `json:"sos_count"`
	VitalsAlertsCount int             `json:"vitals_alerts_count"`
	LocationsCount    int             `json:"locations_count"`
	Falls             []AlertEpisode  `json:"falls"`
	SOSEvents         []AlertEpisode  `json:"sos_events"`
	VitalsAlerts      []AlertEpisode  `json:"vitals_alerts"`
	Locations         []LocationVisit `json:"locations"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RemoteDailySummary 后端 /daily-summary 的嵌套响应形状
type RemoteDailySummary struct {
	Date  string `json:"date"`
	Falls *struct {
		TotalFalls int            `json:"total_falls"`
		Falls      []AlertEpisode `json:"falls"`
	} `json:"falls,omitempty"`
	SOS *struct {
		TotalSOSActivations int            `json:"total_sos_activations"`
		Events              []AlertEpisode `json:"events"`
	} `json:"sos,omitempty"`
	Locations *struct {
		UniqueLocations int             `json:"unique_locations"`
		Locations       []LocationVisit `json:"locations"`
	} `json:"locations,omitempty"`
}

// DateOf 取时间戳的本地日历日期字符串
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
