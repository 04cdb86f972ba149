package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 监护服务配置
type Config struct {
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// 后端 REST 协作者
	API struct {
		BaseURL    string // 如 "http://localhost:3000/api"
		HealthURL  string // 健康检查使用不同的基础路径
		TimeoutSec int
		RetryCount int
	}

	// 设备遥测推送（MQTT）
	MQTT struct {
		Broker         string
		ClientID       string
		Username       string
		Password       string
		TelemetryTopic string
	}

	// 本地持久化存储配置
	Store struct {
		KeyPrefix              string // 键前缀，如 "alzhcare:"
		ClassCapacity          int    // 每个告警类别的容量上限，默认 50
		HistoryAlertCapPerKind int    // 读数历史中每种告警条目上限，默认 10
		HistoryNormalCap       int    // 读数历史中正常条目上限，默认 5
		DailyStatsDays         int    // 每日统计保留天数，默认 30
		RetentionDays          int    // 告警保留窗口（天），默认 7
	}

	// 分类与分组配置
	Alert struct {
		GroupingWindowSec     int     // 同类发现折叠窗口（秒），默认 300
		EventDebounceSec      int     // 跌倒/SOS 重触发抑制（秒），默认 30
		TemperatureToleranceC float64 // 温度折叠容差（°C），默认 0.5

		// 生理/环境阈值
		BPMLow    int     // 心率下限，默认 60
		BPMHigh   int     // 心率上限，默认 100
		SpO2Min   int     // 血氧下限，默认 95
		TempLowC  float64 // 环境温度下限，默认 20
		TempHighC float64 // 环境温度上限，默认 30
	}

	// 轮询周期（秒）
	Poll struct {
		CurrentSec      int // 当前数据，默认 10
		QuickHistorySec int // 快速历史，默认 30
		DailySummarySec int // 每日汇总，默认 60
		HealthSec       int // 健康探测，默认 30
		ReconnectSec    int // 离线重连探测，默认 10
	}

	// 监护人档案（YAML 文件）
	Profile struct {
		Path string
	}

	Log struct {
		Level      string
		Format     string
		File       string // 为空则不写文件
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
}

// Load 加载配置（.env 文件 + 环境变量 + 默认值）
func Load() (*Config, error) {
	// .env 不存在时静默回退到环境变量
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.API.BaseURL = getEnv("API_BASE_URL", "http://localhost:3000/api")
	cfg.API.HealthURL = getEnv("API_HEALTH_URL", "http://localhost:3000")
	cfg.API.TimeoutSec = getEnvInt("API_TIMEOUT_SEC", 10)
	cfg.API.RetryCount = getEnvInt("API_RETRY_COUNT", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER_URL", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "alzhcare-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TelemetryTopic = getEnv("MQTT_TELEMETRY_TOPIC", "alzhcare/telemetry")

	cfg.Store.KeyPrefix = getEnv("STORE_KEY_PREFIX", "alzhcare:")
	cfg.Store.ClassCapacity = getEnvInt("STORE_CLASS_CAPACITY", 50)
	cfg.Store.HistoryAlertCapPerKind = getEnvInt("STORE_HISTORY_ALERT_CAP", 10)
	cfg.Store.HistoryNormalCap = getEnvInt("STORE_HISTORY_NORMAL_CAP", 5)
	cfg.Store.DailyStatsDays = getEnvInt("STORE_DAILY_STATS_DAYS", 30)
	cfg.Store.RetentionDays = getEnvInt("STORE_RETENTION_DAYS", 7)

	cfg.Alert.GroupingWindowSec = getEnvInt("ALERT_GROUPING_WINDOW_SEC", 300)
	cfg.Alert.EventDebounceSec = getEnvInt("ALERT_EVENT_DEBOUNCE_SEC", 30)
	cfg.Alert.TemperatureToleranceC = getEnvFloat("ALERT_TEMP_TOLERANCE_C", 0.5)
	cfg.Alert.BPMLow = getEnvInt("ALERT_BPM_LOW", 60)
	cfg.Alert.BPMHigh = getEnvInt("ALERT_BPM_HIGH", 100)
	cfg.Alert.SpO2Min = getEnvInt("ALERT_SPO2_MIN", 95)
	cfg.Alert.TempLowC = getEnvFloat("ALERT_TEMP_LOW_C", 20)
	cfg.Alert.TempHighC = getEnvFloat("ALERT_TEMP_HIGH_C", 30)

	cfg.Poll.CurrentSec = getEnvInt("POLL_CURRENT_SEC", 10)
	cfg.Poll.QuickHistorySec = getEnvInt("POLL_QUICK_HISTORY_SEC", 30)
	cfg.Poll.DailySummarySec = getEnvInt("POLL_DAILY_SUMMARY_SEC", 60)
	cfg.Poll.HealthSec = getEnvInt("POLL_HEALTH_SEC", 30)
	cfg.Poll.ReconnectSec = getEnvInt("POLL_RECONNECT_SEC", 10)

	cfg.Profile.Path = getEnv("CARE_PROFILE_PATH", "care_profile.yaml")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.Log.File = getEnv("LOG_FILE", "")
	cfg.Log.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", 5)
	cfg.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	cfg.Log.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", 28)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
