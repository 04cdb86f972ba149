package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	assert.Equal(t, "http://localhost:3000", cfg.API.HealthURL)
	assert.Equal(t, 10, cfg.API.TimeoutSec)

	assert.Equal(t, "alzhcare:", cfg.Store.KeyPrefix)
	assert.Equal(t, 50, cfg.Store.ClassCapacity)
	assert.Equal(t, 10, cfg.Store.HistoryAlertCapPerKind)
	assert.Equal(t, 5, cfg.Store.HistoryNormalCap)
	assert.Equal(t, 30, cfg.Store.DailyStatsDays)
	assert.Equal(t, 7, cfg.Store.RetentionDays)

	assert.Equal(t, 300, cfg.Alert.GroupingWindowSec)
	assert.Equal(t, 30, cfg.Alert.EventDebounceSec)
	assert.Equal(t, 0.5, cfg.Alert.TemperatureToleranceC)
	assert.Equal(t, 60, cfg.Alert.BPMLow)
	assert.Equal(t, 100, cfg.Alert.BPMHigh)
	assert.Equal(t, 95, cfg.Alert.SpO2Min)
	assert.Equal(t, 20.0, cfg.Alert.TempLowC)
	assert.Equal(t, 30.0, cfg.Alert.TempHighC)

	assert.Equal(t, 10, cfg.Poll.CurrentSec)
	assert.Equal(t, 30, cfg.Poll.QuickHistorySec)
	assert.Equal(t, 60, cfg.Poll.DailySummarySec)
	assert.Equal(t, 30, cfg.Poll.HealthSec)
	assert.Equal(t, 10, cfg.Poll.ReconnectSec)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("API_BASE_URL", "http://backend:8080/api")
	os.Setenv("STORE_CLASS_CAPACITY", "20")
	os.Setenv("ALERT_GROUPING_WINDOW_SEC", "120")
	os.Setenv("ALERT_TEMP_TOLERANCE_C", "1.5")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证环境变量覆盖
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "http://backend:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 20, cfg.Store.ClassCapacity)
	assert.Equal(t, 120, cfg.Alert.GroupingWindowSec)
	assert.Equal(t, 1.5, cfg.Alert.TemperatureToleranceC)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 清理环境变量
	os.Clearenv()
}

func TestGetEnvInt_Invalid(t *testing.T) {
	os.Setenv("TEST_INT_KEY", "not-a-number")
	defer os.Unsetenv("TEST_INT_KEY")

	// 解析失败时回退到默认值
	assert.Equal(t, 42, getEnvInt("TEST_INT_KEY", 42))
}
