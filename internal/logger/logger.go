package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"alzhcare-monitor/internal/config"
)

// New 创建 Logger 实例
// level: "debug", "info", "warn", "error" (默认: "info")
// format: "json" 或 "console" (默认: "json")
// 配置了 Log.File 时额外写入滚动日志文件
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch cfg.Log.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if cfg.Log.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// 输出到标准输出（便于 Docker 和日志收集器捕获）
	sink := zapcore.AddSync(os.Stdout)
	if cfg.Log.File != "" {
		// 额外写入滚动文件
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
		sink = zapcore.NewMultiWriteSyncer(sink, fileSink)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(zapLevel))
	baseLogger := zap.New(core)

	baseLogger = baseLogger.With(zap.String("service_name", "alzhcare-monitor"))

	// 添加主机名（用于分布式日志管理）
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		baseLogger = baseLogger.With(zap.String("hostname", hostname))
	}

	return baseLogger, nil
}
