package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/aggregator"
	"alzhcare-monitor/internal/classifier"
	"alzhcare-monitor/internal/client"
	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/geofence"
	"alzhcare-monitor/internal/ingest"
	"alzhcare-monitor/internal/logger"
	"alzhcare-monitor/internal/projector"
	"alzhcare-monitor/internal/reconciler"
	"alzhcare-monitor/internal/service"
	"alzhcare-monitor/internal/store"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting alzhcare-monitor service")

	// 连接 Redis（本地告警存储）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// 组装服务
	alertStore := store.New(cfg, redisClient, log)
	backend := client.New(cfg, log)
	agg := aggregator.New(cfg, alertStore, classifier.New(cfg), log)
	rec := reconciler.New(cfg, backend, alertStore, log)
	proj := projector.New(cfg, alertStore, log)
	profile := geofence.NewService(cfg.Profile.Path, log)

	monitor := service.NewMonitor(cfg, alertStore, agg, rec, proj, backend, profile, log)

	// 设备直推遥测（MQTT 不可达时只靠 REST 轮询，不算致命）
	consumer, err := ingest.NewConsumer(cfg, monitor.HandleTelemetry, log)
	if err != nil {
		log.Warn("MQTT telemetry unavailable, relying on REST polling only", zap.Error(err))
	} else {
		defer consumer.Close()
	}

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 启动主循环
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	sig := <-sigChan
	log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	cancel()
	<-done

	log.Info("Service stopped")
}
