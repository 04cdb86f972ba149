package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"alzhcare-monitor/internal/config"
	"alzhcare-monitor/internal/models"
)

// ReadingHandler 规范化读数的下游处理函数
type ReadingHandler func(ctx context.Context, reading models.Reading, events models.EventFlags)

// Consumer MQTT 遥测消费者
// 设备直推的遥测走这里，与后端 REST 轮询互为补充
type Consumer struct {
	client  mqtt.Client
	config  *config.Config
	handler ReadingHandler
	logger  *zap.Logger
}

// NewConsumer 创建并连接 MQTT 消费者
func NewConsumer(cfg *config.Config, handler ReadingHandler, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{
		config:  cfg,
		handler: handler,
		logger:  logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
	}
	if cfg.MQTT.Password != "" {
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTT.Broker))
		c.subscribe(client)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

func (c *Consumer) subscribe(client mqtt.Client) {
	topic := c.config.MQTT.TelemetryTopic
	token := client.Subscribe(topic, 1, c.onMessage)
	if token.Wait() && token.Error() != nil {
		c.logger.Error("Failed to subscribe to telemetry topic",
			zap.String("topic", topic),
			zap.Error(token.Error()),
		)
		return
	}
	c.logger.Info("Subscribed to telemetry topic", zap.String("topic", topic))
}

// onMessage 单条遥测：规范化后交给下游，解析失败只记日志
func (c *Consumer) onMessage(client mqtt.Client, msg mqtt.Message) {
	reading, events, err := Normalize(msg.Payload(), time.Now())
	if err != nil {
		c.logger.Warn("Dropping unparseable telemetry message",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
		return
	}

	c.handler(context.Background(), reading, events)
}

// IsConnected 检查连接状态
func (c *Consumer) IsConnected() bool {
	return c.client.IsConnected()
}

// Close 断开连接
func (c *Consumer) Close() {
	c.client.Disconnect(250)
}
