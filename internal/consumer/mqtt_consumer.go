// Package consumer 实现 MQTT 接入
//
// 设备侧走 MQTT 时，两条流各订阅一个主题，消息体与 HTTP 接入完全
// 同构，复用同一条处理管线。Broker 未配置时不启用。
package consumer

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"walkerwatch/internal/config"
	"walkerwatch/internal/service"
)

// MQTTConsumer MQTT 数据包消费者
type MQTTConsumer struct {
	cfg     *config.Config
	client  mqtt.Client
	monitor *service.MonitorService
	logger  *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者并建立连接
func NewMQTTConsumer(cfg *config.Config, monitor *service.MonitorService, logger *zap.Logger) (*MQTTConsumer, error) {
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

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTConsumer{
		cfg:     cfg,
		client:  client,
		monitor: monitor,
		logger:  logger,
	}, nil
}

// Start 订阅两条流的主题
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.subscribe(c.cfg.MQTT.WalkerTopic, func(data []byte) error {
		return c.monitor.HandleWalkerPacket(ctx, data)
	}); err != nil {
		return err
	}
	if err := c.subscribe(c.cfg.MQTT.VisionTopic, func(data []byte) error {
		return c.monitor.HandleVisionPacket(ctx, data)
	}); err != nil {
		return err
	}

	c.logger.Info("MQTT consumer started",
		zap.String("broker", c.cfg.MQTT.Broker),
		zap.String("walker_topic", c.cfg.MQTT.WalkerTopic),
		zap.String("vision_topic", c.cfg.MQTT.VisionTopic),
	)
	return nil
}

// subscribe 订阅单个主题；处理失败只记日志，不中断消费
func (c *MQTTConsumer) subscribe(topic string, handle func(data []byte) error) error {
	token := c.client.Subscribe(topic, c.cfg.MQTT.QoS, func(client mqtt.Client, msg mqtt.Message) {
		if err := handle(msg.Payload()); err != nil {
			c.logger.Warn("Failed to handle MQTT packet",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Stop 断开 MQTT 连接
func (c *MQTTConsumer) Stop() {
	c.client.Disconnect(250)
}
