// Package events 提供设备事件总线。
// 当前实现基于 NATS JetStream，用于发布采集完成和监视器健康转换事件，
// 供产线上位系统订阅消费。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
)

// EventBus 封装 NATS/JetStream 连接与常用发布/订阅操作。
type EventBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger
}

// Event 表示设备内部事件（JSON 格式）。
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventHandler 定义事件处理回调。
type EventHandler func(event *Event) error

// NewEventBus 创建 EventBus 并初始化所需的 JetStream Stream。
func NewEventBus(natsURL string, logger *logrus.Logger) (*EventBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// 为采集事件/监视器事件初始化 Stream（不存在则创建，存在则尝试更新配置）
	streams := []nats.StreamConfig{
		{
			Name:     "CAPTURES",
			Subjects: []string{"capture.>"},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour * 7, // 保留 7 天
		},
		{
			Name:     "MONITOR_EVENTS",
			Subjects: []string{"monitor.>"},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour * 1, // 保留 1 天
		},
	}

	for _, cfg := range streams {
		_, err := js.AddStream(&cfg)
		if err != nil && err != nats.ErrStreamNameAlreadyInUse {
			js.UpdateStream(&cfg)
		}
	}

	return &EventBus{
		conn:   nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close 关闭底层 NATS 连接。
func (eb *EventBus) Close() error {
	eb.conn.Close()
	return nil
}

// Publish 发布事件到指定 subject。
func (eb *EventBus) Publish(ctx context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = eb.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("Event published")

	return nil
}

// Subscribe 订阅匹配 subject 的事件（支持通配符）。
// ctx 取消时将自动取消订阅。
func (eb *EventBus) Subscribe(ctx context.Context, subject string, handler EventHandler) error {
	sub, err := eb.js.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			eb.logger.WithError(err).Error("Failed to unmarshal event")
			msg.Nak()
			return
		}

		if err := handler(&event); err != nil {
			eb.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to handle event")
			msg.Nak()
			return
		}

		msg.Ack()
	}, nats.Durable("lumen-processor"), nats.ManualAck())

	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}

// PublishCaptureCompleted 发布“采集完成”事件。
func (eb *EventBus) PublishCaptureCompleted(ctx context.Context, rec *domain.CaptureRecord) error {
	data, _ := json.Marshal(rec)
	event := &Event{
		ID:        rec.ID,
		Type:      "capture.completed",
		Source:    "pipeline",
		Subject:   fmt.Sprintf("capture.%s.completed", rec.WorkflowID),
		Data:      data,
		Timestamp: time.Now(),
	}
	return eb.Publish(ctx, event.Subject, event)
}

// PublishHealthTransition 发布监视器健康状态转换事件。
func (eb *EventBus) PublishHealthTransition(ctx context.Context, status *domain.HealthStatus) error {
	data, _ := json.Marshal(status)
	event := &Event{
		ID:        status.WorkflowID,
		Type:      "monitor.health",
		Source:    "trigger-monitor",
		Subject:   fmt.Sprintf("monitor.%s.health", status.WorkflowID),
		Data:      data,
		Timestamp: time.Now(),
	}
	return eb.Publish(ctx, event.Subject, event)
}
