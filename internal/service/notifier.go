// Package service delivers notifications produced by request handlers,
// either through RabbitMQ or directly into the database.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/wetwo-backend/internal/metrics"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/queue"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NewNotification returns an unread notification for userID with a fresh id.
func NewNotification(userID, kind, title, body string, now time.Time) model.Notification {
	return model.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   kind,
		Title:  title,
		Body:   body,
		SentAt: now.UTC().Truncate(time.Second),
	}
}

// NotificationStore is the persistence used by DirectNotifier.
type NotificationStore interface {
	Create(ctx context.Context, n model.Notification) error
}

// DirectNotifier writes notifications straight to the database. It is used
// when no broker is configured and as the Publisher fallback.
type DirectNotifier struct {
	store   NotificationStore
	metrics *metrics.Collector
}

func NewDirectNotifier(store NotificationStore, m *metrics.Collector) *DirectNotifier {
	return &DirectNotifier{store: store, metrics: m}
}

func (d *DirectNotifier) Notify(ctx context.Context, n model.Notification) error {
	err := d.store.Create(ctx, n)
	d.metrics.RecordNotification("direct", err)
	return err
}

// Publisher publishes notifications to the notification.created queue. When
// publishing fails and a fallback is set, the notification is handed to the
// fallback instead so it is not lost.
type Publisher struct {
	url      string
	fallback Notifier
	metrics  *metrics.Collector
	logger   *slog.Logger
	dial     func(url string) (*amqp.Connection, error)
}

func NewPublisher(url string, fallback Notifier, m *metrics.Collector, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, fallback: fallback, metrics: m, logger: logger, dial: amqp.Dial}
}

// Notify publishes n as a persistent message.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) error {
	err := p.publish(ctx, queue.EventFromNotification(n))
	p.metrics.RecordNotification("rabbitmq", err)
	if err == nil {
		return nil
	}
	p.logger.Warn("publish notification failed", slog.String("notification_id", n.ID), slog.Any("error", err))
	if p.fallback == nil {
		return err
	}
	return p.fallback.Notify(ctx, n)
}

func (p *Publisher) publish(ctx context.Context, ev queue.NotificationEvent) error {
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.NotificationQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
