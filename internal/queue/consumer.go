package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// NotificationWriter persists consumed notifications.
type NotificationWriter interface {
	Create(ctx context.Context, n model.Notification) error
}

// StartNotificationConsumer connects to RabbitMQ, declares the
// notification.created queue (durable) and stores every message through
// store. It reconnects with exponential backoff and returns only when ctx is
// cancelled. A message that cannot be decoded is rejected without requeue; a
// storage failure is requeued once.
func StartNotificationConsumer(ctx context.Context, url string, store NotificationWriter, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "notification-consumer"))
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("dial broker failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, store, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("consume loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, store NotificationWriter, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("set QoS failed", slog.Any("error", err))
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, store); err != nil {
				requeue := !errors.Is(err, errMalformed) && !d.Redelivered
				logger.Error("handle message failed", slog.Any("error", err), slog.Bool("requeue", requeue))
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

var errMalformed = errors.New("malformed notification event")

func handleMessage(ctx context.Context, body []byte, store NotificationWriter) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	n, err := ev.Notification()
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := store.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
