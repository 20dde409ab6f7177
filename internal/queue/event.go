// Package queue defines the notification payload exchanged over the message
// broker and the consumer that persists it.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// NotificationQueue is the durable queue notifications are published to.
const NotificationQueue = "notification.created"

// NotificationEvent is published for every notification produced by a
// request. The consumer stores it as a `notifications` row; the event id is
// the row id, so redelivery does not create duplicates.
type NotificationEvent struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	SentAt string `json:"sent_at"`
}

// EventFromNotification builds the wire event for n.
func EventFromNotification(n model.Notification) NotificationEvent {
	return NotificationEvent{
		ID:     n.ID,
		UserID: n.UserID,
		Type:   n.Type,
		Title:  n.Title,
		Body:   n.Body,
		SentAt: n.SentAt.UTC().Format(time.RFC3339),
	}
}

// Notification converts the event back into a storable notification.
func (e NotificationEvent) Notification() (model.Notification, error) {
	if e.ID == "" || e.UserID == "" {
		return model.Notification{}, fmt.Errorf("notification event missing id or user_id")
	}
	sentAt, err := time.Parse(time.RFC3339, e.SentAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("parse sent_at: %w", err)
	}
	return model.Notification{
		ID:     e.ID,
		UserID: e.UserID,
		Type:   e.Type,
		Title:  e.Title,
		Body:   e.Body,
		SentAt: sentAt.UTC(),
	}, nil
}
