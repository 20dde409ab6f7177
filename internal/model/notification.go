package model

import "time"

// Notification kinds.
const (
	NotificationLoveMessage = "love_message"
	NotificationPartnership = "partnership"
)

// Notification mirrors the `notifications` table.
type Notification struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Type   string    `json:"type"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	IsRead bool      `json:"isRead"`
	SentAt time.Time `json:"sentAt"`
}
