package model

import "time"

// LoveMessage mirrors the `love_messages` table.
type LoveMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"isRead"`
	Timestamp  time.Time `json:"timestamp"`
}
