package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// LoveMessageRepo stores messages exchanged between partners.
type LoveMessageRepo struct{ DB *sql.DB }

func NewLoveMessageRepo(db *sql.DB) *LoveMessageRepo { return &LoveMessageRepo{DB: db} }

// Create inserts m.
func (r *LoveMessageRepo) Create(ctx context.Context, m model.LoveMessage) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO love_messages (id, sender_id, receiver_id, message, is_read, timestamp) VALUES (?,?,?,?,?,?)",
		m.ID, m.SenderID, m.ReceiverID, m.Message, m.IsRead, m.Timestamp)
	return err
}

// ListForUser returns messages sent or received by userID, newest first.
func (r *LoveMessageRepo) ListForUser(ctx context.Context, userID string) ([]model.LoveMessage, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,sender_id,receiver_id,message,is_read,timestamp FROM love_messages
		 WHERE sender_id=? OR receiver_id=? ORDER BY timestamp DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LoveMessage, 0)
	for rows.Next() {
		var m model.LoveMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Message, &m.IsRead, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
