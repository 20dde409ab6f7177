package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// NotificationRepo stores per-user notifications.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

const notificationColumns = "id,user_id,type,title,body,is_read,sent_at"

func scanNotification(s scanner) (model.Notification, error) {
	var n model.Notification
	err := s.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.IsRead, &n.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Notification{}, ErrNotFound
	}
	return n, err
}

// Create inserts n. Re-delivering the same notification id is a no-op so
// that at-least-once queue delivery does not produce duplicates.
func (r *NotificationRepo) Create(ctx context.Context, n model.Notification) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO notifications ("+notificationColumns+") VALUES (?,?,?,?,?,?,?)",
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.IsRead, n.SentAt)
	return err
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id=? ORDER BY sent_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags the caller's notification id as read and returns it.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) (model.Notification, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET is_read=TRUE WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return model.Notification{}, err
	}
	if err := requireAffected(res); err != nil {
		return model.Notification{}, err
	}
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id=? LIMIT 1", id)
	return scanNotification(row)
}
