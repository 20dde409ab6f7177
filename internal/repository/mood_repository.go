package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// MoodRepo manages daily mood entries. The (user_id, date) unique key
// enforces one entry per user per day.
type MoodRepo struct{ DB *sql.DB }

func NewMoodRepo(db *sql.DB) *MoodRepo { return &MoodRepo{DB: db} }

const moodColumns = "id,user_id,date,mood_level,event_label,photo_data,created_at,updated_at"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMood(s scanner) (model.MoodEntry, error) {
	var (
		e     model.MoodEntry
		label sql.NullString
		photo sql.NullString
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Date, &e.MoodLevel, &label, &photo, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.MoodEntry{}, ErrNotFound
		}
		return model.MoodEntry{}, err
	}
	if label.Valid {
		e.EventLabel = &label.String
	}
	if photo.Valid {
		e.PhotoData = &photo.String
	}
	return e, nil
}

// Create inserts e. A second entry for the same user and day yields ErrConflict.
func (r *MoodRepo) Create(ctx context.Context, e model.MoodEntry) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO mood_entries ("+moodColumns+") VALUES (?,?,?,?,?,?,?,?)",
		e.ID, e.UserID, e.Date, e.MoodLevel, e.EventLabel, e.PhotoData, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByDate returns the user's entry for the given UTC day, or ErrNotFound.
func (r *MoodRepo) GetByDate(ctx context.Context, userID string, day time.Time) (model.MoodEntry, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+moodColumns+" FROM mood_entries WHERE user_id=? AND date=? LIMIT 1",
		userID, model.StartOfDayUTC(day).Format(model.DateLayout))
	return scanMood(row)
}

// GetOwned returns entry id if it belongs to userID, otherwise ErrNotFound.
func (r *MoodRepo) GetOwned(ctx context.Context, id, userID string) (model.MoodEntry, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+moodColumns+" FROM mood_entries WHERE id=? AND user_id=? LIMIT 1", id, userID)
	return scanMood(row)
}

// ListRange returns the user's entries with from <= date <= to, newest first.
func (r *MoodRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.MoodEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+moodColumns+" FROM mood_entries WHERE user_id=? AND date BETWEEN ? AND ? ORDER BY date DESC",
		userID, from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.MoodEntry, 0)
	for rows.Next() {
		e, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Update applies the non-nil fields of upd to the caller's entry and returns
// the stored result.
func (r *MoodRepo) Update(ctx context.Context, id, userID string, upd model.MoodUpdate) (model.MoodEntry, error) {
	if _, err := r.GetOwned(ctx, id, userID); err != nil {
		return model.MoodEntry{}, err
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE mood_entries SET mood_level=COALESCE(?, mood_level), event_label=COALESCE(?, event_label), updated_at=?
		 WHERE id=? AND user_id=?`,
		upd.MoodLevel, upd.EventLabel, time.Now().UTC(), id, userID)
	if err != nil {
		return model.MoodEntry{}, err
	}
	return r.GetOwned(ctx, id, userID)
}
