package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// MemoryRepo manages journal memories.
type MemoryRepo struct{ DB *sql.DB }

func NewMemoryRepo(db *sql.DB) *MemoryRepo { return &MemoryRepo{DB: db} }

const memoryColumns = "id,user_id,date,title,description,photo_data,location,mood_level,tags,is_shared,created_at,updated_at"

func scanMemory(s scanner) (model.Memory, error) {
	var (
		m                                   model.Memory
		description, photo, location, tags sql.NullString
	)
	err := s.Scan(&m.ID, &m.UserID, &m.Date, &m.Title, &description, &photo, &location,
		&m.MoodLevel, &tags, &m.IsShared, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Memory{}, ErrNotFound
	}
	if err != nil {
		return model.Memory{}, err
	}
	m.Description = nullString(description)
	m.PhotoData = nullString(photo)
	m.Location = nullString(location)
	m.Tags = nullString(tags)
	return m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// ListByUser returns the user's memories, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]model.Memory, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE user_id=? ORDER BY date DESC, created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create inserts m.
func (r *MemoryRepo) Create(ctx context.Context, m model.Memory) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO memories ("+memoryColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		m.ID, m.UserID, m.Date, m.Title, m.Description, m.PhotoData, m.Location,
		m.MoodLevel, m.Tags, m.IsShared, m.CreatedAt, m.UpdatedAt)
	return err
}

// GetOwned returns memory id if it belongs to userID, otherwise ErrNotFound.
func (r *MemoryRepo) GetOwned(ctx context.Context, id, userID string) (model.Memory, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE id=? AND user_id=? LIMIT 1", id, userID)
	return scanMemory(row)
}

// Save overwrites every mutable column of m.
func (r *MemoryRepo) Save(ctx context.Context, m model.Memory) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE memories SET date=?, title=?, description=?, photo_data=?, location=?, mood_level=?, tags=?, is_shared=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		m.Date, m.Title, m.Description, m.PhotoData, m.Location, m.MoodLevel, m.Tags, m.IsShared,
		time.Now().UTC(), m.ID, m.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the caller's memory id.
func (r *MemoryRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM memories WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
