package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// ProfileRepo reads and writes the one-to-one `profiles` table.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// Get returns the profile of user id, or ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, id string) (model.Profile, error) {
	var (
		p     model.Profile
		photo sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,birth_date,zodiac_sign,profile_photo_url,created_at,updated_at FROM profiles WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.Name, &p.BirthDate, &p.ZodiacSign, &photo, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}
	if photo.Valid {
		p.ProfilePhotoURL = &photo.String
	}
	return p, nil
}

// Upsert stores p, creating the row when the user has none yet.
func (r *ProfileRepo) Upsert(ctx context.Context, p model.Profile) error {
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO profiles (id, name, birth_date, zodiac_sign, profile_photo_url, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE name=VALUES(name), birth_date=VALUES(birth_date),
		   zodiac_sign=VALUES(zodiac_sign), profile_photo_url=VALUES(profile_photo_url), updated_at=VALUES(updated_at)`,
		p.ID, p.Name, p.BirthDate, p.ZodiacSign, p.ProfilePhotoURL, now, now)
	return err
}

func insertProfile(ctx context.Context, tx *sql.Tx, p model.Profile) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO profiles (id, name, birth_date, zodiac_sign, profile_photo_url, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		p.ID, p.Name, p.BirthDate, p.ZodiacSign, p.ProfilePhotoURL, now, now)
	return err
}
