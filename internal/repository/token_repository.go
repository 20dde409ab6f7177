package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo is the session token denylist. Tokens are not stored when they
// are issued; a row is written only when a token is revoked and is kept
// until the token would have expired anyway.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Revoke adds jti to the denylist. Revoking twice is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, jti, userID string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (jti, user_id, expires_at, revoked_at) VALUES (?,?,?,?)",
		jti, userID, exp.UTC(), time.Now().UTC())
	return err
}

// IsRevoked reports whether jti has been revoked.
func (r *TokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_tokens WHERE jti=?", jti).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired removes denylist rows whose token has expired and returns
// how many were deleted.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
