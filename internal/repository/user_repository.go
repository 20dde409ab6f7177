package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// UserRepo persists accounts, their default profile and external identity
// links. Multi-table writes run in a single transaction.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,name,created_at,last_login_at"

// NormalizeEmail lowercases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateWithProfile inserts a password account and its profile atomically.
// A duplicate email yields ErrEmailExists and leaves no rows behind.
func (r *UserRepo) CreateWithProfile(ctx context.Context, u model.User, p model.Profile) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		return insertProfile(ctx, tx, p)
	})
}

// CreateWithIdentity inserts an account, its profile and the external
// identity link in one transaction. The two unique violations are reported
// separately: ErrEmailExists for the users row, ErrIdentityExists when the
// subject was linked concurrently.
func (r *UserRepo) CreateWithIdentity(ctx context.Context, u model.User, p model.Profile, id model.ExternalIdentity) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		if err := insertProfile(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO external_identities (subject, provider, user_id, email, created_at) VALUES (?,?,?,?,?)",
			id.Subject, id.Provider, id.UserID, id.Email, id.CreatedAt)
		if err != nil {
			if isDuplicate(err) {
				return ErrIdentityExists
			}
			return err
		}
		return nil
	})
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// TouchLastLogin records a successful sign-in.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

func insertUser(ctx context.Context, tx *sql.Tx, u model.User) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, created_at) VALUES (?,?,?,?,?)",
		u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.Name, u.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		hash      sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &hash, &u.Name, &u.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
