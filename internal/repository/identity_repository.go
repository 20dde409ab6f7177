package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// IdentityRepo looks up external identity links. Links are created only
// through UserRepo.CreateWithIdentity.
type IdentityRepo struct{ DB *sql.DB }

func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{DB: db} }

// FindBySubject returns the link for subject, or ErrNotFound.
func (r *IdentityRepo) FindBySubject(ctx context.Context, subject string) (model.ExternalIdentity, error) {
	var (
		id    model.ExternalIdentity
		email sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT subject,provider,user_id,email,created_at FROM external_identities WHERE subject=? LIMIT 1",
		subject).Scan(&id.Subject, &id.Provider, &id.UserID, &email, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExternalIdentity{}, ErrNotFound
	}
	if err != nil {
		return model.ExternalIdentity{}, err
	}
	if email.Valid {
		id.Email = &email.String
	}
	return id, nil
}
