package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

// PartnershipRepo manages partner invites and links.
type PartnershipRepo struct{ DB *sql.DB }

func NewPartnershipRepo(db *sql.DB) *PartnershipRepo { return &PartnershipRepo{DB: db} }

const partnershipColumns = "id,user_id,partner_id,connection_code,status,created_at"

func scanPartnership(s scanner) (model.Partnership, error) {
	var (
		p       model.Partnership
		partner sql.NullString
	)
	err := s.Scan(&p.ID, &p.UserID, &partner, &p.ConnectionCode, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Partnership{}, ErrNotFound
	}
	if err != nil {
		return model.Partnership{}, err
	}
	p.PartnerID = nullString(partner)
	return p, nil
}

// CreateInvite stores a pending partnership. A colliding connection code
// yields ErrConflict so the caller can retry with a fresh code.
func (r *PartnershipRepo) CreateInvite(ctx context.Context, p model.Partnership) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO partnerships (id, user_id, connection_code, status, created_at) VALUES (?,?,?,?,?)",
		p.ID, p.UserID, p.ConnectionCode, model.PartnershipPending, p.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByCode returns the partnership identified by code, or ErrNotFound.
func (r *PartnershipRepo) GetByCode(ctx context.Context, code string) (model.Partnership, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+partnershipColumns+" FROM partnerships WHERE connection_code=? LIMIT 1", code)
	return scanPartnership(row)
}

// ActiveBetween reports whether a and b are linked in either direction.
func (r *PartnershipRepo) ActiveBetween(ctx context.Context, a, b string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM partnerships
		 WHERE status=? AND ((user_id=? AND partner_id=?) OR (user_id=? AND partner_id=?))`,
		model.PartnershipActive, a, b, b, a).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Activate redeems a pending invite for partnerID. An invite that is no
// longer pending yields ErrConflict.
func (r *PartnershipRepo) Activate(ctx context.Context, id, partnerID string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE partnerships SET partner_id=?, status=? WHERE id=? AND status=?",
		partnerID, model.PartnershipActive, id, model.PartnershipPending)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns partnership id, or ErrNotFound.
func (r *PartnershipRepo) GetByID(ctx context.Context, id string) (model.Partnership, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+partnershipColumns+" FROM partnerships WHERE id=? LIMIT 1", id)
	return scanPartnership(row)
}

// ListForUser returns every partnership where userID is either side, newest first.
func (r *PartnershipRepo) ListForUser(ctx context.Context, userID string) ([]model.Partnership, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+partnershipColumns+" FROM partnerships WHERE user_id=? OR partner_id=? ORDER BY created_at DESC",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Partnership, 0)
	for rows.Next() {
		p, err := scanPartnership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
