package model

import "time"

// Partnership statuses.
const (
	PartnershipPending = "pending"
	PartnershipActive  = "active"
)

// Partnership mirrors the `partnerships` table. A pending row is an invite
// created by UserID and identified by ConnectionCode; once another user
// redeems the code the row becomes active with PartnerID set.
type Partnership struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	PartnerID      *string   `json:"partnerId,omitempty"`
	ConnectionCode string    `json:"connectionCode"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsActive reports whether both sides of the partnership are linked.
func (p Partnership) IsActive() bool {
	return p.Status == PartnershipActive && p.PartnerID != nil
}
