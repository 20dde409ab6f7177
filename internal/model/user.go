package model

import "time"

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID           – opaque UUID identifier.
//  Email        – unique address; Apple accounts without an email carry a
//                 synthesized placeholder.
//  PasswordHash – bcrypt hash, nil for accounts created through Apple.
//  Name         – display name.
//  CreatedAt    – timestamp of creation.
//  LastLoginAt  – last successful password sign-in (nil if never).
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"`
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// HasPassword reports whether the account can sign in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserSummary is the public projection returned by the auth endpoints.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Summary projects u onto its public fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// ExternalIdentity links an identity provider subject to a local user. Rows
// in `external_identities` are written once and never updated.
type ExternalIdentity struct {
	Subject   string    // external_identities.subject (unique)
	Provider  string    // external_identities.provider
	UserID    string    // external_identities.user_id
	Email     *string   // email asserted by the provider at link time
	CreatedAt time.Time // external_identities.created_at
}

// ProviderApple identifies Sign in with Apple links.
const ProviderApple = "apple"
