// Package auth holds the authentication core: password hashing, session
// token issuance and verification, Sign in with Apple token verification and
// the account resolution built on top of them.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

const (
	// DefaultBcryptCost is the work factor used for stored password hashes.
	DefaultBcryptCost = 12
	// MinPasswordLength is checked before any hashing work is done.
	MinPasswordLength = 8
)

// dummyHash is compared against when no account matches, so that unknown
// emails cost the same bcrypt work as wrong passwords.
var dummyHash = []byte("$2a$12$C6UzMDM.H6dfI/f/IKxGhuRj3ORnuUoFpe/R9oIjEIq/FvkF7QjvW")

// Passwords hashes and compares account passwords.
type Passwords struct {
	cost int
}

// NewPasswords returns a hasher using DefaultBcryptCost.
func NewPasswords() *Passwords { return &Passwords{cost: DefaultBcryptCost} }

// Hash validates plain and returns its bcrypt hash. Policy violations are
// reported as BAD_REQUEST errors.
func (p *Passwords) Hash(plain string) (string, error) {
	if len(plain) < MinPasswordLength {
		return "", apperror.BadRequest("password must be at least 8 characters", nil)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperror.BadRequest("password must be at most 72 bytes", nil)
		}
		return "", apperror.Internal(err)
	}
	return string(b), nil
}

// Compare reports whether plain matches hash.
func (p *Passwords) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CompareDummy burns one comparison against a fixed hash. Callers use it on
// the unknown-account path.
func (p *Passwords) CompareDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
