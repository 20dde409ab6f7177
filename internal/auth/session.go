package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

// Session token constants.
const (
	SessionIssuer   = "wetwo-backend"
	SessionAudience = "wetwo-app"
	SessionScope    = "user"
	SessionTTL      = 7 * 24 * time.Hour
	MinSecretLength = 32
)

// Reasons attached to UNAUTHORIZED errors returned by Verify.
const (
	ReasonExpired = "expired"
	ReasonInvalid = "invalid"
)

// Session is the verified content of a session token.
type Session struct {
	Subject   string
	Scope     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager returns a manager signing with secret. Secrets shorter
// than MinSecretLength are rejected.
func NewSessionManager(secret string) (*SessionManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	}
	return &SessionManager{secret: []byte(secret), ttl: SessionTTL, now: time.Now}, nil
}

// Issue signs a new token for userID.
func (m *SessionManager) Issue(userID string) (string, Session, error) {
	now := m.now().UTC().Truncate(time.Second)
	s := Session{
		Subject:   userID,
		Scope:     SessionScope,
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	claims := sessionClaims{
		Scope: s.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Subject,
			Issuer:    SessionIssuer,
			Audience:  jwt.ClaimStrings{SessionAudience},
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			ID:        s.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, apperror.Internal(err)
	}
	return signed, s, nil
}

// Verify checks the signature and claims of token. Failures are UNAUTHORIZED
// errors whose Reason is ReasonExpired or ReasonInvalid.
func (m *SessionManager) Verify(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, invalidToken(errors.New("empty token"))
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Session{}, invalidToken(err)
	}

	if parsed.Issuer != SessionIssuer {
		return Session{}, invalidToken(errors.New("issuer mismatch"))
	}
	if !slices.Contains(parsed.Audience, SessionAudience) {
		return Session{}, invalidToken(errors.New("audience mismatch"))
	}
	if parsed.Scope != SessionScope {
		return Session{}, invalidToken(errors.New("scope mismatch"))
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Session{}, invalidToken(errors.New("subject missing"))
	}
	if parsed.ExpiresAt == nil {
		return Session{}, invalidToken(errors.New("exp missing"))
	}

	exp := parsed.ExpiresAt.Time.UTC()
	if m.now().UTC().After(exp) {
		return Session{}, apperror.Unauthorized("Token expired").WithReason(ReasonExpired)
	}

	s := Session{
		Subject:   parsed.Subject,
		Scope:     parsed.Scope,
		ID:        parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		s.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return s, nil
}

func invalidToken(cause error) *apperror.Error {
	return apperror.Unauthorized("Invalid token").WithReason(ReasonInvalid).WithCause(cause)
}
