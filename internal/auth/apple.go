package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

// Identity token rejection causes, logged but never returned to clients.
const (
	CauseSignature = "signature"
	CauseIssuer    = "issuer"
	CauseAudience  = "audience"
	CauseExpired   = "expired"
	CauseSubject   = "subject"
)

// ExternalIdentity is the verified content of a provider identity token.
type ExternalIdentity struct {
	Subject string
	Email   string // empty when the provider did not share one
}

// IdentityVerifier verifies provider identity tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken, audience, issuer string) (ExternalIdentity, error)
}

type appleClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AppleVerifier verifies Sign in with Apple identity tokens (RS256) against
// keys from a KeySource.
type AppleVerifier struct {
	keys   KeySource
	now    func() time.Time
	logger *slog.Logger
}

// NewAppleVerifier returns a verifier resolving signing keys through keys.
func NewAppleVerifier(keys KeySource, logger *slog.Logger) *AppleVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppleVerifier{keys: keys, now: time.Now, logger: logger}
}

// Verify checks, in order: signature, issuer, audience, expiry and subject.
// Every failure is reported to the caller as the same BAD_REQUEST error; the
// specific cause is only logged.
func (v *AppleVerifier) Verify(ctx context.Context, idToken, audience, issuer string) (ExternalIdentity, error) {
	var parsed appleClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(idToken), &parsed, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return ExternalIdentity{}, v.reject(CauseSignature, err)
	}

	if parsed.Issuer != issuer {
		return ExternalIdentity{}, v.reject(CauseIssuer, errors.New("issuer "+parsed.Issuer))
	}
	if len(parsed.Audience) != 1 || parsed.Audience[0] != audience {
		return ExternalIdentity{}, v.reject(CauseAudience, errors.New("audience "+strings.Join(parsed.Audience, ",")))
	}
	if parsed.ExpiresAt == nil {
		return ExternalIdentity{}, v.reject(CauseExpired, errors.New("exp missing"))
	}
	if v.now().After(parsed.ExpiresAt.Time) {
		return ExternalIdentity{}, v.reject(CauseExpired, errors.New("token expired"))
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return ExternalIdentity{}, v.reject(CauseSubject, errors.New("subject missing"))
	}

	return ExternalIdentity{Subject: parsed.Subject, Email: strings.TrimSpace(parsed.Email)}, nil
}

func (v *AppleVerifier) reject(cause string, err error) error {
	v.logger.Warn("apple identity token rejected", slog.String("cause", cause), slog.Any("error", err))
	return apperror.BadRequest("invalid identity token", nil).WithReason(cause).WithCause(err)
}
