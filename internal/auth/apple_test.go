package auth

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

const (
	testAudience = "com.example.wetwo"
	testIssuer   = "https://appleid.apple.com"
)

type staticKeys map[string]crypto.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (crypto.PublicKey, error) {
	if k, ok := s[kid]; ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

type appleFixture struct {
	key      *rsa.PrivateKey
	verifier *AppleVerifier
	logs     *bytes.Buffer
	now      time.Time
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()
	key := newRSAKey(t)
	logs := &bytes.Buffer{}
	v := NewAppleVerifier(staticKeys{"apple-1": &key.PublicKey}, slog.New(slog.NewJSONHandler(logs, nil)))
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }
	return &appleFixture{key: key, verifier: v, logs: logs, now: now}
}

func (f *appleFixture) claims() appleClaims {
	return appleClaims{
		Email: "alex@privaterelay.appleid.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			Subject:   "001234.abcdef",
			IssuedAt:  jwt.NewNumericDate(f.now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(f.now.Add(10 * time.Minute)),
		},
	}
}

func (f *appleFixture) sign(t *testing.T, c appleClaims, kid string, key *rsa.PrivateKey) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAppleVerify_Valid(t *testing.T) {
	f := newAppleFixture(t)
	token := f.sign(t, f.claims(), "apple-1", f.key)

	ident, err := f.verifier.Verify(context.Background(), token, testAudience, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "001234.abcdef", ident.Subject)
	assert.Equal(t, "alex@privaterelay.appleid.com", ident.Email)
}

func TestAppleVerify_EmailIsOptional(t *testing.T) {
	f := newAppleFixture(t)
	c := f.claims()
	c.Email = ""

	ident, err := f.verifier.Verify(context.Background(), f.sign(t, c, "apple-1", f.key), testAudience, testIssuer)
	require.NoError(t, err)
	assert.Empty(t, ident.Email)
}

func TestAppleVerify_RejectionCauses(t *testing.T) {
	f := newAppleFixture(t)
	otherKey := newRSAKey(t)

	wrongIssuer := f.claims()
	wrongIssuer.Issuer = "https://evil.example.com"
	wrongAudience := f.claims()
	wrongAudience.Audience = jwt.ClaimStrings{"com.other.app"}
	extraAudience := f.claims()
	extraAudience.Audience = jwt.ClaimStrings{testAudience, "com.other.app"}
	expired := f.claims()
	expired.ExpiresAt = jwt.NewNumericDate(f.now.Add(-time.Second))
	noSubject := f.claims()
	noSubject.Subject = ""
	// issuer is checked before expiry
	expiredWrongIssuer := expired
	expiredWrongIssuer.Issuer = "https://evil.example.com"

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims()).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		cause string
	}{
		{"garbage", "not-a-jwt", CauseSignature},
		{"unknown kid", f.sign(t, f.claims(), "apple-2", f.key), CauseSignature},
		{"wrong key", f.sign(t, f.claims(), "apple-1", otherKey), CauseSignature},
		{"hs256", hs, CauseSignature},
		{"wrong issuer", f.sign(t, wrongIssuer, "apple-1", f.key), CauseIssuer},
		{"wrong audience", f.sign(t, wrongAudience, "apple-1", f.key), CauseAudience},
		{"extra audience", f.sign(t, extraAudience, "apple-1", f.key), CauseAudience},
		{"expired", f.sign(t, expired, "apple-1", f.key), CauseExpired},
		{"no subject", f.sign(t, noSubject, "apple-1", f.key), CauseSubject},
		{"issuer before expiry", f.sign(t, expiredWrongIssuer, "apple-1", f.key), CauseIssuer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.logs.Reset()
			_, err := f.verifier.Verify(context.Background(), tc.token, testAudience, testIssuer)
			require.Error(t, err)

			appErr := apperror.From(err)
			assert.Equal(t, apperror.CodeBadRequest, appErr.Code)
			assert.Equal(t, "invalid identity token", appErr.Message)
			assert.Equal(t, tc.cause, appErr.Reason)
			assert.Contains(t, f.logs.String(), `"cause":"`+tc.cause+`"`)
		})
	}
}
