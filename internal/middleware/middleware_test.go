package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/auth"
	"github.com/iliyamo/wetwo-backend/internal/config"
)

// stubAuthn accepts exactly one token.
type stubAuthn struct {
	token string
	calls int
}

func (s *stubAuthn) Authenticate(_ context.Context, token string) (auth.Session, error) {
	s.calls++
	if token == s.token {
		return auth.Session{Subject: "user-42", Scope: "user"}, nil
	}
	return auth.Session{}, apperror.Unauthorized("Invalid token").WithReason(auth.ReasonInvalid)
}

func newCtx(method, target string, header map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireAuth_States(t *testing.T) {
	cases := []struct {
		name        string
		header      string
		wantMessage string
		wantCalls   int
	}{
		{"no header", "", "Authorization header required", 0},
		{"basic scheme", "Basic dXNlcjpwYXNz", "Invalid authorization header format", 0},
		{"lowercase bearer", "bearer good", "Invalid authorization header format", 0},
		{"bearer without token", "Bearer ", "Invalid authorization header format", 0},
		{"bare token", "good", "Invalid authorization header format", 0},
		{"extra segment", "Bearer good extra", "Invalid authorization header format", 0},
		{"garbage token", "Bearer garbage", "Invalid token", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authn := &stubAuthn{token: "good"}
			headers := map[string]string{}
			if tc.header != "" {
				headers[echo.HeaderAuthorization] = tc.header
			}
			c, _ := newCtx(http.MethodGet, "/me", headers)

			nextCalled := false
			err := RequireAuth(authn, nil)(func(echo.Context) error {
				nextCalled = true
				return nil
			})(c)

			require.Error(t, err)
			appErr := apperror.From(err)
			assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
			assert.Equal(t, tc.wantMessage, appErr.Message)
			assert.False(t, nextCalled)
			assert.Equal(t, tc.wantCalls, authn.calls)
			assert.Empty(t, UserID(c))
		})
	}
}

func TestRequireAuth_ValidTokenAttachesOnlyUserID(t *testing.T) {
	authn := &stubAuthn{token: "good"}
	c, _ := newCtx(http.MethodGet, "/me", map[string]string{echo.HeaderAuthorization: "Bearer good"})

	var seen string
	err := RequireAuth(authn, nil)(func(c echo.Context) error {
		seen = UserID(c)
		return nil
	})(c)

	require.NoError(t, err)
	assert.Equal(t, "user-42", seen)
}

func TestRequireSelfQuery(t *testing.T) {
	handler := RequireSelfQuery("user_id")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, rec := newCtx(http.MethodGet, "/memories?user_id=user-42", nil)
	SetUserID(c, "user-42")
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, target := range []string{"/memories?user_id=someone-else", "/memories"} {
		c, _ := newCtx(http.MethodGet, target, nil)
		SetUserID(c, "user-42")
		err := handler(c)
		assert.True(t, apperror.Is(err, apperror.CodeForbidden), target)
	}
}

func testBucketConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   capacity,
		RefillInterval: time.Minute,
		TTL:            5 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl:test",
	}
}

func TestNewTokenBucket_InMemoryFallbackLimits(t *testing.T) {
	mw := NewTokenBucket("auth", testBucketConfig(2), nil, nil)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	for i := 0; i < 2; i++ {
		c, _ := newCtx(http.MethodPost, "/auth/signin", nil)
		require.NoError(t, mw(ok)(c))
	}

	c, rec := newCtx(http.MethodPost, "/auth/signin", nil)
	err := mw(ok)(c)
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
	assert.Equal(t, apperror.CodeBadRequest, appErr.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestNewTokenBucket_KeysAreIndependent(t *testing.T) {
	mw := NewTokenBucket("auth", testBucketConfig(1), nil, nil)
	ok := func(c echo.Context) error { return nil }

	a, _ := newCtx(http.MethodPost, "/auth/signin", map[string]string{echo.HeaderXRealIP: "10.0.0.1"})
	b, _ := newCtx(http.MethodPost, "/auth/signin", map[string]string{echo.HeaderXRealIP: "10.0.0.2"})
	assert.NoError(t, mw(ok)(a))
	assert.NoError(t, mw(ok)(b))
}

func TestNewTokenBucket_Disabled(t *testing.T) {
	cfg := testBucketConfig(1)
	cfg.Enabled = false
	mw := NewTokenBucket("auth", cfg, nil, nil)
	for i := 0; i < 5; i++ {
		c, _ := newCtx(http.MethodPost, "/auth/signin", nil)
		assert.NoError(t, mw(func(echo.Context) error { return nil })(c))
	}
}

func TestMemoryBucket_RefillsAndCollectsIdleKeys(t *testing.T) {
	b := newMemoryBucket(testBucketConfig(1))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := b.take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.allowed)

	d, err = b.take(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.allowed)
	assert.InDelta(t, time.Minute.Seconds(), d.retry.Seconds(), 1)

	now = now.Add(time.Minute)
	d, err = b.take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.allowed)

	now = now.Add(time.Hour)
	_, err = b.take(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, b.limiters, 1)
}

func TestBuildRateKey(t *testing.T) {
	cfg := testBucketConfig(1)
	cfg.KeyStrategy = "ip_user"
	c, _ := newCtx(http.MethodPost, "/mood-entries", map[string]string{echo.HeaderXRealIP: "10.0.0.9"})
	assert.Equal(t, "rl:test:ip:10.0.0.9:user:anon", buildRateKey(cfg, c))

	SetUserID(c, "user-1")
	assert.Equal(t, "rl:test:ip:10.0.0.9:user:user-1", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.EqualValues(t, 7, asInt64(int64(7)))
	assert.EqualValues(t, 7, asInt64("7"))
	assert.EqualValues(t, 0, asInt64(errors.New("x")))
}
