package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wetwo-backend/internal/auth"
	"github.com/iliyamo/wetwo-backend/internal/config"
	"github.com/iliyamo/wetwo-backend/internal/handler"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
)

const testSecret = "router-test-secret-0123456789abcdef"

// accounts is an in-memory account store for the auth service.
type accounts struct {
	mu       sync.Mutex
	byID     map[string]model.User
	profiles map[string]model.Profile
}

func newAccounts() *accounts {
	return &accounts{byID: map[string]model.User{}, profiles: map[string]model.Profile{}}
}

func (a *accounts) CreateWithProfile(_ context.Context, u model.User, p model.Profile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	a.byID[u.ID] = u
	a.profiles[p.ID] = p
	return nil
}

func (a *accounts) CreateWithIdentity(context.Context, model.User, model.Profile, model.ExternalIdentity) error {
	return repository.ErrIdentityExists
}

func (a *accounts) GetByEmail(_ context.Context, email string) (model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (a *accounts) GetByID(_ context.Context, id string) (model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (a *accounts) TouchLastLogin(context.Context, string, time.Time) error { return nil }

func (a *accounts) FindBySubject(context.Context, string) (model.ExternalIdentity, error) {
	return model.ExternalIdentity{}, repository.ErrNotFound
}

func (a *accounts) Get(_ context.Context, id string) (model.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.profiles[id]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (a *accounts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byID)
}

type testServer struct {
	e        *echo.Echo
	accounts *accounts
	reg      *prometheus.Registry
}

func newTestServer(t *testing.T, limits config.RateLimits) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newAccounts()
	sessions, err := auth.NewSessionManager(testSecret)
	require.NoError(t, err)

	svc := auth.NewService(auth.Deps{
		Users:      store,
		Identities: store,
		Profiles:   store,
		Passwords:  auth.NewPasswords(),
		Sessions:   sessions,
		Logger:     logger,
	})
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	h := Handlers{
		Auth:         handler.NewAuthHandler(svc, m),
		Profile:      handler.NewProfileHandler(nil, logger),
		Mood:         handler.NewMoodHandler(nil, logger),
		Memory:       handler.NewMemoryHandler(nil, logger),
		Partnership:  handler.NewPartnershipHandler(nil, nil, logger),
		LoveMessage:  handler.NewLoveMessageHandler(nil, nil, nil, nil, logger),
		Notification: handler.NewNotificationHandler(nil),
	}
	e := New(h, Options{
		Logger:   logger,
		Authn:    svc,
		Metrics:  m,
		Gatherer: reg,
		Limits:   limits,
	})
	return &testServer{e: e, accounts: store, reg: reg}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type response struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Token  string `json:"token"`
		User   struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func noLimits() config.RateLimits { return config.RateLimits{} }

const signupBody = `{"email":"a@x.com","password":"password1","name":"A","birthDate":"1990-01-01"}`

func TestSignupExample_ThenDuplicateConflicts(t *testing.T) {
	s := newTestServer(t, noLimits())

	rec := s.do(http.MethodPost, "/auth/signup", "", signupBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := parse(t, rec)
	assert.NotEmpty(t, first.Data.Token)
	assert.Equal(t, "a@x.com", first.Data.User.Email)
	assert.Nil(t, first.Error)

	rec = s.do(http.MethodPost, "/auth/signup", "", signupBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	second := parse(t, rec)
	require.NotNil(t, second.Error)
	assert.Equal(t, "CONFLICT", second.Error.Code)
	assert.Equal(t, 1, s.accounts.count())
}

func TestGarbageBearer_IsUnauthorized(t *testing.T) {
	s := newTestServer(t, noLimits())

	for _, path := range []string{"/me", "/me/profile", "/mood-entries/today", "/memories?user_id=x"} {
		rec := s.do(http.MethodGet, path, "Bearer garbage", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		r := parse(t, rec)
		require.NotNil(t, r.Error, path)
		assert.Equal(t, "UNAUTHORIZED", r.Error.Code)
	}
}

func TestSigninToken_OpensProtectedRoutes(t *testing.T) {
	s := newTestServer(t, noLimits())
	signup := parse(t, s.do(http.MethodPost, "/auth/signup", "", signupBody))

	rec := s.do(http.MethodPost, "/auth/signin", "", `{"email":"A@X.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signin := parse(t, rec)
	assert.Equal(t, signup.Data.User.ID, signin.Data.User.ID)

	rec = s.do(http.MethodGet, "/me", "Bearer "+signin.Data.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, signup.Data.User.ID, parse(t, rec).Data.ID)

	rec = s.do(http.MethodGet, "/memories?user_id=someone-else", "Bearer "+signin.Data.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", parse(t, rec).Error.Code)
}

func TestSignin_DoesNotEnumerateAccounts(t *testing.T) {
	s := newTestServer(t, noLimits())
	s.do(http.MethodPost, "/auth/signup", "", signupBody)

	wrong := s.do(http.MethodPost, "/auth/signin", "", `{"email":"a@x.com","password":"wrong-password"}`)
	unknown := s.do(http.MethodPost, "/auth/signin", "", `{"email":"b@x.com","password":"wrong-password"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t, noLimits())

	rec := s.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", parse(t, rec).Data.Status)

	rec = s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = s.do(http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", parse(t, rec).Error.Code)
}

func TestAuthRoutes_AreRateLimited(t *testing.T) {
	limits := config.RateLimits{Auth: config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   5,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl:auth",
	}}
	s := newTestServer(t, limits)

	body := `{"email":"nobody@x.com","password":"password1"}`
	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/auth/signin", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(http.MethodPost, "/auth/signin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "BAD_REQUEST", parse(t, rec).Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
