package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/auth"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
	"github.com/iliyamo/wetwo-backend/internal/model"
)

// AuthService is the account and session logic behind the auth endpoints.
type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput) (auth.Result, error)
	Signin(ctx context.Context, email, password string) (auth.Result, error)
	AppleSignIn(ctx context.Context, idToken string) (auth.Result, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	svc     AuthService
	metrics *metrics.Collector
}

func NewAuthHandler(svc AuthService, m *metrics.Collector) *AuthHandler {
	return &AuthHandler{svc: svc, metrics: m}
}

// ----- DTOs -----

type signupReq struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	Name      string `json:"name" validate:"required,notblank,max=100"`
	BirthDate string `json:"birthDate" validate:"required,date"`
}

type signinReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type appleReq struct {
	IDToken string `json:"idToken" validate:"required"`
}

type authResp struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      model.UserSummary `json:"user"`
	Profile   *model.Profile    `json:"profile,omitempty"`
}

func newAuthResp(r auth.Result) authResp {
	return authResp{
		Token:     r.Token,
		ExpiresAt: r.Session.ExpiresAt,
		User:      r.User.Summary(),
		Profile:   r.Profile,
	}
}

// Signup: create the account with its default profile and return a session.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindAndValidate(c, &req); err != nil {
		h.metrics.RecordAuthAttempt("signup", "invalid")
		return err
	}

	birth, err := model.ParseDate(req.BirthDate)
	if err != nil {
		h.metrics.RecordAuthAttempt("signup", "invalid")
		return apperror.BadRequest(msgInvalidRequest, map[string]string{"birthDate": msgDateFormat})
	}

	res, err := h.svc.Signup(c.Request().Context(), auth.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		BirthDate: birth,
	})
	if err != nil {
		h.metrics.RecordAuthAttempt("signup", outcome(err))
		return err
	}
	h.metrics.RecordAuthAttempt("signup", "success")
	return respondData(c, http.StatusCreated, newAuthResp(res))
}

// Signin: verify email and password.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := bindAndValidate(c, &req); err != nil {
		h.metrics.RecordAuthAttempt("signin", "invalid")
		return err
	}
	res, err := h.svc.Signin(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuthAttempt("signin", outcome(err))
		return err
	}
	h.metrics.RecordAuthAttempt("signin", "success")
	return respondData(c, http.StatusOK, newAuthResp(res))
}

// Apple: sign in with an Apple identity token, creating the account on first use.
func (h *AuthHandler) Apple(c echo.Context) error {
	var req appleReq
	if err := bindAndValidate(c, &req); err != nil {
		h.metrics.RecordAuthAttempt("apple", "invalid")
		return err
	}
	res, err := h.svc.AppleSignIn(c.Request().Context(), req.IDToken)
	if err != nil {
		h.metrics.RecordAuthAttempt("apple", outcome(err))
		return err
	}
	h.metrics.RecordAuthAttempt("apple", "success")
	return respondData(c, http.StatusOK, newAuthResp(res))
}

// Logout revokes the presented session token until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return apperror.Unauthorized("Authorization header required")
	}
	token, ok := middleware.BearerToken(header)
	if !ok {
		return apperror.Unauthorized("Invalid authorization header format")
	}
	if err := h.svc.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return respondData(c, http.StatusOK, messageBody{Message: "Logged out successfully"})
}

// Me returns the authenticated user id.
func (h *AuthHandler) Me(c echo.Context) error {
	return respondData(c, http.StatusOK, map[string]string{"id": middleware.UserID(c)})
}

// outcome labels a failed auth attempt by its error code.
func outcome(err error) string {
	switch apperror.From(err).Code {
	case apperror.CodeBadRequest:
		return "invalid"
	case apperror.CodeUnauthorized:
		return "rejected"
	case apperror.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}
