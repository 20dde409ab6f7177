package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/auth"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
)

// Authenticator verifies a raw session token. auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// Gate rejection reasons, used as metric labels.
const (
	rejectNoHeader        = "no_header"
	rejectMalformedScheme = "malformed_scheme"
)

// BearerToken extracts the token from an Authorization header value. Only the
// exact "Bearer <token>" form is accepted.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}

// RequireAuth returns an Echo middleware that admits a request only when it
// carries a valid `Authorization: Bearer <token>` header. On success the
// verified user id is stored in the context (see UserID) and nothing else
// from the token is exposed to handlers. Every rejection is an UNAUTHORIZED
// error rendered by the HTTP error handler; next is not called.
func RequireAuth(authn Authenticator, m *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				m.RecordGateRejection(rejectNoHeader)
				return apperror.Unauthorized("Authorization header required")
			}

			token, ok := BearerToken(header)
			if !ok {
				m.RecordGateRejection(rejectMalformedScheme)
				return apperror.Unauthorized("Invalid authorization header format")
			}

			session, err := authn.Authenticate(c.Request().Context(), token)
			if err != nil {
				appErr := apperror.From(err)
				reason := appErr.Reason
				if reason == "" {
					reason = strings.ToLower(string(appErr.Code))
				}
				m.RecordGateRejection(reason)
				return appErr
			}

			SetUserID(c, session.Subject)
			return next(c)
		}
	}
}
