package middleware

// identity.go holds the context accessors for the authenticated user.
// RequireAuth writes the id; handlers and the rate limiter read it through
// UserID.

import (
	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// SetUserID stores the verified user id. RequireAuth is the only caller in
// the request path; handler tests use it to stand in for the gate.
func SetUserID(c echo.Context, id string) {
	c.Set(userIDKey, id)
}

// UserID returns the verified user id stored by RequireAuth, or "" when the
// request was not authenticated.
func UserID(c echo.Context) string {
	if v, ok := c.Get(userIDKey).(string); ok {
		return v
	}
	return ""
}
