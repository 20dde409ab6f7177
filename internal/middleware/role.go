package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

// RequireSelfQuery returns a middleware for list endpoints addressed as
// `?<param>=<user id>`. The parameter must be present and equal to the
// authenticated user; otherwise the request is aborted with FORBIDDEN.
// It must run after RequireAuth.
func RequireSelfQuery(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" || c.QueryParam(param) != uid {
				return apperror.Forbidden("Access denied")
			}
			return next(c)
		}
	}
}
