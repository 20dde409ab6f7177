package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

type errorPayload struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
	Details any           `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

// ErrorHandler is the echo HTTPErrorHandler. It is the only place where an
// error becomes a response body and the only place its cause is logged.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := toAppError(err)

		attrs := []any{
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", appErr.Status),
			slog.String("code", string(appErr.Code)),
		}
		if appErr.Reason != "" {
			attrs = append(attrs, slog.String("reason", appErr.Reason))
		}
		if appErr.Err != nil {
			attrs = append(attrs, slog.Any("error", appErr.Err))
		}
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(appErr.Status)
		} else {
			err = c.JSON(appErr.Status, errorEnvelope{Error: errorPayload{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}})
		}
		if err != nil {
			logger.Error("write error response failed", slog.Any("error", err))
		}
	}
}

// toAppError maps framework errors (unknown route, bad method, body too
// large) onto the application error codes.
func toAppError(err error) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		return apperror.Internal(err)
	}

	msg := http.StatusText(httpErr.Code)
	if s, ok := httpErr.Message.(string); ok && s != "" {
		msg = s
	} else if httpErr.Message != nil {
		msg = fmt.Sprint(httpErr.Message)
	}

	var out *apperror.Error
	switch httpErr.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		out = apperror.NotFound(msg)
	case http.StatusUnauthorized:
		out = apperror.Unauthorized(msg)
	case http.StatusForbidden:
		out = apperror.Forbidden(msg)
	case http.StatusConflict:
		out = apperror.Conflict(msg, nil)
	case http.StatusTooManyRequests:
		out = apperror.TooManyRequests(msg)
	default:
		if httpErr.Code >= http.StatusInternalServerError {
			return apperror.Internal(err)
		}
		out = apperror.BadRequest(msg, nil)
	}
	out.Status = httpErr.Code
	return out.WithCause(httpErr.Internal)
}
