package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
)

// NotificationStore reads and acknowledges the caller's notifications.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (model.Notification, error)
}

type NotificationHandler struct {
	notifications NotificationStore
}

func NewNotificationHandler(notifications NotificationStore) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c echo.Context) error {
	list, err := h.notifications.ListByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, list)
}

// MarkRead flags one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	n, err := h.notifications.MarkRead(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Notification not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, n)
}
