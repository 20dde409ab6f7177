package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
	"github.com/iliyamo/wetwo-backend/internal/service"
)

// LoveMessageStore persists messages between partners.
type LoveMessageStore interface {
	Create(ctx context.Context, m model.LoveMessage) error
	ListForUser(ctx context.Context, userID string) ([]model.LoveMessage, error)
}

// UserLookup resolves message receivers.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// PartnerCheck reports whether two users are actively linked.
type PartnerCheck interface {
	ActiveBetween(ctx context.Context, a, b string) (bool, error)
}

type LoveMessageHandler struct {
	messages LoveMessageStore
	users    UserLookup
	partners PartnerCheck
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewLoveMessageHandler(messages LoveMessageStore, users UserLookup, partners PartnerCheck, notifier Notifier, logger *slog.Logger) *LoveMessageHandler {
	return &LoveMessageHandler{
		messages: messages,
		users:    users,
		partners: partners,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

type createLoveMessageReq struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	Message    string `json:"message" validate:"required,notblank,max=1000"`
}

// List returns messages the caller sent or received, newest first.
func (h *LoveMessageHandler) List(c echo.Context) error {
	list, err := h.messages.ListForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, list)
}

// Create sends a message to the caller's active partner.
func (h *LoveMessageHandler) Create(c echo.Context) error {
	var req createLoveMessageReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	if _, err := h.users.GetByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Receiver not found")
		}
		return apperror.Internal(err)
	}
	if req.ReceiverID == uid {
		return apperror.BadRequest("Cannot send message to yourself", nil)
	}
	linked, err := h.partners.ActiveBetween(ctx, uid, req.ReceiverID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !linked {
		return apperror.Forbidden("Can only send love messages to partners")
	}

	m := model.LoveMessage{
		ID:         uuid.NewString(),
		SenderID:   uid,
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Timestamp:  h.now().UTC().Truncate(time.Second),
	}
	if err := h.messages.Create(ctx, m); err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("love message created",
		slog.String("sender_id", uid), slog.String("receiver_id", m.ReceiverID), slog.String("message_id", m.ID))

	n := service.NewNotification(m.ReceiverID, model.NotificationLoveMessage, "New love message", m.Message, h.now())
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Warn("love message notification failed", slog.String("message_id", m.ID), slog.Any("error", err))
	}
	return respondData(c, http.StatusCreated, m)
}
