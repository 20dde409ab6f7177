package handler

import (
	"context"
	"crypto/rand"
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

// PartnershipStore persists invites and links between partners.
type PartnershipStore interface {
	CreateInvite(ctx context.Context, p model.Partnership) error
	GetByCode(ctx context.Context, code string) (model.Partnership, error)
	ActiveBetween(ctx context.Context, a, b string) (bool, error)
	Activate(ctx context.Context, id, partnerID string) error
	GetByID(ctx context.Context, id string) (model.Partnership, error)
	ListForUser(ctx context.Context, userID string) ([]model.Partnership, error)
}

// Notifier delivers a notification to its user.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type PartnershipHandler struct {
	partnerships PartnershipStore
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
	newCode      func() (string, error)
}

func NewPartnershipHandler(partnerships PartnershipStore, notifier Notifier, logger *slog.Logger) *PartnershipHandler {
	return &PartnershipHandler{
		partnerships: partnerships,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		newCode:      connectionCode,
	}
}

type joinPartnershipReq struct {
	ConnectionCode string `json:"connectionCode" validate:"required,min=1,max=64"`
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// connectionCode returns an 8 character code without ambiguous characters.
func connectionCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// List returns partnerships the caller owns or joined, newest first.
func (h *PartnershipHandler) List(c echo.Context) error {
	list, err := h.partnerships.ListForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, list)
}

// CreateCode stores a pending invite with a fresh connection code that a
// partner redeems through Join.
func (h *PartnershipHandler) CreateCode(c echo.Context) error {
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	for attempt := 0; attempt < 3; attempt++ {
		code, err := h.newCode()
		if err != nil {
			return apperror.Internal(err)
		}
		p := model.Partnership{
			ID:             uuid.NewString(),
			UserID:         uid,
			ConnectionCode: code,
			Status:         model.PartnershipPending,
			CreatedAt:      h.now().UTC(),
		}
		err = h.partnerships.CreateInvite(ctx, p)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return apperror.Internal(err)
		}
		h.logger.Info("partnership invite created", slog.String("user_id", uid), slog.String("partnership_id", p.ID))
		return respondData(c, http.StatusCreated, p)
	}
	return apperror.Internal(errors.New("could not allocate a unique connection code"))
}

// Join redeems a connection code and links the caller with its owner.
func (h *PartnershipHandler) Join(c echo.Context) error {
	var req joinPartnershipReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	invite, err := h.partnerships.GetByCode(ctx, req.ConnectionCode)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Invalid connection code")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	if invite.UserID == uid {
		return apperror.BadRequest("Cannot connect with yourself", nil)
	}

	linked, err := h.partnerships.ActiveBetween(ctx, uid, invite.UserID)
	if err != nil {
		return apperror.Internal(err)
	}
	if linked {
		return apperror.Conflict("Partnership already exists", nil)
	}

	if err := h.partnerships.Activate(ctx, invite.ID, uid); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperror.Conflict("Partnership already exists", nil)
		}
		return apperror.Internal(err)
	}
	p, err := h.partnerships.GetByID(ctx, invite.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("partnership created",
		slog.String("user_id", uid), slog.String("partner_id", invite.UserID), slog.String("partnership_id", p.ID))

	n := service.NewNotification(invite.UserID, model.NotificationPartnership,
		"New partner", "Someone connected with you using your code", h.now())
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Warn("partnership notification failed", slog.String("partnership_id", p.ID), slog.Any("error", err))
	}
	return respondData(c, http.StatusOK, p)
}
