package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
)

// ProfileStore reads and writes the caller's profile.
type ProfileStore interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	Upsert(ctx context.Context, p model.Profile) error
}

type ProfileHandler struct {
	profiles ProfileStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewProfileHandler(profiles ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger, now: time.Now}
}

// updateProfileReq accepts the birth date as birthDate or birth_date.
type updateProfileReq struct {
	Name         string  `json:"name" validate:"required,notblank,max=100"`
	BirthDate    string  `json:"birthDate" validate:"omitempty,date"`
	BirthDateAlt string  `json:"birth_date" validate:"omitempty,date"`
	PhotoURL     *string `json:"photoUrl" validate:"omitempty,url"`
}

func (r updateProfileReq) birthDate() string {
	if r.BirthDate != "" {
		return r.BirthDate
	}
	return r.BirthDateAlt
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	p, err := h.profiles.Get(c.Request().Context(), middleware.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Profile not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, p)
}

// Update creates or updates the caller's profile. A new birth date also
// recomputes the zodiac sign.
func (h *ProfileHandler) Update(c echo.Context) error {
	var req updateProfileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	var birth time.Time
	if s := req.birthDate(); s != "" {
		birth, _ = model.ParseDate(s)
	}

	p, err := h.profiles.Get(ctx, uid)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		p = model.NewProfile(uid, req.Name, birth)
		p.CreatedAt = h.now().UTC()
	case err != nil:
		return apperror.Internal(err)
	default:
		p.Name = req.Name
		if !birth.IsZero() {
			p.BirthDate = birth
			p.ZodiacSign = model.ZodiacFromDate(birth)
		}
	}
	if req.PhotoURL != nil {
		p.ProfilePhotoURL = req.PhotoURL
	}
	p.UpdatedAt = h.now().UTC()

	if err := h.profiles.Upsert(ctx, p); err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("profile updated", slog.String("user_id", uid))
	return respondData(c, http.StatusOK, p)
}
