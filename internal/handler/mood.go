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
)

const msgMoodExists = "Mood entry already exists for this date. Use PUT /mood-entries/:id to update."

// MoodStore persists daily mood entries.
type MoodStore interface {
	Create(ctx context.Context, e model.MoodEntry) error
	GetByDate(ctx context.Context, userID string, day time.Time) (model.MoodEntry, error)
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.MoodEntry, error)
	Update(ctx context.Context, id, userID string, upd model.MoodUpdate) (model.MoodEntry, error)
}

type MoodHandler struct {
	moods  MoodStore
	logger *slog.Logger
	now    func() time.Time
}

func NewMoodHandler(moods MoodStore, logger *slog.Logger) *MoodHandler {
	return &MoodHandler{moods: moods, logger: logger, now: time.Now}
}

type createMoodReq struct {
	MoodLevel  *int    `json:"moodLevel" validate:"required,min=0,max=5"`
	EventLabel *string `json:"eventLabel" validate:"omitempty,max=200"`
	Date       string  `json:"date" validate:"omitempty,date"`
	PhotoURL   *string `json:"photoUrl" validate:"omitempty,url"`
}

type updateMoodReq struct {
	MoodLevel  *int    `json:"moodLevel" validate:"omitempty,min=0,max=5"`
	EventLabel *string `json:"eventLabel" validate:"omitempty,max=200"`
}

type moodRangeQuery struct {
	From string `query:"from" json:"from" validate:"required,date"`
	To   string `query:"to" json:"to" validate:"required,date"`
}

// List returns the caller's entries between from and to (inclusive), newest first.
func (h *MoodHandler) List(c echo.Context) error {
	q := moodRangeQuery{From: c.QueryParam("from"), To: c.QueryParam("to")}
	if err := c.Validate(&q); err != nil {
		return err
	}
	from, _ := model.ParseDate(q.From)
	to, _ := model.ParseDate(q.To)
	if from.After(to) {
		return apperror.BadRequest("From date must be before or equal to to date", nil)
	}

	entries, err := h.moods.ListRange(c.Request().Context(), middleware.UserID(c), from, to)
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, entries)
}

// Today returns the caller's entry for the current UTC day.
func (h *MoodHandler) Today(c echo.Context) error {
	e, err := h.moods.GetByDate(c.Request().Context(), middleware.UserID(c), model.StartOfDayUTC(h.now()))
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("No mood entry found for today")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, e)
}

// Create records the caller's mood for a day (today by default). A second
// entry for the same day is a CONFLICT carrying the existing entry id.
func (h *MoodHandler) Create(c echo.Context) error {
	var req createMoodReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	now := h.now().UTC()
	day := model.StartOfDayUTC(now)
	if req.Date != "" {
		day, _ = model.ParseDate(req.Date)
	}

	existing, err := h.moods.GetByDate(ctx, uid, day)
	switch {
	case err == nil:
		return moodConflict(existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return apperror.Internal(err)
	}

	e := model.MoodEntry{
		ID:         uuid.NewString(),
		UserID:     uid,
		Date:       day,
		MoodLevel:  *req.MoodLevel,
		EventLabel: req.EventLabel,
		PhotoData:  req.PhotoURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.moods.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Concurrent create for the same day won.
			if winner, getErr := h.moods.GetByDate(ctx, uid, day); getErr == nil {
				return moodConflict(winner.ID)
			}
			return apperror.Conflict(msgMoodExists, nil)
		}
		return apperror.Internal(err)
	}
	h.logger.Info("mood entry created", slog.String("user_id", uid), slog.String("mood_id", e.ID))
	return respondData(c, http.StatusCreated, e)
}

// Update changes mood level and/or label of one of the caller's entries.
func (h *MoodHandler) Update(c echo.Context) error {
	var req updateMoodReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)

	e, err := h.moods.Update(c.Request().Context(), c.Param("id"), uid, model.MoodUpdate{
		MoodLevel:  req.MoodLevel,
		EventLabel: req.EventLabel,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Mood entry not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("mood entry updated", slog.String("user_id", uid), slog.String("mood_id", e.ID))
	return respondData(c, http.StatusOK, e)
}

func moodConflict(existingID string) error {
	return apperror.Conflict(msgMoodExists, map[string]string{"existingEntryId": existingID})
}
