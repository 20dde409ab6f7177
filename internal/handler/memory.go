package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
)

// MemoryStore persists the caller's memories.
type MemoryStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Memory, error)
	Create(ctx context.Context, m model.Memory) error
	GetOwned(ctx context.Context, id, userID string) (model.Memory, error)
	Save(ctx context.Context, m model.Memory) error
	Delete(ctx context.Context, id, userID string) error
}

type MemoryHandler struct {
	memories MemoryStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewMemoryHandler(memories MemoryStore, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memories: memories, logger: logger, now: time.Now}
}

// flexBool accepts a JSON boolean or its string form ("true"/"false").
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("isShared: %w", err)
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("isShared: %w", err)
	}
	*b = flexBool(v)
	return nil
}

type createMemoryReq struct {
	Date        string    `json:"date" validate:"required,date"`
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description *string   `json:"description"`
	PhotoData   *string   `json:"photoData"`
	Location    *string   `json:"location" validate:"omitempty,max=255"`
	MoodLevel   string    `json:"moodLevel" validate:"required,max=32"`
	Tags        *string   `json:"tags" validate:"omitempty,max=500"`
	IsShared    *flexBool `json:"isShared"`
}

type updateMemoryReq struct {
	Date        *string   `json:"date" validate:"omitempty,date"`
	Title       *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description"`
	PhotoData   *string   `json:"photoData"`
	Location    *string   `json:"location" validate:"omitempty,max=255"`
	MoodLevel   *string   `json:"moodLevel" validate:"omitempty,min=1,max=32"`
	Tags        *string   `json:"tags" validate:"omitempty,max=500"`
	IsShared    *flexBool `json:"isShared"`
}

// emptyToNil clears optional text fields sent as "".
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// List returns the caller's memories, newest first. Ownership of the
// user_id query parameter is enforced by the router.
func (h *MemoryHandler) List(c echo.Context) error {
	memories, err := h.memories.ListByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperror.Internal(err)
	}
	return respondData(c, http.StatusOK, memories)
}

func (h *MemoryHandler) Create(c echo.Context) error {
	var req createMemoryReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	date, _ := model.ParseDate(req.Date)
	now := h.now().UTC()

	m := model.Memory{
		ID:          uuid.NewString(),
		UserID:      uid,
		Date:        date,
		Title:       req.Title,
		Description: emptyToNil(req.Description),
		PhotoData:   emptyToNil(req.PhotoData),
		Location:    emptyToNil(req.Location),
		MoodLevel:   req.MoodLevel,
		Tags:        emptyToNil(req.Tags),
		IsShared:    req.IsShared != nil && bool(*req.IsShared),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.memories.Create(c.Request().Context(), m); err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("memory created", slog.String("user_id", uid), slog.String("memory_id", m.ID))
	return respondData(c, http.StatusCreated, m)
}

// Update applies the fields present in the body to one of the caller's memories.
func (h *MemoryHandler) Update(c echo.Context) error {
	var req updateMemoryReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	ctx := c.Request().Context()

	m, err := h.memories.GetOwned(ctx, c.Param("id"), uid)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Memory not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}

	if req.Date != nil {
		m.Date, _ = model.ParseDate(*req.Date)
	}
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Description != nil {
		m.Description = emptyToNil(req.Description)
	}
	if req.PhotoData != nil {
		m.PhotoData = emptyToNil(req.PhotoData)
	}
	if req.Location != nil {
		m.Location = emptyToNil(req.Location)
	}
	if req.MoodLevel != nil {
		m.MoodLevel = *req.MoodLevel
	}
	if req.Tags != nil {
		m.Tags = emptyToNil(req.Tags)
	}
	if req.IsShared != nil {
		m.IsShared = bool(*req.IsShared)
	}
	m.UpdatedAt = h.now().UTC()

	if err := h.memories.Save(ctx, m); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Memory not found")
		}
		return apperror.Internal(err)
	}
	h.logger.Info("memory updated", slog.String("user_id", uid), slog.String("memory_id", m.ID))
	return respondData(c, http.StatusOK, m)
}

func (h *MemoryHandler) Delete(c echo.Context) error {
	uid := middleware.UserID(c)
	id := c.Param("id")
	err := h.memories.Delete(c.Request().Context(), id, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Memory not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	h.logger.Info("memory deleted", slog.String("user_id", uid), slog.String("memory_id", id))
	return respondData(c, http.StatusOK, messageBody{Message: "Memory deleted successfully"})
}
