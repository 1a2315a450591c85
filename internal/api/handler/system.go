package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

const (
	defaultEventHours = 24
	maxEventHours     = 720
	defaultPageSize   = 50
	maxPageSize       = 500
)

type SystemService interface {
	Health(ctx context.Context) service.HealthReport
	Status(ctx context.Context) (*service.SystemStatus, error)
	Threshold() float64
	SetThreshold(ctx context.Context, v float64) error
	ReloadGallery(ctx context.Context) (int, error)
	CleanupSnapshots(maxAgeDays int) (int, error)
	Events(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error)
	LatestEvent(ctx context.Context, filter domain.EventFilter) (*domain.DetectionEvent, error)
	Streams() map[string]stream.Status
}

type SystemHandler struct {
	service           SystemService
	defaultMaxAgeDays int
	now               func() time.Time
	logger            *slog.Logger
}

// NewSystemHandler uses defaultMaxAgeDays when cleanup is called without max_age_days
func NewSystemHandler(service SystemService, defaultMaxAgeDays int, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		service:           service,
		defaultMaxAgeDays: defaultMaxAgeDays,
		now:               time.Now,
		logger:            logger,
	}
}

// Health GET /api/v1/health
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	report := h.service.Health(c.Context())

	status := fiber.StatusOK
	if report.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}

// Status GET /api/v1/status
func (h *SystemHandler) Status(c *fiber.Ctx) error {
	status, err := h.service.Status(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// Threshold GET /api/v1/threshold
func (h *SystemHandler) Threshold(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "success",
		"threshold": h.service.Threshold(),
	})
}

// SetThreshold POST /api/v1/threshold?threshold=0.5
func (h *SystemHandler) SetThreshold(c *fiber.Ctx) error {
	raw := c.Query("threshold")
	if raw == "" {
		raw = c.FormValue("threshold")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return domain.ErrInvalidThreshold.WithError(err)
	}

	old := h.service.Threshold()
	if err := h.service.SetThreshold(c.Context(), v); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":        "success",
		"old_threshold": old,
		"new_threshold": v,
	})
}

// Cleanup POST /api/v1/cleanup_snapshots?max_age_days=7
func (h *SystemHandler) Cleanup(c *fiber.Ctx) error {
	days := c.QueryInt("max_age_days", h.defaultMaxAgeDays)

	removed, err := h.service.CleanupSnapshots(days)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":        "success",
		"files_removed": removed,
		"max_age_days":  days,
	})
}

// Reload POST /api/v1/reload_persons
func (h *SystemHandler) Reload(c *fiber.Ctx) error {
	n, err := h.service.ReloadGallery(c.Context())
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(fiber.Map{
		"status":       "success",
		"total_loaded": n,
	})
}

// Events GET /api/v1/detection_events
func (h *SystemHandler) Events(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", defaultEventHours)
	if hours < 1 || hours > maxEventHours {
		return domain.ErrValidationFailed.WithDetails(map[string]any{
			"field": "hours",
			"min":   1,
			"max":   maxEventHours,
		})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		return domain.ErrValidationFailed.WithDetails(map[string]any{
			"field": "page_size",
			"min":   1,
			"max":   maxPageSize,
		})
	}

	filter := domain.EventFilter{
		PersonID:     c.Query("person_id"),
		CameraID:     c.Query("camera_id"),
		Location:     c.Query("location"),
		Since:        h.now().Add(-time.Duration(hours) * time.Hour),
		KnownOnly:    !c.QueryBool("include_unknown", false),
		SpoofingOnly: c.QueryBool("spoofing_only", false),
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	}
	if filter.SpoofingOnly {
		// spoofing rows never carry a person
		filter.KnownOnly = false
	}

	events, err := h.service.Events(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":    "success",
		"page":      page,
		"page_size": pageSize,
		"count":     len(events),
		"events":    events,
	})
}

// LatestEvent GET /api/v1/detection_events/latest
func (h *SystemHandler) LatestEvent(c *fiber.Ctx) error {
	event, err := h.service.LatestEvent(c.Context(), domain.EventFilter{
		PersonID: c.Query("person_id"),
		CameraID: c.Query("camera_id"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"event":  event,
	})
}

// Streams GET /api/v1/streams
func (h *SystemHandler) Streams(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"streams": h.service.Streams(),
	})
}

// Stream GET /api/v1/streams/:name
func (h *SystemHandler) Stream(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	if name == "" {
		return domain.ErrValidationFailed.WithError(errors.New("stream name is required"))
	}

	st, ok := h.service.Streams()[name]
	if !ok {
		return domain.ErrStreamNotFound.WithDetails(map[string]any{"name": name})
	}
	return c.JSON(st)
}
