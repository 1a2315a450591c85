package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
)

type EnrollService interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*service.EnrollResponse, error)
	EnrollFromURLs(ctx context.Context, req service.EnrollURLRequest) (*service.EnrollResponse, error)
}

type EnrollHandler struct {
	service EnrollService
	logger  *slog.Logger
}

func NewEnrollHandler(service EnrollService, logger *slog.Logger) *EnrollHandler {
	return &EnrollHandler{
		service: service,
		logger:  logger,
	}
}

// Enroll POST /api/v1/enroll_person (multipart)
func (h *EnrollHandler) Enroll(c *fiber.Ctx) error {
	images, skipped, err := readImages(c)
	if err != nil {
		return fmt.Errorf("enroll person: %w", err)
	}

	if len(images) == 0 {
		return domain.ErrInvalidImage.WithDetails(map[string]any{"images_skipped": skipped})
	}

	resp, err := h.service.Enroll(c.Context(), service.EnrollRequest{
		PersonID:   strings.TrimSpace(c.FormValue("person_id")),
		Name:       strings.TrimSpace(c.FormValue("name")),
		Department: strings.TrimSpace(c.FormValue("department")),
		ExtraInfo:  parseMetadata(c.FormValue("metadata")),
		Images:     images,
	})
	if err != nil {
		return err
	}
	resp.ImagesSkipped += skipped

	h.logger.Info("person enrolled",
		"person_id", resp.PersonID,
		"embeddings", resp.EmbeddingsCreated,
		"skipped", resp.ImagesSkipped,
	)

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// EnrollURLs POST /api/v1/enroll_urls (JSON)
func (h *EnrollHandler) EnrollURLs(c *fiber.Ctx) error {
	var req service.EnrollURLRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if len(req.ImageURLs) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("image_urls is required"))
	}

	resp, err := h.service.EnrollFromURLs(c.Context(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// parseMetadata keeps non-JSON input under "raw"
func parseMetadata(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{"raw": s}
	}
	return m
}
