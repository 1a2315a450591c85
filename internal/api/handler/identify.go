package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
)

type IdentifyService interface {
	Identify(ctx context.Context, req service.IdentifyRequest) (*service.IdentifyResponse, error)
}

type IdentifyHandler struct {
	service IdentifyService
	baseURL string
	logger  *slog.Logger
}

// NewIdentifyHandler builds snapshot URLs under baseURL
func NewIdentifyHandler(service IdentifyService, baseURL string, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Identify POST /api/v1/identify_image
func (h *IdentifyHandler) Identify(c *fiber.Ctx) error {
	img, err := readImage(c)
	if err != nil {
		return fmt.Errorf("identify image: %w", err)
	}

	resp, err := h.service.Identify(c.Context(), service.IdentifyRequest{
		Image:    img,
		CameraID: strings.TrimSpace(c.FormValue("camera_id")),
		Location: strings.TrimSpace(c.FormValue("location")),
		ClientIP: c.IP(),
		BaseURL:  h.baseURL,
	})
	if err != nil {
		return err
	}

	return c.JSON(resp)
}
