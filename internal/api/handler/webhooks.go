package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/webhook"
)

type WebhookService interface {
	List(ctx context.Context) ([]*webhook.Webhook, error)
	Create(ctx context.Context, w *webhook.Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type WebhooksHandler struct {
	service WebhookService
	logger  *slog.Logger
}

func NewWebhooksHandler(service WebhookService, logger *slog.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		service: service,
		logger:  logger,
	}
}

type CreateWebhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

// List GET /api/v1/webhooks
func (h *WebhooksHandler) List(c *fiber.Ctx) error {
	webhooks, err := h.service.List(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"webhooks": webhooks,
	})
}

// Create POST /api/v1/webhooks; the secret is only returned here
func (h *WebhooksHandler) Create(c *fiber.Ctx) error {
	var req CreateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	w := &webhook.Webhook{
		Name:    req.Name,
		URL:     req.URL,
		Events:  req.Events,
		Enabled: req.Enabled == nil || *req.Enabled,
	}

	if err := h.service.Create(c.Context(), w); err != nil {
		return err
	}

	h.logger.Info("webhook created",
		"webhook_id", w.ID,
		"name", w.Name,
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"webhook": w,
		"secret":  w.Secret,
	})
}

// Delete DELETE /api/v1/webhooks/:id
func (h *WebhooksHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithDetails(map[string]any{"reason": "invalid webhook id"})
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return err
	}

	h.logger.Info("webhook deleted", "webhook_id", id)

	return c.SendStatus(fiber.StatusNoContent)
}
