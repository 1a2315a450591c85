package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

type PersonService interface {
	Get(ctx context.Context, personID string) (*domain.Person, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Person, error)
	Deactivate(ctx context.Context, personID string) error
}

type PersonHandler struct {
	service PersonService
	logger  *slog.Logger
}

func NewPersonHandler(service PersonService, logger *slog.Logger) *PersonHandler {
	return &PersonHandler{
		service: service,
		logger:  logger,
	}
}

// PersonResponse hides the vectors and reports how many are stored
type PersonResponse struct {
	domain.Person
	EmbeddingCount int `json:"embedding_count"`
}

func toPersonResponse(p *domain.Person) PersonResponse {
	return PersonResponse{Person: *p, EmbeddingCount: p.EmbeddingCount()}
}

// Get GET /api/v1/person/:id
func (h *PersonHandler) Get(c *fiber.Ctx) error {
	id, err := personIDParam(c)
	if err != nil {
		return err
	}

	person, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"person": toPersonResponse(person),
	})
}

// List GET /api/v1/persons?active_only=true
func (h *PersonHandler) List(c *fiber.Ctx) error {
	persons, err := h.service.List(c.Context(), c.QueryBool("active_only", true))
	if err != nil {
		return err
	}

	out := make([]PersonResponse, 0, len(persons))
	for i := range persons {
		out = append(out, toPersonResponse(&persons[i]))
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"total":   len(out),
		"persons": out,
	})
}

// Delete DELETE /api/v1/person/:id; the row stays, only is_active flips
func (h *PersonHandler) Delete(c *fiber.Ctx) error {
	id, err := personIDParam(c)
	if err != nil {
		return err
	}

	if err := h.service.Deactivate(c.Context(), id); err != nil {
		return err
	}

	h.logger.Info("person deactivated", "person_id", id)

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "person " + id + " deactivated",
	})
}

func personIDParam(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return "", domain.ErrValidationFailed.WithError(errors.New("person id is required"))
	}
	return id, nil
}
