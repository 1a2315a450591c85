package service

import (
	"context"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

type PersonService struct {
	persons     PersonRepositoryInterface
	reloader    *GalleryReloader
	auditLogger audit.Logger
	logger      *slog.Logger
}

func NewPersonService(persons PersonRepositoryInterface, reloader *GalleryReloader, auditLogger audit.Logger, logger *slog.Logger) *PersonService {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &PersonService{
		persons:     persons,
		reloader:    reloader,
		auditLogger: auditLogger,
		logger:      logger.With("component", "persons"),
	}
}

func (s *PersonService) Get(ctx context.Context, personID string) (*domain.Person, error) {
	return s.persons.GetByPersonID(ctx, personID)
}

func (s *PersonService) List(ctx context.Context, activeOnly bool) ([]domain.Person, error) {
	persons, err := s.persons.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if persons == nil {
		persons = []domain.Person{}
	}
	return persons, nil
}

// Deactivate soft-deletes the person and drops it from the gallery
func (s *PersonService) Deactivate(ctx context.Context, personID string) error {
	if err := s.persons.Deactivate(ctx, personID); err != nil {
		return err
	}

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType: audit.EventPersonDeactivated,
		PersonID:  personID,
		Success:   true,
	})

	if _, err := s.reloader.Reload(ctx); err != nil {
		s.logger.Error("gallery reload after deactivation failed", slog.String("error", err.Error()))
	}

	s.logger.Info("person deactivated", slog.String("person_id", personID))
	return nil
}
