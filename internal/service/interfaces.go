package service

import (
	"context"
	"image"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

type PersonRepositoryInterface interface {
	Create(ctx context.Context, person *domain.Person) error
	GetByPersonID(ctx context.Context, personID string) (*domain.Person, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Person, error)
	ListActive(ctx context.Context) ([]domain.Person, error)
	Exists(ctx context.Context, personID string) (bool, error)
	Count(ctx context.Context) (total, active int, err error)
	Deactivate(ctx context.Context, personID string) error
	NextPersonID(ctx context.Context, prefix string, reuse bool) (string, error)
	FindSimilar(ctx context.Context, embedding domain.Embedding, limit int) ([]domain.PersonMatch, error)
}

type EventRepositoryInterface interface {
	Append(ctx context.Context, event *domain.DetectionEvent) error
	List(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error)
	Count(ctx context.Context) (int64, error)
}

type SnapshotStore interface {
	Save(img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) (string, error)
	Cleanup(maxAgeDays int) (int, error)
	Stats() (storage.Stats, error)
}

// Identifier is the part of the recognition engine the request path needs
type Identifier interface {
	Identify(ctx context.Context, img image.Image, wantBox bool) (recognition.Outcome, error)
	EmbedFirstFace(ctx context.Context, img image.Image) (domain.Embedding, *domain.DetectedFace, bool, error)
	Threshold() float64
	SetThreshold(v float64) error
}

type GalleryLoader interface {
	Load(ctx context.Context, src recognition.PersonSource) error
	Size() int
	PersonCount() int
}

type StreamStatusProvider interface {
	Status() map[string]stream.Status
}

var (
	_ Identifier           = (*recognition.Engine)(nil)
	_ GalleryLoader        = (*recognition.Gallery)(nil)
	_ SnapshotStore        = (*storage.Store)(nil)
	_ StreamStatusProvider = (*stream.Manager)(nil)
	_ stream.EventSink     = (*EventBus)(nil)
)
