package service

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
)

type MockPersonRepository struct {
	mock.Mock
}

func (m *MockPersonRepository) Create(ctx context.Context, person *domain.Person) error {
	args := m.Called(ctx, person)
	return args.Error(0)
}

func (m *MockPersonRepository) GetByPersonID(ctx context.Context, personID string) (*domain.Person, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *MockPersonRepository) List(ctx context.Context, activeOnly bool) ([]domain.Person, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Person), args.Error(1)
}

func (m *MockPersonRepository) ListActive(ctx context.Context) ([]domain.Person, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Person), args.Error(1)
}

func (m *MockPersonRepository) Exists(ctx context.Context, personID string) (bool, error) {
	args := m.Called(ctx, personID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPersonRepository) Count(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockPersonRepository) Deactivate(ctx context.Context, personID string) error {
	args := m.Called(ctx, personID)
	return args.Error(0)
}

func (m *MockPersonRepository) NextPersonID(ctx context.Context, prefix string, reuse bool) (string, error) {
	args := m.Called(ctx, prefix, reuse)
	return args.String(0), args.Error(1)
}

func (m *MockPersonRepository) FindSimilar(ctx context.Context, embedding domain.Embedding, limit int) ([]domain.PersonMatch, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PersonMatch), args.Error(1)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Append(ctx context.Context, event *domain.DetectionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) List(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DetectionEvent), args.Error(1)
}

func (m *MockEventRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockIdentifier struct {
	mock.Mock
}

func (m *MockIdentifier) Identify(ctx context.Context, img image.Image, wantBox bool) (recognition.Outcome, error) {
	args := m.Called(ctx, img, wantBox)
	return args.Get(0).(recognition.Outcome), args.Error(1)
}

func (m *MockIdentifier) EmbedFirstFace(ctx context.Context, img image.Image) (domain.Embedding, *domain.DetectedFace, bool, error) {
	args := m.Called(ctx, img)
	var emb domain.Embedding
	if v := args.Get(0); v != nil {
		emb = v.(domain.Embedding)
	}
	return emb, nil, args.Bool(1), args.Error(2)
}

func (m *MockIdentifier) Threshold() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

func (m *MockIdentifier) SetThreshold(v float64) error {
	args := m.Called(v)
	return args.Error(0)
}

// fakeGallery records loads instead of building a real gallery
type fakeGallery struct {
	mu      sync.Mutex
	loads   int
	persons int
	rows    int
	err     error
}

func (g *fakeGallery) Load(ctx context.Context, src recognition.PersonSource) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	if g.err != nil {
		return g.err
	}
	persons, err := src.ListActive(ctx)
	if err != nil {
		return err
	}
	g.persons = len(persons)
	g.rows = 0
	for _, p := range persons {
		g.rows += p.Embeddings.Len()
	}
	return nil
}

func (g *fakeGallery) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rows
}

func (g *fakeGallery) PersonCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.persons
}

type savedSnapshot struct {
	category domain.SnapshotCategory
	prefix   string
	personID string
	cameraID string
}

// memStore keeps snapshot calls in memory
type memStore struct {
	mu      sync.Mutex
	saved   []savedSnapshot
	saveErr error
	cleaned int
	stats   storage.Stats
}

func (s *memStore) Save(img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved = append(s.saved, savedSnapshot{category: category, prefix: prefix, personID: personID, cameraID: cameraID})
	return string(category) + "/2026-01-02/" + prefix + ".jpg", nil
}

func (s *memStore) Cleanup(maxAgeDays int) (int, error) {
	return s.cleaned, nil
}

func (s *memStore) Stats() (storage.Stats, error) {
	return s.stats, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.DetectionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *domain.DetectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	return img
}
