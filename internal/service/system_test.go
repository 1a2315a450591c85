package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

type fakeStreams map[string]stream.Status

func (f fakeStreams) Status() map[string]stream.Status { return f }

type systemFixture struct {
	persons *MockPersonRepository
	events  *MockEventRepository
	engine  *MockIdentifier
	gallery *fakeGallery
	store   *memStore
	audit   *recordingAudit
	svc     *SystemService
}

func newSystemFixture(streams StreamStatusProvider) *systemFixture {
	f := &systemFixture{
		persons: new(MockPersonRepository),
		events:  new(MockEventRepository),
		engine:  new(MockIdentifier),
		gallery: &fakeGallery{persons: 3, rows: 7},
		store:   &memStore{stats: storage.Stats{TotalSizeMB: 1.5}, cleaned: 4},
		audit:   &recordingAudit{},
	}
	f.svc = NewSystemService(SystemDeps{
		Persons:     f.persons,
		Events:      f.events,
		Engine:      f.engine,
		Gallery:     f.gallery,
		Reloader:    NewGalleryReloader(f.gallery, f.persons, f.audit, discardLogger()),
		Snapshots:   f.store,
		Streams:     streams,
		Strategy:    "device",
		AuditLogger: f.audit,
	}, discardLogger())
	return f
}

func TestSystemService_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newSystemFixture(fakeStreams{"Entrada": {Name: "Entrada", Running: true}})
		f.persons.On("Count", mock.Anything).Return(10, 8, nil)

		h := f.svc.Health(context.Background())

		assert.Equal(t, "healthy", h.Status)
		assert.Equal(t, 10, h.TotalPersons)
		assert.Equal(t, 8, h.ActivePersons)
		assert.Equal(t, 7, h.GalleryRows)
		assert.True(t, h.WebcamActive)
		assert.Equal(t, APIVersion, h.APIVersion)
	})

	t.Run("database down", func(t *testing.T) {
		f := newSystemFixture(nil)
		f.persons.On("Count", mock.Anything).Return(0, 0, assert.AnError)

		h := f.svc.Health(context.Background())

		assert.Equal(t, "degraded", h.Status)
		assert.NotEmpty(t, h.Error)
		assert.False(t, h.WebcamActive)
	})
}

func TestSystemService_Status(t *testing.T) {
	streams := fakeStreams{"Entrada": {Name: "Entrada", CameraID: "cam1", State: stream.StateStreaming, Running: true}}
	f := newSystemFixture(streams)
	f.persons.On("Count", mock.Anything).Return(4, 3, nil)
	f.events.On("Count", mock.Anything).Return(int64(120), nil)
	f.engine.On("Threshold").Return(0.45)

	st, err := f.svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "running", st.Status)
	assert.Equal(t, DatabaseStatus{TotalPersons: 4, ActivePersons: 3, TotalDetectionEvents: 120}, st.Database)
	assert.Equal(t, 3, st.FaceRecognition.LoadedPersons)
	assert.Equal(t, 7, st.FaceRecognition.GalleryRows)
	assert.Equal(t, 0.45, st.FaceRecognition.RecognitionThreshold)
	assert.Equal(t, "device", st.FaceRecognition.AntiSpoofStrategy)
	require.NotNil(t, st.Storage)
	assert.Equal(t, 1.5, st.Storage.TotalSizeMB)
	assert.Equal(t, map[string]stream.Status(streams), st.Webcams)
}

func TestSystemService_Status_EventCountError(t *testing.T) {
	f := newSystemFixture(nil)
	f.persons.On("Count", mock.Anything).Return(4, 3, nil)
	f.events.On("Count", mock.Anything).Return(int64(0), assert.AnError)

	_, err := f.svc.Status(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSystemService_SetThreshold(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := newSystemFixture(nil)
		f.engine.On("Threshold").Return(0.4).Once()
		f.engine.On("SetThreshold", 0.55).Return(nil)

		require.NoError(t, f.svc.SetThreshold(context.Background(), 0.55))

		require.Len(t, f.audit.events, 1)
		e := f.audit.events[0]
		assert.Equal(t, audit.EventThresholdChanged, e.EventType)
		assert.Equal(t, "0.4", e.Metadata["old"])
		assert.Equal(t, "0.55", e.Metadata["new"])
	})

	t.Run("rejected", func(t *testing.T) {
		f := newSystemFixture(nil)
		f.engine.On("Threshold").Return(0.4)
		f.engine.On("SetThreshold", 1.5).Return(domain.ErrInvalidThreshold)

		err := f.svc.SetThreshold(context.Background(), 1.5)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
		assert.Empty(t, f.audit.events)
	})
}

func TestSystemService_ReloadGallery(t *testing.T) {
	f := newSystemFixture(nil)
	f.persons.On("ListActive", mock.Anything).Return([]domain.Person{
		{PersonID: "P001", Embeddings: domain.SingleEmbedding(domain.Embedding{1, 0})},
		{PersonID: "P002", Embeddings: domain.MultiEmbeddings([]domain.Embedding{{1, 0}, {0, 1}})},
	}, nil)

	n, err := f.svc.ReloadGallery(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, f.gallery.Size())
	assert.Equal(t, []audit.EventType{audit.EventGalleryReloaded}, f.audit.types())
}

func TestSystemService_ReloadGallery_KeepsCountOnError(t *testing.T) {
	f := newSystemFixture(nil)
	f.persons.On("ListActive", mock.Anything).Return(nil, assert.AnError)

	_, err := f.svc.ReloadGallery(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
	require.Len(t, f.audit.events, 1)
	assert.False(t, f.audit.events[0].Success)
}

func TestSystemService_CleanupSnapshots(t *testing.T) {
	f := newSystemFixture(nil)

	n, err := f.svc.CleanupSnapshots(30)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = f.svc.CleanupSnapshots(-1)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestSystemService_Events(t *testing.T) {
	f := newSystemFixture(nil)
	filter := domain.EventFilter{CameraID: "cam1", Limit: 10}
	want := []domain.DetectionEvent{{ID: 2, CameraID: "cam1"}, {ID: 1, CameraID: "cam1"}}
	f.events.On("List", mock.Anything, filter).Return(want, nil)

	got, err := f.svc.Events(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSystemService_LatestEvent(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newSystemFixture(nil)
		f.events.On("List", mock.Anything, domain.EventFilter{CameraID: "cam-1", Limit: 1}).
			Return([]domain.DetectionEvent{{ID: 9}}, nil)

		e, err := f.svc.LatestEvent(context.Background(), domain.EventFilter{CameraID: "cam-1", Offset: 40})
		require.NoError(t, err)
		assert.Equal(t, int64(9), e.ID)
	})

	t.Run("empty", func(t *testing.T) {
		f := newSystemFixture(nil)
		f.events.On("List", mock.Anything, domain.EventFilter{Limit: 1}).Return([]domain.DetectionEvent{}, nil)

		_, err := f.svc.LatestEvent(context.Background(), domain.EventFilter{})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSystemService_Streams_NoManager(t *testing.T) {
	f := newSystemFixture(nil)
	assert.Empty(t, f.svc.Streams())
	assert.NotNil(t, f.svc.Streams())
}
