package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

const APIVersion = "1.0.0"

type HealthReport struct {
	Status        string `json:"status"`
	TotalPersons  int    `json:"total_persons"`
	ActivePersons int    `json:"active_persons"`
	GalleryRows   int    `json:"gallery_rows"`
	WebcamActive  bool   `json:"webcam_active"`
	APIVersion    string `json:"api_version"`
	Error         string `json:"error,omitempty"`
}

type SystemStatus struct {
	Status          string                   `json:"status"`
	APIVersion      string                   `json:"api_version"`
	Database        DatabaseStatus           `json:"database"`
	FaceRecognition RecognitionStatus        `json:"face_recognition"`
	Storage         *storage.Stats           `json:"storage,omitempty"`
	Webcams         map[string]stream.Status `json:"webcams"`
}

type DatabaseStatus struct {
	TotalPersons         int   `json:"total_persons"`
	ActivePersons        int   `json:"active_persons"`
	TotalDetectionEvents int64 `json:"total_detection_events"`
}

type RecognitionStatus struct {
	LoadedPersons        int     `json:"loaded_persons"`
	GalleryRows          int     `json:"gallery_rows"`
	RecognitionThreshold float64 `json:"recognition_threshold"`
	AntiSpoofStrategy    string  `json:"anti_spoof_strategy"`
}

type SystemService struct {
	persons     PersonRepositoryInterface
	events      EventRepositoryInterface
	engine      Identifier
	gallery     GalleryLoader
	reloader    *GalleryReloader
	snapshots   SnapshotStore
	streams     StreamStatusProvider
	strategy    string
	auditLogger audit.Logger
	logger      *slog.Logger
}

type SystemDeps struct {
	Persons     PersonRepositoryInterface
	Events      EventRepositoryInterface
	Engine      Identifier
	Gallery     GalleryLoader
	Reloader    *GalleryReloader
	Snapshots   SnapshotStore
	Streams     StreamStatusProvider
	Strategy    string
	AuditLogger audit.Logger
}

func NewSystemService(deps SystemDeps, logger *slog.Logger) *SystemService {
	if deps.AuditLogger == nil {
		deps.AuditLogger = &audit.NoOpLogger{}
	}
	return &SystemService{
		persons:     deps.Persons,
		events:      deps.Events,
		engine:      deps.Engine,
		gallery:     deps.Gallery,
		reloader:    deps.Reloader,
		snapshots:   deps.Snapshots,
		streams:     deps.Streams,
		strategy:    deps.Strategy,
		auditLogger: deps.AuditLogger,
		logger:      logger.With("component", "system"),
	}
}

// Health never fails; a database error is reported as degraded
func (s *SystemService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:       "healthy",
		GalleryRows:  s.gallery.Size(),
		WebcamActive: s.webcamActive(),
		APIVersion:   APIVersion,
	}

	total, active, err := s.persons.Count(ctx)
	if err != nil {
		report.Status = "degraded"
		report.Error = err.Error()
		return report
	}
	report.TotalPersons = total
	report.ActivePersons = active
	return report
}

func (s *SystemService) Status(ctx context.Context) (*SystemStatus, error) {
	total, active, err := s.persons.Count(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.events.Count(ctx)
	if err != nil {
		return nil, err
	}

	status := &SystemStatus{
		Status:     "running",
		APIVersion: APIVersion,
		Database: DatabaseStatus{
			TotalPersons:         total,
			ActivePersons:        active,
			TotalDetectionEvents: events,
		},
		FaceRecognition: RecognitionStatus{
			LoadedPersons:        s.gallery.PersonCount(),
			GalleryRows:          s.gallery.Size(),
			RecognitionThreshold: s.engine.Threshold(),
			AntiSpoofStrategy:    s.strategy,
		},
		Webcams: s.Streams(),
	}

	if s.snapshots != nil {
		stats, err := s.snapshots.Stats()
		if err != nil {
			s.logger.Warn("failed to read storage stats", slog.String("error", err.Error()))
		} else {
			status.Storage = &stats
		}
	}

	return status, nil
}

func (s *SystemService) Threshold() float64 {
	return s.engine.Threshold()
}

// SetThreshold applies to every processor on its next frame
func (s *SystemService) SetThreshold(ctx context.Context, v float64) error {
	old := s.engine.Threshold()
	if err := s.engine.SetThreshold(v); err != nil {
		return err
	}

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType: audit.EventThresholdChanged,
		Success:   true,
		Metadata: map[string]string{
			"old": strconv.FormatFloat(old, 'f', -1, 64),
			"new": strconv.FormatFloat(v, 'f', -1, 64),
		},
	})
	return nil
}

func (s *SystemService) ReloadGallery(ctx context.Context) (int, error) {
	return s.reloader.Reload(ctx)
}

func (s *SystemService) CleanupSnapshots(maxAgeDays int) (int, error) {
	if maxAgeDays < 0 {
		return 0, domain.ErrValidationFailed.WithDetails(map[string]any{"max_age_days": "must be >= 0"})
	}
	if s.snapshots == nil {
		return 0, nil
	}
	return s.snapshots.Cleanup(maxAgeDays)
}

func (s *SystemService) Events(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error) {
	return s.events.List(ctx, filter)
}

// LatestEvent returns the newest event matching filter, ErrNotFound when none does
func (s *SystemService) LatestEvent(ctx context.Context, filter domain.EventFilter) (*domain.DetectionEvent, error) {
	filter.Limit = 1
	filter.Offset = 0

	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound.WithDetails(map[string]any{"resource": "detection_event"})
	}
	return &events[0], nil
}

func (s *SystemService) Streams() map[string]stream.Status {
	if s.streams == nil {
		return map[string]stream.Status{}
	}
	return s.streams.Status()
}

func (s *SystemService) webcamActive() bool {
	for _, st := range s.Streams() {
		if st.Running {
			return true
		}
	}
	return false
}
