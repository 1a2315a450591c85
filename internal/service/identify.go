package service

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
)

const (
	DefaultCameraID = "api"

	snapshotPrefixAPI     = "api"
	snapshotPrefixUnknown = "unknown"
	snapshotPrefixSpoofed = "api_spoofed"
)

type IdentifyRequest struct {
	Image    image.Image
	CameraID string
	Location string
	ClientIP string
	// BaseURL is used to build snapshot_url; empty leaves it out
	BaseURL string
}

type IdentifyResponse struct {
	Status           string                 `json:"status"`
	Timestamp        time.Time              `json:"timestamp"`
	CameraID         string                 `json:"camera_id"`
	Identified       bool                   `json:"identified"`
	Result           *domain.Identification `json:"result"`
	Liveness         *domain.LivenessResult `json:"liveness,omitempty"`
	SnapshotURL      string                 `json:"snapshot_url,omitempty"`
	EventID          int64                  `json:"event_id,omitempty"`
	ProcessingTimeMs float64                `json:"processing_time_ms"`
}

type IdentifyService struct {
	engine    Identifier
	events    *EventBus
	snapshots SnapshotStore
	now       func() time.Time
	logger    *slog.Logger
}

func NewIdentifyService(engine Identifier, events *EventBus, snapshots SnapshotStore, logger *slog.Logger) *IdentifyService {
	return &IdentifyService{
		engine:    engine,
		events:    events,
		snapshots: snapshots,
		now:       time.Now,
		logger:    logger.With("component", "identify"),
	}
}

// Identify matches the first face of the image. An unknown face is a normal
// result; a failed liveness check is stored as a spoofing event and returned
// as ErrSpoofingDetected.
func (s *IdentifyService) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error) {
	start := s.now()

	if req.Image == nil || req.Image.Bounds().Empty() {
		return nil, domain.ErrInvalidImage
	}
	cameraID := req.CameraID
	if cameraID == "" {
		cameraID = DefaultCameraID
	}

	out, err := s.engine.Identify(ctx, req.Image, true)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", cameraID, err)
	}

	if out.Spoofed() {
		return nil, s.rejectSpoof(ctx, req, cameraID, out.Liveness)
	}

	id := out.Identification
	event := &domain.DetectionEvent{
		CameraID:      cameraID,
		Location:      req.Location,
		IsUnknown:     !id.Known(),
		Timestamp:     s.now().UTC(),
		ClientIP:      req.ClientIP,
		RequestSource: domain.RequestSourceAPI,
	}

	if id.Known() {
		personID := id.PersonID
		distance := id.EmbeddingDistance
		event.PersonID = &personID
		event.PersonName = id.Name
		event.Confidence = id.Similarity
		event.EmbeddingDistance = &distance
		event.BoundingBox = id.Box
		event.SnapshotPath = s.snapshot(req.Image, snapshotPrefixAPI, personID, cameraID)
	} else {
		event.SnapshotPath = s.snapshot(req.Image, snapshotPrefixUnknown, "", cameraID)
	}

	if out.Liveness != nil {
		score := out.Liveness.Confidence
		event.LivenessScore = &score
	}

	// o resultado já foi decidido; falha ao gravar o evento só é logada
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("failed to store detection event", slog.String("error", err.Error()))
	}

	resp := &IdentifyResponse{
		Status:           "ok",
		Timestamp:        event.Timestamp,
		CameraID:         cameraID,
		Identified:       id.Known(),
		Liveness:         out.Liveness,
		EventID:          event.ID,
		ProcessingTimeMs: float64(s.now().Sub(start).Microseconds()) / 1000,
	}
	if id.Known() {
		resp.Result = id
	}
	if req.BaseURL != "" {
		resp.SnapshotURL = storage.URL(req.BaseURL, event.SnapshotPath)
	}

	label := "Unknown"
	if id.Known() {
		label = id.Name
	}
	s.logger.Info("identification completed",
		slog.String("camera_id", cameraID),
		slog.String("result", label),
		slog.Float64("processing_time_ms", resp.ProcessingTimeMs),
	)

	return resp, nil
}

func (s *IdentifyService) rejectSpoof(ctx context.Context, req IdentifyRequest, cameraID string, lr *domain.LivenessResult) error {
	score := lr.Confidence
	event := &domain.DetectionEvent{
		CameraID:         cameraID,
		Location:         req.Location,
		IsUnknown:        true,
		Timestamp:        s.now().UTC(),
		ClientIP:         req.ClientIP,
		RequestSource:    domain.RequestSourceAPI,
		SpoofingDetected: true,
		SpoofingReason:   "Liveness check failed",
		SpoofingType:     domain.SpoofTypePrintOrScreen,
		LivenessScore:    &score,
		SnapshotPath:     s.spoofSnapshot(req.Image, cameraID),
	}

	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("failed to store spoofing event", slog.String("error", err.Error()))
	}

	s.logger.Warn("spoofing detected on request",
		slog.String("camera_id", cameraID),
		slog.Float64("liveness_confidence", lr.Confidence),
		slog.Float64("threshold", lr.Threshold),
	)

	return domain.ErrSpoofingDetected.WithDetails(map[string]any{
		"liveness": lr,
		"message":  fmt.Sprintf("Liveness confidence %.3f is below threshold %.2f", lr.Confidence, lr.Threshold),
	})
}

func (s *IdentifyService) snapshot(img image.Image, prefix, personID, cameraID string) string {
	return saveSnapshot(s.snapshots, s.logger, img, domain.SnapshotEvents, prefix, personID, cameraID)
}

func (s *IdentifyService) spoofSnapshot(img image.Image, cameraID string) string {
	return saveSnapshot(s.snapshots, s.logger, img, domain.SnapshotSpoofing, snapshotPrefixSpoofed, "", cameraID)
}

// saveSnapshot logs and swallows storage errors; a missing snapshot never fails a request
func saveSnapshot(store SnapshotStore, logger *slog.Logger, img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) string {
	if store == nil {
		return ""
	}
	ref, err := store.Save(img, category, prefix, personID, cameraID)
	if err != nil {
		logger.Error("failed to save snapshot",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return ref
}
