package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// LivenessChecker is the passive liveness gate consulted before matching
type LivenessChecker interface {
	Check(ctx context.Context, frame image.Image) domain.LivenessResult
	Status() provider.Status
}

// LivenessAvailable is false once the checker's model failed to load. An
// unavailable checker is treated as an absent signal, not as a spoof.
func LivenessAvailable(c LivenessChecker) bool {
	return c != nil && c.Status().State != provider.StateUnavailable
}

// EngineConfig holds the identification and distance constants
type EngineConfig struct {
	Threshold       float64
	LivenessEnabled bool

	DistanceGating bool
	RealFaceWidthM float64
	FocalLengthPx  float64
	DistanceMinM   float64
	DistanceMaxM   float64
	DistanceAlertM float64
}

// DefaultEngineConfig returns production defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Threshold:      0.6,
		RealFaceWidthM: 0.16,
		FocalLengthPx:  600,
		DistanceMinM:   0.3,
		DistanceMaxM:   3.0,
		DistanceAlertM: 0.5,
	}
}

// Outcome is the single-face result. Identification is nil when there was
// nothing to report (no face, gated out, no embedding or below threshold).
type Outcome struct {
	Identification *domain.Identification
	Liveness       *domain.LivenessResult
}

// Spoofed reports a liveness rejection; no gallery match was attempted
func (o Outcome) Spoofed() bool {
	return o.Liveness != nil && !o.Liveness.IsLive
}

// Engine is the identification core shared by the request path and the stream processors
type Engine struct {
	detector  *Detector
	embedder  *Embedder
	gallery   *Gallery
	liveness  LivenessChecker
	config    EngineConfig
	threshold atomic.Uint64
	logger    *slog.Logger

	livenessOff atomic.Bool
}

// EngineOption configures optional collaborators
type EngineOption func(*Engine)

// WithLiveness enables the liveness gate for Identify
func WithLiveness(checker LivenessChecker) EngineOption {
	return func(e *Engine) {
		e.liveness = checker
	}
}

func NewEngine(detector *Detector, embedder *Embedder, gallery *Gallery, config EngineConfig, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		detector: detector,
		embedder: embedder,
		gallery:  gallery,
		config:   config,
		logger:   logger.With("component", "engine"),
	}
	e.threshold.Store(math.Float64bits(config.Threshold))

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the current recognition threshold
func (e *Engine) Threshold() float64 {
	return math.Float64frombits(e.threshold.Load())
}

// SetThreshold replaces the recognition threshold; last writer wins
func (e *Engine) SetThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return domain.ErrInvalidThreshold
	}
	old := e.Threshold()
	e.threshold.Store(math.Float64bits(v))
	e.logger.Info("recognition threshold updated",
		slog.Float64("old", old),
		slog.Float64("new", v),
	)
	return nil
}

func (e *Engine) Gallery() *Gallery {
	return e.gallery
}

func (e *Engine) Detector() *Detector {
	return e.detector
}

func (e *Engine) Config() EngineConfig {
	return e.config
}

// EstimateDistance returns the camera distance for a face of the given pixel width
func (e *Engine) EstimateDistance(widthPx int) (float64, bool) {
	return EstimateDistance(e.config.RealFaceWidthM, e.config.FocalLengthPx, widthPx)
}

// WithinRange reports whether d lies in the configured distance band
func (e *Engine) WithinRange(d float64) bool {
	return d >= e.config.DistanceMinM && d <= e.config.DistanceMaxM
}

// Identify matches the first detected face. When liveness is enabled the full
// image is checked first and a failed check short-circuits matching.
func (e *Engine) Identify(ctx context.Context, img image.Image, wantBox bool) (Outcome, error) {
	var out Outcome

	if e.gallery.Empty() {
		e.logger.Warn("gallery is empty, nothing to match")
		return out, nil
	}

	out.Liveness = e.checkLiveness(ctx, img)
	if out.Spoofed() {
		e.logger.Warn("liveness check failed",
			slog.Float64("confidence", out.Liveness.Confidence),
			slog.Float64("threshold", out.Liveness.Threshold),
			slog.String("error", out.Liveness.Error),
		)
		return out, nil
	}

	faces, err := e.detector.Detect(ctx, img)
	if err != nil {
		return out, fmt.Errorf("identify: %w", err)
	}
	if len(faces) == 0 {
		return out, nil
	}

	id, err := e.MatchFace(ctx, faces[0], wantBox)
	if err != nil {
		return out, fmt.Errorf("identify: %w", err)
	}
	if id != nil {
		id.Liveness = out.Liveness
	}
	out.Identification = id
	return out, nil
}

// checkLiveness returns nil when the gate is off or the model is unavailable
func (e *Engine) checkLiveness(ctx context.Context, img image.Image) *domain.LivenessResult {
	if !e.config.LivenessEnabled || e.liveness == nil {
		return nil
	}
	if !LivenessAvailable(e.liveness) {
		e.livenessDisabled()
		return nil
	}

	lr := e.liveness.Check(ctx, img)
	// o primeiro Check carrega o modelo; falha de carga não é spoof
	if !lr.IsLive && !LivenessAvailable(e.liveness) {
		e.livenessDisabled()
		return nil
	}
	return &lr
}

func (e *Engine) livenessDisabled() {
	if e.livenessOff.CompareAndSwap(false, true) {
		e.logger.Warn("liveness model unavailable, continuing without liveness check",
			slog.String("reason", e.liveness.Status().Reason),
		)
	}
}

// IdentifyAll detects every face and returns the accepted matches in detector order
func (e *Engine) IdentifyAll(ctx context.Context, img image.Image, wantBox bool) ([]domain.Identification, error) {
	if e.gallery.Empty() {
		e.logger.Warn("gallery is empty, nothing to match")
		return nil, nil
	}

	faces, err := e.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("identify all: %w", err)
	}

	return e.MatchFaces(ctx, faces, wantBox)
}

// MatchFaces runs gating, embedding and matching over faces that were already detected
func (e *Engine) MatchFaces(ctx context.Context, faces []domain.DetectedFace, wantBox bool) ([]domain.Identification, error) {
	if e.gallery.Empty() {
		e.logger.Warn("gallery is empty, nothing to match")
		return nil, nil
	}

	results := make([]domain.Identification, 0, len(faces))
	for _, face := range faces {
		id, err := e.MatchFace(ctx, face, wantBox)
		if err != nil {
			return results, err
		}
		if id != nil {
			results = append(results, *id)
		}
	}
	return results, nil
}

// MatchFace gates, embeds and matches one detected face. A nil result with a
// nil error means there is nothing to report for this face.
func (e *Engine) MatchFace(ctx context.Context, face domain.DetectedFace, wantBox bool) (*domain.Identification, error) {
	distance, hasDistance := e.EstimateDistance(face.Box.Width)

	if e.config.DistanceGating {
		if !hasDistance {
			e.logger.Debug("distance unavailable, skipping gate", slog.Int("width", face.Box.Width))
		} else if !e.WithinRange(distance) {
			e.logger.Debug("face outside distance band",
				slog.Float64("distance_m", distance),
				slog.Float64("min_m", e.config.DistanceMinM),
				slog.Float64("max_m", e.config.DistanceMaxM),
			)
			return nil, nil
		}
	}

	emb, ok, err := e.embedder.Embed(ctx, face.Crop)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	m, ok := e.gallery.Match(emb)
	if !ok {
		return nil, nil
	}

	threshold := e.Threshold()
	if m.Similarity < threshold {
		e.logger.Debug("best match below threshold",
			slog.String("person_id", m.PersonID),
			slog.Float64("similarity", m.Similarity),
			slog.Float64("threshold", threshold),
		)
		return nil, nil
	}

	id := &domain.Identification{
		PersonID:          m.PersonID,
		Name:              m.Name,
		Similarity:        m.Similarity,
		EmbeddingDistance: 1 - m.Similarity,
	}

	if wantBox {
		box := face.Box
		id.Box = &box
	}

	if hasDistance {
		within := e.WithinRange(distance)
		alert := distance <= e.config.DistanceAlertM
		id.DistanceM = &distance
		id.DistanceWithinRange = &within
		id.DistanceAlert = &alert
	}

	return id, nil
}

// EmbedFirstFace detects and embeds the first face of an enrollment image.
// ok is false when the image has no usable face.
func (e *Engine) EmbedFirstFace(ctx context.Context, img image.Image) (domain.Embedding, *domain.DetectedFace, bool, error) {
	faces, err := e.detector.Detect(ctx, img)
	if err != nil {
		return nil, nil, false, fmt.Errorf("embed first face: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil, false, nil
	}

	emb, ok, err := e.embedder.Embed(ctx, faces[0].Crop)
	if err != nil {
		return nil, nil, false, fmt.Errorf("embed first face: %w", err)
	}
	if !ok {
		return nil, nil, false, nil
	}
	return emb, &faces[0], true, nil
}
