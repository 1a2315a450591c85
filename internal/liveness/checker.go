package liveness

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
)

const (
	// DefaultThreshold é o corte de liveness usado quando a config não define outro
	DefaultThreshold = 0.7

	// penalização aplicada quando há artefatos de tela e o modelo está em dúvida
	artifactGate    = 0.6
	rawDoubtCeiling = 0.7
	artifactPenalty = 0.3

	// realce equivalente a alpha 1.2, beta 30 em 0..255
	enhanceContrast   = 20.0
	enhanceBrightness = 30.0 / 2.55

	errNoFace         = "No face detected"
	errPipelineFailed = "Liveness pipeline failed"
)

// retryRotations is the order tried when the upright frame has no face
var retryRotations = []int{90, 270, 180}

// Checker runs passive liveness plus the screen-artifact heuristic
type Checker struct {
	model     provider.LivenessModel
	analyzer  provider.ArtifactAnalyzer
	threshold float64
	logger    *slog.Logger

	mu     sync.RWMutex
	status provider.Status
}

// NewChecker cria o checker; analyzer pode ser nil e então o score de artefatos é 0
func NewChecker(model provider.LivenessModel, analyzer provider.ArtifactAnalyzer, threshold float64, logger *slog.Logger) *Checker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Checker{
		model:     model,
		analyzer:  analyzer,
		threshold: threshold,
		logger:    logger.With("component", "liveness"),
	}
}

// Init loads the model once. A failure leaves the checker Unavailable for the
// lifetime of the process.
func (c *Checker) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status.State {
	case provider.StateReady:
		return nil
	case provider.StateUnavailable:
		return fmt.Errorf("liveness unavailable: %s", c.status.Reason)
	}

	if err := c.model.Load(ctx); err != nil {
		c.status = provider.Unavailable(err.Error())
		c.logger.Error("liveness model failed to load",
			slog.String("model", c.model.Name()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("load liveness model: %w", err)
	}

	c.status = provider.Ready()
	c.logger.Info("liveness model ready", slog.String("model", c.model.Name()))
	return nil
}

func (c *Checker) Status() provider.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Checker) Threshold() float64 {
	return c.threshold
}

// ModelTag identifies the model combination in results and events
func (c *Checker) ModelTag() string {
	return c.model.Name() + "+artifacts"
}

// Check never fails; any problem becomes IsLive=false with Error set
func (c *Checker) Check(ctx context.Context, frame image.Image) (res domain.LivenessResult) {
	res = domain.LivenessResult{Threshold: c.threshold, Model: c.ModelTag()}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in liveness check", slog.Any("panic", r))
			res = c.failure(fmt.Sprintf("panic: %v", r))
		}
	}()

	if c.Status().State == provider.StateUninitialized {
		_ = c.Init(ctx)
	}
	if st := c.Status(); st.State != provider.StateReady {
		return c.failure("liveness unavailable: " + st.Reason)
	}

	if frame == nil || frame.Bounds().Empty() {
		return c.failure(errNoFace)
	}

	img, faces, err := c.findFaces(ctx, imaging.Clone(frame))
	if err != nil {
		c.logger.Error("liveness face detection failed", slog.String("error", err.Error()))
		return c.failure(err.Error())
	}
	if len(faces) == 0 {
		return c.failure(errNoFace)
	}

	raw, err := c.model.Score(ctx, img, faces)
	if err != nil {
		c.logger.Error("liveness scoring failed", slog.String("error", err.Error()))
		return c.failure(errPipelineFailed)
	}
	raw = clamp01(raw)

	artifacts := c.artifacts(img)
	adjusted := Combine(raw, artifacts)

	res.IsLive = adjusted >= c.threshold
	res.Confidence = adjusted
	res.RawLiveness = raw
	res.ScreenArtifacts = artifacts
	res.NumFaces = len(faces)

	c.logger.Debug("liveness checked",
		slog.Float64("raw", raw),
		slog.Float64("artifacts", artifacts),
		slog.Float64("adjusted", adjusted),
		slog.Bool("is_live", res.IsLive),
	)
	return res
}

// Combine penalises the model score only when both signals point to a replay
func Combine(raw, artifacts float64) float64 {
	if artifacts > artifactGate && raw < rawDoubtCeiling {
		return raw * (1 - artifacts*artifactPenalty)
	}
	return raw
}

// findFaces tenta a imagem original, depois rotações e por último uma cópia realçada
func (c *Checker) findFaces(ctx context.Context, img *image.NRGBA) (image.Image, []provider.RawFace, error) {
	faces, err := c.model.DetectFaces(ctx, img)
	if err != nil || len(faces) > 0 {
		return img, faces, err
	}

	for _, angle := range retryRotations {
		rotated := recognition.Rotate(img, angle)
		faces, err = c.model.DetectFaces(ctx, rotated)
		if err != nil {
			return nil, nil, err
		}
		if len(faces) > 0 {
			c.logger.Info("liveness faces found after rotation", slog.Int("rotation", angle))
			return rotated, faces, nil
		}
	}

	enhanced := imaging.AdjustBrightness(imaging.AdjustContrast(img, enhanceContrast), enhanceBrightness)
	faces, err = c.model.DetectFaces(ctx, enhanced)
	if err != nil {
		return nil, nil, err
	}
	return enhanced, faces, nil
}

func (c *Checker) artifacts(img image.Image) float64 {
	if c.analyzer == nil {
		return 0
	}
	f, err := c.analyzer.Analyze(img)
	if err != nil {
		c.logger.Warn("screen artifact analysis failed", slog.String("error", err.Error()))
		return 0
	}
	return ScoreArtifacts(f)
}

func (c *Checker) failure(msg string) domain.LivenessResult {
	return domain.LivenessResult{
		IsLive:    false,
		Threshold: c.threshold,
		Model:     c.ModelTag(),
		Error:     msg,
	}
}

var _ recognition.LivenessChecker = (*Checker)(nil)
