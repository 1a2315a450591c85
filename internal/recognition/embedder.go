package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// blankSampleStep controls how densely a crop is sampled when checking for an all-black input
const blankSampleStep = 4

// Embedder validates crops and normalises backend output
type Embedder struct {
	backend provider.Embedder
	logger  *slog.Logger
}

func NewEmbedder(backend provider.Embedder, logger *slog.Logger) *Embedder {
	return &Embedder{
		backend: backend,
		logger:  logger.With("component", "embedder"),
	}
}

// Dimension is the fixed length of every embedding this adapter returns
func (e *Embedder) Dimension() int {
	return e.backend.Dimension()
}

// Embed returns ok=false for empty, degenerate or all-black crops and when the
// model produces no usable output. The error is reserved for backend failures.
func (e *Embedder) Embed(ctx context.Context, crop image.Image) (domain.Embedding, bool, error) {
	if crop == nil || crop.Bounds().Empty() {
		return nil, false, nil
	}

	if isBlank(crop) {
		e.logger.Debug("skipping blank crop", slog.Any("bounds", crop.Bounds()))
		return nil, false, nil
	}

	raw, err := e.backend.Embed(ctx, crop)
	if err != nil {
		return nil, false, fmt.Errorf("embed face: %w", err)
	}

	if len(raw) == 0 {
		return nil, false, nil
	}

	if dim := e.backend.Dimension(); dim > 0 && len(raw) != dim {
		e.logger.Warn("embedding dimension mismatch",
			slog.Int("got", len(raw)),
			slog.Int("want", dim),
		)
		return nil, false, nil
	}

	emb := domain.Embedding(raw)
	if emb.Norm() == 0 {
		return nil, false, nil
	}

	return emb.Normalized(), true, nil
}

func isBlank(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += blankSampleStep {
		for x := b.Min.X; x < b.Max.X; x += blankSampleStep {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r|g|bl != 0 {
				return false
			}
		}
	}
	return true
}
