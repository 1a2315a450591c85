package recognition

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(w, h int, r uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: r, G: 10, B: 10, A: 255})
		}
	}
	return img
}

// fakeDetector returns faces only for images with the configured width
type fakeDetector struct {
	mu       sync.Mutex
	faces    []provider.RawFace
	onWidth  int
	calls    int
	err      error
	widthLog []int
}

func (f *fakeDetector) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.widthLog = append(f.widthLog, img.Bounds().Dx())
	if f.err != nil {
		return nil, f.err
	}
	if f.onWidth != 0 && img.Bounds().Dx() != f.onWidth {
		return nil, nil
	}
	return f.faces, nil
}

// fakeEmbedder maps the red channel of the crop's first pixel to a vector
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[uint8][]float64
	dim     int
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, crop image.Image) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b := crop.Bounds()
	r, _, _, _ := crop.At(b.Min.X, b.Min.Y).RGBA()
	return f.vectors[uint8(r>>8)], nil
}

func (f *fakeEmbedder) Dimension() int {
	return f.dim
}

type staticSource struct {
	persons []domain.Person
	err     error
}

func (s staticSource) ListActive(ctx context.Context) ([]domain.Person, error) {
	return s.persons, s.err
}

type fixedLiveness struct {
	result  domain.LivenessResult
	status  provider.Status
	// loadErr torna o checker indisponível no primeiro Check
	loadErr string
	calls   int
}

func (f *fixedLiveness) Check(ctx context.Context, frame image.Image) domain.LivenessResult {
	f.calls++
	if f.loadErr != "" {
		f.status = provider.Unavailable(f.loadErr)
		return domain.LivenessResult{Error: "liveness unavailable: " + f.loadErr}
	}
	return f.result
}

func (f *fixedLiveness) Status() provider.Status {
	return f.status
}
