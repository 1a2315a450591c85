package mock

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

func filled(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestProvider_DetectFaces(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		provider  *Provider
		image     image.Image
		wantFaces int
	}{
		{
			name:      "valid image",
			provider:  New(),
			image:     filled(200, 200, color.White),
			wantFaces: 1,
		},
		{
			name:      "image too small",
			provider:  New(),
			image:     filled(10, 10, color.White),
			wantFaces: 0,
		},
		{
			name: "configured faces",
			provider: New(WithFaces(
				provider.RawFace{Box: image.Rect(0, 0, 80, 80), Confidence: 0.9},
				provider.RawFace{Box: image.Rect(100, 0, 180, 80), Confidence: 0.8},
			)),
			image:     filled(10, 10, color.White),
			wantFaces: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces, err := tt.provider.DetectFaces(ctx, tt.image)
			require.NoError(t, err)
			assert.Len(t, faces, tt.wantFaces)
		})
	}
}

func TestProvider_EmbedIsDeterministicAndNormalized(t *testing.T) {
	p := New()
	ctx := context.Background()

	a, err := p.Embed(ctx, filled(64, 64, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)
	b, err := p.Embed(ctx, filled(64, 64, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)
	c, err := p.Embed(ctx, filled(64, 64, color.RGBA{G: 200, A: 255}))
	require.NoError(t, err)

	assert.Len(t, a, p.Dimension())
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestProvider_EmbedEmptyCrop(t *testing.T) {
	emb, err := New().Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Nil(t, emb)
}

func TestProvider_LoadError(t *testing.T) {
	want := errors.New("missing")
	assert.ErrorIs(t, New(WithLoadError(want)).Load(context.Background()), want)
	assert.NoError(t, New().Load(context.Background()))
}
