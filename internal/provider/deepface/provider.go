package deepface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

const (
	// minFaceArea is the minimum face area (in pixels²) for reliable detection
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels
)

// Provider is a remote FaceDetector and Embedder backed by DeepFace
type Provider struct {
	client *Client
	dim    int
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	dim := config.Dimension
	if dim <= 0 {
		dim = DefaultConfig().Dimension
	}
	return &Provider{
		client: NewClient(config),
		dim:    dim,
	}
}

// DetectFaces returns every face DeepFace finds, unfiltered
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	resp, err := p.client.ExtractFaces(ctx, img)
	if err != nil {
		// DeepFace answers 400 when enforce_detection finds nothing
		if isNoFace(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	origin := img.Bounds().Min
	faces := make([]provider.RawFace, 0, len(resp.Results))
	for _, result := range resp.Results {
		area := result.FacialArea
		if area.W <= 0 || area.H <= 0 {
			continue
		}

		confidence := result.Confidence
		if confidence <= 0 {
			confidence = calculateConfidence(float64(area.W * area.H))
		}

		faces = append(faces, provider.RawFace{
			Box:        image.Rect(area.X, area.Y, area.X+area.W, area.Y+area.H).Add(origin),
			Confidence: confidence,
		})
	}

	return faces, nil
}

// calculateConfidence estimates confidence from face area when the
// detector backend reports none
func calculateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5
	}
	// 0.7 a 0.99 conforme a área
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + (normalized * 0.29)
}

// Embed sends an already-cropped face with detection skipped
func (p *Provider) Embed(ctx context.Context, crop image.Image) ([]float64, error) {
	resp, err := p.client.Represent(ctx, crop, DetectorSkip)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	return resp.Results[0].Embedding, nil
}

func (p *Provider) Dimension() int {
	return p.dim
}

func isNoFace(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == 400
}

var (
	_ provider.FaceDetector = (*Provider)(nil)
	_ provider.Embedder     = (*Provider)(nil)
)
