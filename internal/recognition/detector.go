package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// Rotations is the sweep order used when a frame may have been captured sideways
var Rotations = []int{0, 90, 180, 270}

// DetectorConfig holds the acceptance filters for detector hits
type DetectorConfig struct {
	DetectionConfidence float64
	MinFaceSize         int
}

// DefaultDetectorConfig returns the production filters
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		DetectionConfidence: 0.7,
		MinFaceSize:         60,
	}
}

// Detector runs a face detector over a rotation sweep
type Detector struct {
	backend provider.FaceDetector
	config  DetectorConfig
	logger  *slog.Logger
}

func NewDetector(backend provider.FaceDetector, config DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		backend: backend,
		config:  config,
		logger:  logger.With("component", "detector"),
	}
}

// Detect returns the accepted faces of the first rotation that yields any.
// Results from different rotations are never merged. An empty slice means no face.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]domain.DetectedFace, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}

	for _, angle := range Rotations {
		rotated := Rotate(img, angle)

		raw, err := d.backend.DetectFaces(ctx, rotated)
		if err != nil {
			return nil, fmt.Errorf("detect faces at %d degrees: %w", angle, err)
		}

		faces := d.accept(rotated, raw, angle)
		if len(faces) > 0 {
			if angle != 0 {
				d.logger.Debug("faces found after rotation",
					slog.Int("rotation", angle),
					slog.Int("faces", len(faces)),
				)
			}
			return faces, nil
		}
	}

	return nil, nil
}

func (d *Detector) accept(img image.Image, raw []provider.RawFace, angle int) []domain.DetectedFace {
	bounds := img.Bounds()
	faces := make([]domain.DetectedFace, 0, len(raw))

	for _, hit := range raw {
		if hit.Confidence < d.config.DetectionConfidence {
			continue
		}

		box := hit.Box.Canon().Intersect(bounds)
		if box.Dx() < d.config.MinFaceSize || box.Dy() < d.config.MinFaceSize {
			continue
		}

		faces = append(faces, domain.DetectedFace{
			Crop:     imaging.Crop(img, box),
			Box:      domain.NewFaceBox(box.Sub(bounds.Min), hit.Confidence),
			Rotation: angle,
		})
	}

	return faces
}

// Rotate turns img counter-clockwise by a multiple of 90 degrees
func Rotate(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// UnrotateBox maps a box found on a frame rotated by Rotate back to the
// original w x h frame
func UnrotateBox(r image.Rectangle, degrees, w, h int) image.Rectangle {
	r = r.Canon()
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return image.Rect(w-r.Max.Y, r.Min.X, w-r.Min.Y, r.Max.X)
	case 180:
		return image.Rect(w-r.Max.X, h-r.Max.Y, w-r.Min.X, h-r.Min.Y)
	case 270:
		return image.Rect(r.Min.Y, h-r.Max.X, r.Max.Y, h-r.Min.X)
	default:
		return r
	}
}
