package liveness

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"slices"
	"sync"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// classes COCO usadas pelo detector de dispositivos
const (
	ClassLaptop    = 63
	ClassCellPhone = 67
)

// DeviceConfig filters object-detector hits down to phones and tablets
type DeviceConfig struct {
	Confidence float64
	Classes    []int
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Confidence: 0.4,
		Classes:    []int{ClassCellPhone, ClassLaptop},
	}
}

// DeviceDetector wraps an object detector. The model is loaded on first use;
// a failed load disables the detector for the rest of the process.
type DeviceDetector struct {
	backend provider.DeviceDetector
	config  DeviceConfig
	logger  *slog.Logger

	mu     sync.Mutex
	status provider.Status
}

// NewDeviceDetector aceita backend nil, o que equivale a modelo ausente
func NewDeviceDetector(backend provider.DeviceDetector, config DeviceConfig, logger *slog.Logger) *DeviceDetector {
	d := &DeviceDetector{
		backend: backend,
		config:  config,
		logger:  logger.With("component", "device_detector"),
	}
	if backend == nil {
		d.status = provider.Unavailable("no device detector configured")
	}
	return d
}

func (d *DeviceDetector) Status() provider.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Detect returns device boxes relative to the frame origin, the same space as
// face boxes; nil when unavailable
func (d *DeviceDetector) Detect(ctx context.Context, frame image.Image) []image.Rectangle {
	if !d.ensureLoaded(ctx) {
		return nil
	}

	objects, err := d.backend.DetectObjects(ctx, frame)
	if err != nil {
		d.logger.Warn("device detection failed", slog.String("error", err.Error()))
		return nil
	}

	origin := frame.Bounds().Min
	var boxes []image.Rectangle
	for _, obj := range objects {
		if obj.Confidence < d.config.Confidence {
			continue
		}
		if !slices.Contains(d.config.Classes, obj.ClassID) {
			continue
		}
		boxes = append(boxes, obj.Box.Canon().Sub(origin))
	}
	return boxes
}

func (d *DeviceDetector) ensureLoaded(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.status.State {
	case provider.StateReady:
		return true
	case provider.StateUnavailable:
		return false
	}

	if err := d.backend.Load(ctx); err != nil {
		d.status = provider.Unavailable(err.Error())
		if errors.Is(err, provider.ErrModelNotFound) {
			d.logger.Warn("device model not found, mobile spoof detection disabled", slog.String("error", err.Error()))
		} else {
			d.logger.Error("device model failed to load, mobile spoof detection disabled", slog.String("error", err.Error()))
		}
		return false
	}

	d.status = provider.Ready()
	d.logger.Info("device detector ready")
	return true
}

// FaceEnclosedBy returns the share of the face box covered by the device box
// and whether it reaches ratio. A zero-area face is never enclosed.
func FaceEnclosedBy(face, device image.Rectangle, ratio float64) (bool, float64) {
	face, device = face.Canon(), device.Canon()

	faceArea := face.Dx() * face.Dy()
	if faceArea <= 0 {
		return false, 0
	}

	inter := face.Intersect(device)
	overlap := float64(inter.Dx()*inter.Dy()) / float64(faceArea)
	return overlap >= ratio, overlap
}

// MostEnclosing reports the best overlap of the face against every device box
func MostEnclosing(face image.Rectangle, devices []image.Rectangle, ratio float64) (bool, float64) {
	var best float64
	for _, dev := range devices {
		if _, overlap := FaceEnclosedBy(face, dev, ratio); overlap > best {
			best = overlap
		}
	}
	return len(devices) > 0 && best >= ratio, best
}
