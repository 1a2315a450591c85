package stream

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// EventSink receives every event the processor decides to emit
type EventSink interface {
	Append(ctx context.Context, event *domain.DetectionEvent) error
}

// SnapshotStore persists a frame and returns an opaque reference to it
type SnapshotStore interface {
	Save(img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) (string, error)
}

// AttendanceLog is the daily text trail of cooldown-cleared identifications
type AttendanceLog interface {
	Append(at time.Time, personID, name string, confidence float64) error
}

// DeviceFinder returns phone and tablet boxes in frame coordinates
type DeviceFinder interface {
	Detect(ctx context.Context, frame image.Image) []image.Rectangle
}

// FrameSource is an open camera
type FrameSource interface {
	Read() (image.Image, error)
	// Grab advances one frame without decoding it
	Grab() error
	FPS() float64
	Close() error
}

// SourceOpener opens a Target; implementations must honour ctx for the open call
type SourceOpener interface {
	Open(ctx context.Context, target Target) (FrameSource, error)
}

// Target is one concrete video input of a source, primary or fallback
type Target struct {
	Label    string
	URL      string
	Device   int
	Local    bool
	CameraID string
	Location string
}

func (t Target) String() string {
	if t.Local {
		return fmt.Sprintf("%s (device %d)", t.Label, t.Device)
	}
	return fmt.Sprintf("%s (%s)", t.Label, t.URL)
}

// SourceConfig describes one configured camera
type SourceConfig struct {
	Name           string
	Enabled        bool
	MJPEGURL       string
	RTSPURL        string
	UseRTSP        bool
	CameraID       string
	Location       string
	FPSLimit       int
	ReconnectDelay time.Duration

	FallbackEnabled  bool
	FallbackDevice   int
	FallbackCameraID string
	FallbackLocation string
}

// StreamURL picks RTSP or MJPEG according to UseRTSP
func (s SourceConfig) StreamURL() string {
	if s.UseRTSP && s.RTSPURL != "" {
		return s.RTSPURL
	}
	return s.MJPEGURL
}

func (s SourceConfig) primary() Target {
	return Target{
		Label:    "primary",
		URL:      s.StreamURL(),
		CameraID: s.CameraID,
		Location: s.Location,
	}
}

func (s SourceConfig) fallback() Target {
	cameraID := s.FallbackCameraID
	if cameraID == "" {
		cameraID = s.CameraID
	}
	location := s.FallbackLocation
	if location == "" {
		location = s.Location
	}
	return Target{
		Label:    "fallback",
		Device:   s.FallbackDevice,
		Local:    true,
		CameraID: cameraID,
		Location: location,
	}
}

func (s SourceConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("source has no name")
	}
	if s.StreamURL() == "" && !s.FallbackEnabled {
		return fmt.Errorf("source %s has no stream url and no fallback", s.Name)
	}
	if s.CameraID == "" {
		return fmt.Errorf("source %s has no camera_id", s.Name)
	}
	return nil
}
