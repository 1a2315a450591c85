package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

// CameraDefaults fill fields a camera entry leaves at zero
type CameraDefaults struct {
	FPS            int
	ReconnectDelay time.Duration
}

// CameraConfig is one entry of the cameras file
type CameraConfig struct {
	Name             string `yaml:"name"`
	Enabled          *bool  `yaml:"enabled"`
	MJPEGURL         string `yaml:"mjpeg_url"`
	RTSPURL          string `yaml:"rtsp_url"`
	UseRTSP          bool   `yaml:"use_rtsp"`
	CameraID         string `yaml:"camera_id"`
	Location         string `yaml:"location"`
	FPSLimit         int    `yaml:"fps_limit"`
	ReconnectDelay   int    `yaml:"reconnect_delay"`
	FallbackEnabled  bool   `yaml:"fallback_enabled"`
	FallbackDevice   int    `yaml:"fallback_device"`
	FallbackCameraID string `yaml:"fallback_camera_id"`
	FallbackLocation string `yaml:"fallback_location"`
}

type camerasFile struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

// LoadCameras reads the cameras YAML. A missing file yields no sources.
func LoadCameras(path string, defaults CameraDefaults) ([]stream.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cameras file: %w", err)
	}
	return ParseCameras(data, defaults)
}

func ParseCameras(data []byte, defaults CameraDefaults) ([]stream.SourceConfig, error) {
	var file camerasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cameras file: %w", err)
	}

	seen := make(map[string]bool, len(file.Cameras))
	sources := make([]stream.SourceConfig, 0, len(file.Cameras))

	for i, c := range file.Cameras {
		if c.Name == "" {
			return nil, fmt.Errorf("camera #%d: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("camera %s: duplicate name", c.Name)
		}
		seen[c.Name] = true

		if c.FPSLimit < 0 || c.ReconnectDelay < 0 {
			return nil, fmt.Errorf("camera %s: fps_limit and reconnect_delay must be >= 0", c.Name)
		}

		sources = append(sources, c.Source(defaults))
	}

	return sources, nil
}

// Source converts the entry; enabled defaults to true
func (c CameraConfig) Source(defaults CameraDefaults) stream.SourceConfig {
	enabled := true
	if c.Enabled != nil {
		enabled = *c.Enabled
	}
	fps := c.FPSLimit
	if fps == 0 {
		fps = defaults.FPS
	}
	delay := time.Duration(c.ReconnectDelay) * time.Second
	if delay == 0 {
		delay = defaults.ReconnectDelay
	}

	return stream.SourceConfig{
		Name:             c.Name,
		Enabled:          enabled,
		MJPEGURL:         c.MJPEGURL,
		RTSPURL:          c.RTSPURL,
		UseRTSP:          c.UseRTSP,
		CameraID:         c.CameraID,
		Location:         c.Location,
		FPSLimit:         fps,
		ReconnectDelay:   delay,
		FallbackEnabled:  c.FallbackEnabled,
		FallbackDevice:   c.FallbackDevice,
		FallbackCameraID: c.FallbackCameraID,
		FallbackLocation: c.FallbackLocation,
	}
}
