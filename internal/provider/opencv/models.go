package opencv

import (
	"errors"
	"io"
	"path/filepath"
	"sync"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// InDir moves every model file name under dir
func (c Config) InDir(dir string) Config {
	if dir == "" {
		return c
	}
	move := func(p string) string { return filepath.Join(dir, filepath.Base(p)) }
	c.DetectorModel = move(c.DetectorModel)
	c.EmbedderModel = move(c.EmbedderModel)
	c.LivenessModel = move(c.LivenessModel)
	c.DeviceModel = move(c.DeviceModel)
	return c
}

// Models builds the on-device providers from one Config and closes them together
type Models struct {
	config Config

	mu      sync.Mutex
	closers []io.Closer
}

func NewModels(config Config) *Models {
	return &Models{config: config}
}

func (m *Models) track(c io.Closer) {
	m.mu.Lock()
	m.closers = append(m.closers, c)
	m.mu.Unlock()
}

// FaceDetector loads YuNet eagerly; a missing file is an error at startup
func (m *Models) FaceDetector() (provider.FaceDetector, error) {
	d, err := NewFaceDetector(m.config.DetectorModel, m.config.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	m.track(d)
	return d, nil
}

func (m *Models) Embedder() (provider.Embedder, error) {
	e, err := NewEmbedder(m.config.EmbedderModel, m.config.EmbedderInput, m.config.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	m.track(e)
	return e, nil
}

// Liveness is lazy; files are read on the first Load
func (m *Models) Liveness() provider.LivenessModel {
	l := NewLivenessModel(m.config.DetectorModel, m.config.LivenessModel)
	m.track(l)
	return l
}

func (m *Models) Analyzer() provider.ArtifactAnalyzer {
	return NewArtifactAnalyzer()
}

// Devices is lazy; files are read on the first Load
func (m *Models) Devices(confidence float32) provider.DeviceDetector {
	d := NewDeviceDetector(m.config.DeviceModel, m.config.DeviceInput, confidence, m.config.DeviceNMS)
	m.track(d)
	return d
}

func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		errs = append(errs, m.closers[i].Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}
