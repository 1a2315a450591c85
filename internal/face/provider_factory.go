package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/config"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider/rekognition"
)

// ProviderType defines supported face backends
type ProviderType string

const (
	// ProviderTypeOpenCV runs the ONNX models in-process (default)
	ProviderTypeOpenCV ProviderType = "opencv"
	// ProviderTypeDeepFace uses a DeepFace HTTP service for detection and embeddings
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition uses AWS for detection; embeddings stay local
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is deterministic and model-free, for dev/test
	ProviderTypeMock ProviderType = "mock"
	// ProviderTypeNone disables the device detector
	ProviderTypeNone ProviderType = "none"
)

// Local builds the on-device models. cmd/api passes opencv.Models.
type Local interface {
	FaceDetector() (provider.FaceDetector, error)
	Embedder() (provider.Embedder, error)
	Liveness() provider.LivenessModel
	Analyzer() provider.ArtifactAnalyzer
	Devices(confidence float32) provider.DeviceDetector
}

// Backends is the set of scorers the recognition core is wired with
type Backends struct {
	Detector provider.FaceDetector
	Embedder provider.Embedder
	Liveness provider.LivenessModel
	Analyzer provider.ArtifactAnalyzer
	// Devices is nil when DEVICE_PROVIDER is none
	Devices provider.DeviceDetector
}

// NewBackends picks every scorer from configuration.
//
// Environment variables:
//   - FACE_PROVIDER: "opencv", "deepface", "rekognition" or "mock" (default: "opencv")
//   - DEVICE_PROVIDER: "opencv", "rekognition", "mock" or "none" (default: "opencv")
//   - DEEPFACE_URL / DEEPFACE_MODEL: DeepFace service
//   - AWS_REGION and the AWS SDK credential chain for Rekognition
//
// Liveness always runs locally; the mock provider replaces it only when
// FACE_PROVIDER is mock.
func NewBackends(ctx context.Context, cfg *config.Config, local Local, auditLogger audit.Logger) (*Backends, error) {
	var (
		b     Backends
		err   error
		rekog *rekognition.Provider
	)

	rekognitionProvider := func() (*rekognition.Provider, error) {
		if rekog != nil {
			return rekog, nil
		}
		rekog, err = createRekognitionProvider(ctx, cfg, auditLogger)
		return rekog, err
	}

	switch ProviderType(cfg.FaceProvider) {
	case ProviderTypeOpenCV, "":
		if b.Detector, err = local.FaceDetector(); err != nil {
			return nil, fmt.Errorf("create face detector: %w", err)
		}
		if b.Embedder, err = local.Embedder(); err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		b.Liveness = local.Liveness()
		b.Analyzer = local.Analyzer()

	case ProviderTypeDeepFace:
		df := createDeepFaceProvider(cfg)
		b.Detector = df
		b.Embedder = df
		b.Liveness = local.Liveness()
		b.Analyzer = local.Analyzer()

	case ProviderTypeRekognition:
		p, err := rekognitionProvider()
		if err != nil {
			return nil, err
		}
		b.Detector = p
		if b.Embedder, err = local.Embedder(); err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		b.Liveness = local.Liveness()
		b.Analyzer = local.Analyzer()

	case ProviderTypeMock:
		m := mock.New()
		b.Detector = m
		b.Embedder = m
		b.Liveness = m
		b.Analyzer = m

	default:
		return nil, fmt.Errorf("unknown face provider: %s (supported: %s, %s, %s, %s)",
			cfg.FaceProvider, ProviderTypeOpenCV, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}

	switch ProviderType(cfg.DeviceProvider) {
	case ProviderTypeOpenCV, "":
		b.Devices = local.Devices(float32(cfg.DeviceConfidence))
	case ProviderTypeRekognition:
		p, err := rekognitionProvider()
		if err != nil {
			return nil, err
		}
		b.Devices = p
	case ProviderTypeMock:
		b.Devices = mock.New()
	case ProviderTypeNone:
		b.Devices = nil
	default:
		return nil, fmt.Errorf("unknown device provider: %s (supported: %s, %s, %s, %s)",
			cfg.DeviceProvider, ProviderTypeOpenCV, ProviderTypeRekognition, ProviderTypeMock, ProviderTypeNone)
	}

	return &b, nil
}

func createRekognitionProvider(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (*rekognition.Provider, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}
	rekogConfig.MinConfidence = float32(cfg.DeviceConfidence * 100)

	api, err := rekognition.NewAPI(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	var opts []rekognition.ProviderOption
	if auditLogger != nil {
		opts = append(opts, rekognition.WithAuditLogger(auditLogger))
	}

	return rekognition.NewProvider(api, rekogConfig, opts...), nil
}

func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}

	return deepface.NewProvider(deepfaceConfig)
}
