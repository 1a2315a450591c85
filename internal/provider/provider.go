package provider

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrModelNotFound indica que o arquivo do modelo não existe no disco
var ErrModelNotFound = errors.New("model file not found")

// FaceDetector define a interface para detectores de face
type FaceDetector interface {
	// DetectFaces retorna todas as faces encontradas, sem filtro de confiança
	DetectFaces(ctx context.Context, img image.Image) ([]RawFace, error)
}

// Embedder extrai o vetor de identidade de um recorte de face
type Embedder interface {
	// Embed retorna nil quando o modelo não produz saída
	Embed(ctx context.Context, crop image.Image) ([]float64, error)

	// Dimension é o tamanho fixo do vetor produzido
	Dimension() int
}

// LivenessModel is a passive liveness classifier with its own face detector
type LivenessModel interface {
	Name() string
	Load(ctx context.Context) error
	DetectFaces(ctx context.Context, img image.Image) ([]RawFace, error)
	// Score returns the probability in [0,1] that the faces belong to a live person
	Score(ctx context.Context, img image.Image, faces []RawFace) (float64, error)
}

// ArtifactAnalyzer extracts the raw measurements used by the screen-artifact heuristic
type ArtifactAnalyzer interface {
	Analyze(img image.Image) (ArtifactFeatures, error)
}

// DeviceDetector is an object detector able to see phones and tablets
type DeviceDetector interface {
	// Load returns ErrModelNotFound (wrapped) when the weights are missing
	Load(ctx context.Context) error
	DetectObjects(ctx context.Context, img image.Image) ([]DetectedObject, error)
}

// RawFace is a detector hit in pixel coordinates of the image it was run on
type RawFace struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// DetectedObject is an object detector hit
type DetectedObject struct {
	Box        image.Rectangle `json:"box"`
	ClassID    int             `json:"class_id"`
	Label      string          `json:"label,omitempty"`
	Confidence float64         `json:"confidence"`
}

// ArtifactFeatures are the measurements taken from a grayscale/colour frame
type ArtifactFeatures struct {
	// FreqRatio is band energy over total spectrum energy after removing DC
	FreqRatio float64
	GrayMean  float64
	GrayStd   float64
	// EdgeDensity is the fraction of edge pixels
	EdgeDensity       float64
	LaplacianVariance float64
	// ChannelStd is the mean of the per-channel standard deviations
	ChannelStd float64
}

// State is the lifecycle of a model-backed adapter
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status pairs a State with the reason an adapter became unavailable
type Status struct {
	State  State
	Reason string
}

func (s Status) MarshalText() ([]byte, error) {
	if s.Reason == "" {
		return []byte(s.State.String()), nil
	}
	return []byte(s.State.String() + ": " + s.Reason), nil
}

func Ready() Status {
	return Status{State: StateReady}
}

func Unavailable(reason string) Status {
	return Status{State: StateUnavailable, Reason: reason}
}
