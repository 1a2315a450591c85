package opencv

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

const (
	livenessInput = 80
	// MiniFASNet foi treinado com o recorte expandido 2.7x ao redor da face
	livenessCropScale = 2.7
	// índice da classe "real" na saída softmax
	liveClass = 1
)

// LivenessModel pairs a YuNet detector with a MiniFASNet style anti-spoof head.
// Nothing is read from disk until Load.
type LivenessModel struct {
	detectorPath string
	modelPath    string

	mu       sync.Mutex
	detector *FaceDetector
	net      gocv.Net
	loaded   bool
}

func NewLivenessModel(detectorPath, modelPath string) *LivenessModel {
	return &LivenessModel{detectorPath: detectorPath, modelPath: modelPath}
}

func (m *LivenessModel) Name() string {
	return "minifasnet+yunet"
}

func (m *LivenessModel) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return nil
	}

	det, err := NewFaceDetector(m.detectorPath, 0.5)
	if err != nil {
		return fmt.Errorf("liveness detector: %w", err)
	}

	net, err := readNet(m.modelPath)
	if err != nil {
		det.Close()
		return fmt.Errorf("liveness model: %w", err)
	}

	m.detector = det
	m.net = net
	m.loaded = true
	return nil
}

func (m *LivenessModel) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	if !m.isLoaded() {
		return nil, fmt.Errorf("liveness model not loaded")
	}
	return m.detector.DetectFaces(ctx, img)
}

// Score classifies the first face
func (m *LivenessModel) Score(ctx context.Context, img image.Image, faces []provider.RawFace) (float64, error) {
	if !m.isLoaded() {
		return 0, fmt.Errorf("liveness model not loaded")
	}
	if len(faces) == 0 {
		return 0, nil
	}

	crop := imaging.Resize(
		imaging.Crop(img, expand(faces[0].Box, livenessCropScale, img.Bounds())),
		livenessInput, livenessInput, imaging.Linear,
	)

	mat, err := toMat(crop)
	defer mat.Close()
	if err != nil {
		return 0, err
	}

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(livenessInput, livenessInput), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	logits, err := out.DataPtrFloat32()
	if err != nil {
		return 0, fmt.Errorf("read liveness output: %w", err)
	}
	probs := softmax(logits)
	if len(probs) <= liveClass {
		return 0, fmt.Errorf("unexpected liveness output size %d", len(probs))
	}
	return probs[liveClass], nil
}

func (m *LivenessModel) isLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *LivenessModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return nil
	}
	m.loaded = false
	m.detector.Close()
	return m.net.Close()
}

// expand aumenta o retângulo em torno do centro e recorta nos limites da imagem
func expand(r image.Rectangle, scale float64, bounds image.Rectangle) image.Rectangle {
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	hw := float64(r.Dx()) * scale / 2
	hh := float64(r.Dy()) * scale / 2

	out := image.Rect(int(cx-hw), int(cy-hh), int(cx+hw), int(cy+hh))
	return out.Intersect(bounds)
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := math.Inf(-1)
	for _, v := range logits {
		maxV = math.Max(maxV, float64(v))
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var _ provider.LivenessModel = (*LivenessModel)(nil)
