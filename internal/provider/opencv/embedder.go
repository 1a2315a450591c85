package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// Embedder runs an ArcFace/FaceNet style ONNX model through gocv's dnn module
type Embedder struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize image.Point
	dimension int
}

// NewEmbedder carrega o modelo; inputSize 112 para ArcFace, 160 para FaceNet
func NewEmbedder(modelPath string, inputSize, dimension int) (*Embedder, error) {
	net, err := readNet(modelPath)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		net:       net,
		inputSize: image.Pt(inputSize, inputSize),
		dimension: dimension,
	}, nil
}

// Embed resizes to the model input, normalises with (x - 127.5) / 128 and
// flattens the output
func (e *Embedder) Embed(ctx context.Context, crop image.Image) ([]float64, error) {
	mat, err := toMat(crop)
	defer mat.Close()
	if err != nil {
		if err == ErrEmptyFrame {
			return nil, nil
		}
		return nil, err
	}

	blob := gocv.BlobFromImage(mat, 1.0/128.0, e.inputSize, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, nil
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read embedding output: %w", err)
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

var _ provider.Embedder = (*Embedder)(nil)
