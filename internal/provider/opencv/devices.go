package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// saída do YOLOv8: [1, 4+classes, candidatos], caixas em cx, cy, w, h no espaço da entrada
const yoloBoxFields = 4

// DeviceDetector runs a YOLOv8 COCO model. Weights are read on Load.
type DeviceDetector struct {
	modelPath      string
	inputSize      int
	scoreThreshold float32
	nmsThreshold   float32

	mu     sync.Mutex
	net    gocv.Net
	loaded bool
}

func NewDeviceDetector(modelPath string, inputSize int, scoreThreshold, nmsThreshold float32) *DeviceDetector {
	return &DeviceDetector{
		modelPath:      modelPath,
		inputSize:      inputSize,
		scoreThreshold: scoreThreshold,
		nmsThreshold:   nmsThreshold,
	}
}

// Load returns a wrapped provider.ErrModelNotFound when the weights are missing
func (d *DeviceDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	net, err := readNet(d.modelPath)
	if err != nil {
		return fmt.Errorf("device model: %w", err)
	}
	d.net = net
	d.loaded = true
	return nil
}

func (d *DeviceDetector) DetectObjects(ctx context.Context, img image.Image) ([]provider.DetectedObject, error) {
	mat, err := toMat(img)
	defer mat.Close()
	if err != nil {
		return nil, err
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	if !d.loaded {
		d.mu.Unlock()
		return nil, fmt.Errorf("device model not loaded")
	}
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	shape := out.Size()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected device output shape %v", shape)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read device output: %w", err)
	}

	b := img.Bounds()
	candidates := decodeYOLO(data, shape[1], shape[2],
		float64(b.Dx())/float64(d.inputSize), float64(b.Dy())/float64(d.inputSize),
		d.scoreThreshold,
	)
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Box
		scores[i] = float32(c.Confidence)
	}

	keep := gocv.NMSBoxes(boxes, scores, d.scoreThreshold, d.nmsThreshold)

	objects := make([]provider.DetectedObject, 0, len(keep))
	for _, idx := range keep {
		obj := candidates[idx]
		obj.Box = obj.Box.Add(b.Min)
		objects = append(objects, obj)
	}
	return objects, nil
}

func (d *DeviceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}

// decodeYOLO lê o tensor [fields, n] em ordem de linha e escolhe a melhor classe por candidato
func decodeYOLO(data []float32, fields, n int, scaleX, scaleY float64, threshold float32) []provider.DetectedObject {
	if fields <= yoloBoxFields || len(data) < fields*n {
		return nil
	}

	at := func(field, i int) float32 {
		return data[field*n+i]
	}

	var out []provider.DetectedObject
	for i := 0; i < n; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < fields-yoloBoxFields; c++ {
			if s := at(yoloBoxFields+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx, cy := float64(at(0, i)), float64(at(1, i))
		w, h := float64(at(2, i)), float64(at(3, i))

		out = append(out, provider.DetectedObject{
			Box: image.Rect(
				int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
			),
			ClassID:    bestClass,
			Label:      cocoLabel(bestClass),
			Confidence: float64(bestScore),
		})
	}
	return out
}

func cocoLabel(class int) string {
	switch class {
	case 0:
		return "person"
	case 63:
		return "laptop"
	case 67:
		return "cell phone"
	default:
		return ""
	}
}

var _ provider.DeviceDetector = (*DeviceDetector)(nil)
