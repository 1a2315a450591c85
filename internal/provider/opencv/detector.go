package opencv

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// yunet devolve 15 colunas por face: x, y, w, h, 5 landmarks e o score
const yunetScoreCol = 14

// FaceDetector wraps OpenCV's FaceDetectorYN (YuNet)
type FaceDetector struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
}

// NewFaceDetector loads the YuNet model. scoreThreshold is kept low on purpose
// so that the adapter applies the configured detection confidence itself.
func NewFaceDetector(modelPath string, scoreThreshold float32) (*FaceDetector, error) {
	if err := checkModel(modelPath); err != nil {
		return nil, err
	}

	d := gocv.NewFaceDetectorYNWithParams(
		modelPath,
		"",
		image.Pt(320, 320),
		scoreThreshold,
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &FaceDetector{detector: d}, nil
}

func (d *FaceDetector) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	mat, err := toMat(img)
	defer mat.Close()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(mat, &faces)

	origin := img.Bounds().Min
	out := make([]provider.RawFace, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))

		out = append(out, provider.RawFace{
			Box:        image.Rect(x, y, x+w, y+h).Add(origin),
			Confidence: float64(faces.GetFloatAt(r, yunetScoreCol)),
		})
	}
	return out, nil
}

func (d *FaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

var _ provider.FaceDetector = (*FaceDetector)(nil)
