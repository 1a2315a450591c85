// Package opencv implements the model-backed providers on top of gocv.
// Every type here needs OpenCV 4.x with the dnn and objdetect modules.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

var ErrEmptyFrame = errors.New("empty frame")

// Config aponta para os arquivos de modelo em disco
type Config struct {
	DetectorModel  string
	EmbedderModel  string
	EmbedderInput  int
	EmbeddingDim   int
	LivenessModel  string
	DeviceModel    string
	DeviceInput    int
	DeviceNMS      float32
	ScoreThreshold float32
}

// DefaultConfig returns the model layout used by the docker image
func DefaultConfig() Config {
	return Config{
		DetectorModel:  "models/face_detection_yunet_2023mar.onnx",
		EmbedderModel:  "models/arcface_r100.onnx",
		EmbedderInput:  112,
		EmbeddingDim:   512,
		LivenessModel:  "models/minifasnet_v2.onnx",
		DeviceModel:    "models/yolov8n.onnx",
		DeviceInput:    640,
		DeviceNMS:      0.45,
		ScoreThreshold: 0.5,
	}
}

func checkModel(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path configured", provider.ErrModelNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", provider.ErrModelNotFound, path)
		}
		return fmt.Errorf("stat model %s: %w", path, err)
	}
	return nil
}

// toMat converte para BGR, o layout que os modelos esperam
func toMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return mat, fmt.Errorf("convert image: %w", err)
	}
	if mat.Empty() {
		return mat, ErrEmptyFrame
	}
	return mat, nil
}

func readNet(path string) (gocv.Net, error) {
	if err := checkModel(path); err != nil {
		return gocv.Net{}, err
	}
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return net, fmt.Errorf("failed to load model from %s", path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return net, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return net, fmt.Errorf("set target: %w", err)
	}
	return net, nil
}
