package opencv

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// dcWindow é o meio-lado da janela zerada em torno da componente DC
const dcWindow = 5

// ArtifactAnalyzer measures the frame properties used by the screen-artifact score
type ArtifactAnalyzer struct{}

func NewArtifactAnalyzer() *ArtifactAnalyzer {
	return &ArtifactAnalyzer{}
}

func (a *ArtifactAnalyzer) Analyze(img image.Image) (provider.ArtifactFeatures, error) {
	var f provider.ArtifactFeatures

	bgr, err := toMat(img)
	defer bgr.Close()
	if err != nil {
		return f, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray); err != nil {
		return f, fmt.Errorf("grayscale: %w", err)
	}

	f.FreqRatio, err = frequencyRatio(gray)
	if err != nil {
		return f, err
	}

	f.GrayMean, f.GrayStd, err = meanStd(gray)
	if err != nil {
		return f, err
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(gray, &edges, 50, 150); err != nil {
		return f, fmt.Errorf("canny: %w", err)
	}
	f.EdgeDensity = float64(gocv.CountNonZero(edges)) / float64(edges.Total())

	lap := gocv.NewMat()
	defer lap.Close()
	if err := gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault); err != nil {
		return f, fmt.Errorf("laplacian: %w", err)
	}
	_, lapStd, err := meanStd(lap)
	if err != nil {
		return f, err
	}
	f.LaplacianVariance = lapStd * lapStd

	channels := gocv.Split(bgr)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	var stdSum float64
	for _, ch := range channels {
		_, s, err := meanStd(ch)
		if err != nil {
			return f, err
		}
		stdSum += s
	}
	if len(channels) > 0 {
		f.ChannelStd = stdSum / float64(len(channels))
	}

	return f, nil
}

func meanStd(m gocv.Mat) (float64, float64, error) {
	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()

	if err := gocv.MeanStdDev(m, &mean, &std); err != nil {
		return 0, 0, fmt.Errorf("mean/stddev: %w", err)
	}
	return mean.GetDoubleAt(0, 0), std.GetDoubleAt(0, 0), nil
}

// frequencyRatio computa |DFT| e devolve a energia da banda central sobre a total
func frequencyRatio(gray gocv.Mat) (float64, error) {
	floatMat := gocv.NewMat()
	defer floatMat.Close()
	if err := gray.ConvertTo(&floatMat, gocv.MatTypeCV32F); err != nil {
		return 0, fmt.Errorf("convert to float: %w", err)
	}

	spectrum := gocv.NewMat()
	defer spectrum.Close()
	if err := gocv.DFT(floatMat, &spectrum, gocv.DftComplexOutput); err != nil {
		return 0, fmt.Errorf("dft: %w", err)
	}

	planes := gocv.Split(spectrum)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()
	if len(planes) != 2 {
		return 0, fmt.Errorf("dft produced %d planes", len(planes))
	}

	mag := gocv.NewMat()
	defer mag.Close()
	if err := gocv.Magnitude(planes[0], planes[1], &mag); err != nil {
		return 0, fmt.Errorf("magnitude: %w", err)
	}

	data, err := mag.DataPtrFloat32()
	if err != nil {
		return 0, fmt.Errorf("read magnitude: %w", err)
	}
	return bandRatio(data, mag.Rows(), mag.Cols()), nil
}

// bandRatio opera sobre o espectro centralizado (fftshift) sem copiá-lo:
// a posição centralizada (y, x) corresponde a ((y-h/2) mod h, (x-w/2) mod w)
func bandRatio(mag []float32, h, w int) float64 {
	if h == 0 || w == 0 || len(mag) < h*w {
		return 0
	}

	ch, cw := h/2, w/2
	inDC := func(y, x int) bool {
		return y >= max(ch-dcWindow, 0) && y < ch+dcWindow && x >= max(cw-dcWindow, 0) && x < cw+dcWindow
	}
	inBand := func(y, x int) bool {
		return y >= ch-h/4 && y < ch+h/4 && x >= cw-w/4 && x < cw+w/4
	}

	var band, total float64
	for y := 0; y < h; y++ {
		oy := ((y-ch)%h + h) % h
		for x := 0; x < w; x++ {
			if inDC(y, x) {
				continue
			}
			ox := ((x-cw)%w + w) % w
			v := float64(mag[oy*w+ox])
			if math.IsNaN(v) {
				continue
			}
			total += v
			if inBand(y, x) {
				band += v
			}
		}
	}

	if total <= 0 {
		return 0
	}
	return band / total
}

var _ provider.ArtifactAnalyzer = (*ArtifactAnalyzer)(nil)
