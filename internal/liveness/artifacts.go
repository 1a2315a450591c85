package liveness

import (
	"math"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// pesos do score de artefatos de tela; somam 1.0
const (
	weightFrequency = 0.25
	weightLighting  = 0.15
	weightEdges     = 0.15
	weightTexture   = 0.25
	weightColor     = 0.20
)

// ScoreArtifacts combines the raw frame measurements into a [0,1] score where
// higher means the frame more likely came from a screen. It is a heuristic and
// produces false positives on clean, evenly lit real faces.
func ScoreArtifacts(f provider.ArtifactFeatures) float64 {
	score := math.Min(finite(f.FreqRatio)*2, 1)*weightFrequency +
		lightingUniformity(f.GrayMean, f.GrayStd)*weightLighting +
		math.Min(finite(f.EdgeDensity)*5, 1)*weightEdges +
		textureSmoothness(f.LaplacianVariance)*weightTexture +
		colorUniformity(f.ChannelStd)*weightColor

	return clamp01(score)
}

func lightingUniformity(mean, std float64) float64 {
	mean, std = finite(mean), finite(std)
	if mean <= 0 {
		return 0
	}
	return 1 - math.Min(std/mean, 1)
}

func textureSmoothness(variance float64) float64 {
	if math.IsNaN(variance) {
		return 0
	}
	switch {
	case variance < 100:
		return 0.8
	case variance < 300:
		return 0.5
	default:
		return 0.1
	}
}

func colorUniformity(std float64) float64 {
	if math.IsNaN(std) {
		return 0
	}
	switch {
	case std < 15:
		return 0.7
	case std < 25:
		return 0.4
	default:
		return 0.1
	}
}

// finite zera NaN e clampa negativos/infinitos
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, -1) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
