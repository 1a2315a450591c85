package recognition

// EstimateDistance uses the pinhole model: distance = realWidth * focalLength / pixelWidth.
// It returns false when the width or the constants are not positive.
func EstimateDistance(realFaceWidthM, focalLengthPx float64, widthPx int) (float64, bool) {
	if widthPx <= 0 || realFaceWidthM <= 0 || focalLengthPx <= 0 {
		return 0, false
	}
	return realFaceWidthM * focalLengthPx / float64(widthPx), true
}

// EMA is an exponential moving average; the first sample seeds it
type EMA struct {
	alpha  float64
	value  float64
	seeded bool
}

func NewEMA(alpha float64) *EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &EMA{alpha: alpha}
}

// Update folds a new sample in and returns the smoothed value
func (e *EMA) Update(sample float64) float64 {
	if !e.seeded {
		e.value = sample
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current estimate and whether any sample was seen
func (e *EMA) Value() (float64, bool) {
	return e.value, e.seeded
}

func (e *EMA) Reset() {
	e.value = 0
	e.seeded = false
}
