package domain

import "image"

// FaceBox is a detection in pixel space of the (possibly rotated) frame it came from
type FaceBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

func NewFaceBox(r image.Rectangle, confidence float64) FaceBox {
	r = r.Canon()
	return FaceBox{
		X:          r.Min.X,
		Y:          r.Min.Y,
		Width:      r.Dx(),
		Height:     r.Dy(),
		Confidence: confidence,
	}
}

func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

func (b FaceBox) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// DetectedFace is one accepted detection with its crop
type DetectedFace struct {
	Crop     image.Image
	Box      FaceBox
	Rotation int
}
