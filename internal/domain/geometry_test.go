package domain

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaceBox_RoundTripRect(t *testing.T) {
	r := image.Rect(10, 20, 110, 140)
	b := NewFaceBox(r, 0.9)

	assert.Equal(t, FaceBox{X: 10, Y: 20, Width: 100, Height: 120, Confidence: 0.9}, b)
	assert.Equal(t, r, b.Rect())
	assert.Equal(t, 12000, b.Area())
}

func TestFaceBox_AreaOfDegenerateBox(t *testing.T) {
	assert.Equal(t, 0, FaceBox{Width: -5, Height: 10}.Area())
	assert.Equal(t, 0, FaceBox{Width: 5}.Area())
}
