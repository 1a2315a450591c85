package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// DecodeImage decodes JPEG/PNG/GIF/BMP/TIFF bytes honouring EXIF orientation
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrInvalidImage.WithDetails(map[string]any{"reason": "empty image"})
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if img.Bounds().Empty() {
		return nil, domain.ErrInvalidImage.WithDetails(map[string]any{"reason": "empty image"})
	}
	return img, nil
}

// DecodeBase64Image accepts raw base64 or a data URL
func DecodeBase64Image(s string) (image.Image, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return DecodeImage(data)
}
