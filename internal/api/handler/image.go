package handler

import (
	"errors"
	"image"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

// readImage accepts a multipart "image" file or a base64 "image_b64" field
func readImage(c *fiber.Ctx) (image.Image, error) {
	if file, err := c.FormFile("image"); err == nil {
		return decodeFile(file)
	}

	if b64 := strings.TrimSpace(c.FormValue("image_b64")); b64 != "" {
		if len(b64) > maxImageSize*4/3+4 {
			return nil, domain.ErrInvalidImage.WithDetails(map[string]any{"reason": "image too large"})
		}
		return service.DecodeBase64Image(b64)
	}

	return nil, domain.ErrValidationFailed.WithError(errors.New("image or image_b64 is required"))
}

// readImages decodes every "image" file of a multipart form. Undecodable
// files are counted and skipped; the service decides whether enough remain.
func readImages(c *fiber.Ctx) ([]image.Image, int, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, 0, domain.ErrValidationFailed.WithError(err)
	}

	files := form.File["image"]
	if len(files) == 0 {
		files = form.File["images"]
	}
	if len(files) == 0 {
		return nil, 0, domain.ErrValidationFailed.WithError(errors.New("at least one image is required"))
	}

	images := make([]image.Image, 0, len(files))
	skipped := 0
	for _, file := range files {
		img, err := decodeFile(file)
		if err != nil {
			skipped++
			continue
		}
		images = append(images, img)
	}

	return images, skipped, nil
}

func decodeFile(file *multipart.FileHeader) (image.Image, error) {
	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithDetails(map[string]any{"reason": "empty image"})
	}
	if file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithDetails(map[string]any{"reason": "image too large"})
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return service.DecodeImage(data)
}
