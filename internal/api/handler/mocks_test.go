package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
	"github.com/saturnino-fabrica-de-software/vigia/internal/webhook"
)

type MockIdentifyService struct {
	mock.Mock
}

func (m *MockIdentifyService) Identify(ctx context.Context, req service.IdentifyRequest) (*service.IdentifyResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IdentifyResponse), args.Error(1)
}

type MockEnrollService struct {
	mock.Mock
}

func (m *MockEnrollService) Enroll(ctx context.Context, req service.EnrollRequest) (*service.EnrollResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EnrollResponse), args.Error(1)
}

func (m *MockEnrollService) EnrollFromURLs(ctx context.Context, req service.EnrollURLRequest) (*service.EnrollResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EnrollResponse), args.Error(1)
}

type MockPersonService struct {
	mock.Mock
}

func (m *MockPersonService) Get(ctx context.Context, personID string) (*domain.Person, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *MockPersonService) List(ctx context.Context, activeOnly bool) ([]domain.Person, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Person), args.Error(1)
}

func (m *MockPersonService) Deactivate(ctx context.Context, personID string) error {
	args := m.Called(ctx, personID)
	return args.Error(0)
}

type MockSystemService struct {
	mock.Mock
}

func (m *MockSystemService) Health(ctx context.Context) service.HealthReport {
	args := m.Called(ctx)
	return args.Get(0).(service.HealthReport)
}

func (m *MockSystemService) Status(ctx context.Context) (*service.SystemStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SystemStatus), args.Error(1)
}

func (m *MockSystemService) Threshold() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

func (m *MockSystemService) SetThreshold(ctx context.Context, v float64) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockSystemService) ReloadGallery(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSystemService) CleanupSnapshots(maxAgeDays int) (int, error) {
	args := m.Called(maxAgeDays)
	return args.Int(0), args.Error(1)
}

func (m *MockSystemService) Events(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DetectionEvent), args.Error(1)
}

func (m *MockSystemService) LatestEvent(ctx context.Context, filter domain.EventFilter) (*domain.DetectionEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DetectionEvent), args.Error(1)
}

func (m *MockSystemService) Streams() map[string]stream.Status {
	args := m.Called()
	return args.Get(0).(map[string]stream.Status)
}

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) List(ctx context.Context) ([]*webhook.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*webhook.Webhook), args.Error(1)
}

func (m *MockWebhookService) Create(ctx context.Context, w *webhook.Webhook) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWebhookService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type formFile struct {
	field string
	name  string
	data  []byte
}

// multipartRequest builds a multipart POST with plain fields and files
func multipartRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
