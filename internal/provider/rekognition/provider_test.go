package rekognition

import (
	"context"
	"image"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
)

// ptr is a helper function to get pointer to a value
func ptr[T any](v T) *T {
	return &v
}

func frame() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 200, 100))
}

func box(left, top, width, height float32) *types.BoundingBox {
	return &types.BoundingBox{Left: ptr(left), Top: ptr(top), Width: ptr(width), Height: ptr(height)}
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, float32(40), cfg.MinConfidence)
	assert.Equal(t, int32(25), cfg.MaxLabels)
}

func TestDetectFaces_Success(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			assert.NotEmpty(t, params.Image.Bytes)
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					{BoundingBox: box(0.1, 0.2, 0.3, 0.4), Confidence: ptr(float32(99.5))},
					{BoundingBox: box(0.5, 0.5, 0.2, 0.2), Confidence: ptr(float32(96.0))},
					{Confidence: ptr(float32(90.0))},
				},
			}, nil
		},
	}

	rec := &recordingAudit{}
	p := NewProvider(mock, DefaultConfig(), WithAuditLogger(rec))

	faces, err := p.DetectFaces(context.Background(), frame())

	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, image.Rect(20, 20, 80, 60), faces[0].Box)
	assert.InDelta(t, 0.995, faces[0].Confidence, 1e-6)
	assert.Equal(t, image.Rect(100, 50, 140, 70), faces[1].Box)

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.EventFacesDetected, rec.events[0].EventType)
	assert.True(t, rec.events[0].Success)
	assert.Equal(t, "2", rec.events[0].Metadata["faces_count"])
}

func TestDetectFaces_NoFaces(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{}}, nil
		},
	}

	faces, err := NewProvider(mock, DefaultConfig()).DetectFaces(context.Background(), frame())

	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestDetectFaces_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"access denied", &smithy.GenericAPIError{Code: errCodeAccessDenied, Message: "no"}, ErrInvalidCredentials},
		{"expired token", &smithy.GenericAPIError{Code: errCodeExpiredToken}, ErrInvalidCredentials},
		{"bad image", &smithy.GenericAPIError{Code: errCodeInvalidImageFormat, Message: "bad"}, ErrInvalidImage},
		{"throttled", &smithy.GenericAPIError{Code: errCodeThrottling}, ErrThrottled},
		{"other", assert.AnError, assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tt.err
				},
			}
			rec := &recordingAudit{}

			faces, err := NewProvider(mock, DefaultConfig(), WithAuditLogger(rec)).DetectFaces(context.Background(), frame())

			assert.Nil(t, faces)
			assert.ErrorIs(t, err, tt.wantErr)
			require.Len(t, rec.events, 1)
			assert.False(t, rec.events[0].Success)
		})
	}
}

func TestDetectFaces_InvalidImage(t *testing.T) {
	called := false
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			called = true
			return nil, nil
		},
	}

	_, err := NewProvider(mock, DefaultConfig()).DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)))

	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.False(t, called)
}

func TestDetectObjects(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectLabelsFunc: func(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
			assert.Equal(t, float32(40), *params.MinConfidence)
			assert.Equal(t, int32(25), *params.MaxLabels)
			return &rekognition.DetectLabelsOutput{
				Labels: []types.Label{
					{
						Name: ptr("Mobile Phone"),
						Instances: []types.Instance{
							{BoundingBox: box(0.25, 0.1, 0.5, 0.8), Confidence: ptr(float32(88))},
						},
					},
					{
						Name: ptr("Laptop"),
						Instances: []types.Instance{
							{BoundingBox: box(0, 0, 0.5, 0.5), Confidence: ptr(float32(60))},
							{Confidence: ptr(float32(60))},
						},
					},
					// sem instância não tem caixa
					{Name: ptr("Electronics"), Confidence: ptr(float32(99))},
					{
						Name:      ptr("Person"),
						Instances: []types.Instance{{BoundingBox: box(0, 0, 1, 1), Confidence: ptr(float32(99))}},
					},
				},
			}, nil
		},
	}

	objects, err := NewProvider(mock, DefaultConfig()).DetectObjects(context.Background(), frame())

	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, classCellPhone, objects[0].ClassID)
	assert.Equal(t, image.Rect(50, 10, 150, 90), objects[0].Box)
	assert.InDelta(t, 0.88, objects[0].Confidence, 1e-6)
	assert.Equal(t, "Mobile Phone", objects[0].Label)

	assert.Equal(t, classLaptop, objects[1].ClassID)
	assert.Equal(t, image.Rect(0, 0, 100, 50), objects[1].Box)
}

func TestDetectObjects_Error(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectLabelsFunc: func(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
			return nil, &smithy.GenericAPIError{Code: errCodeUnrecognizedClient}
		},
	}

	p := NewProvider(mock, DefaultConfig())
	require.NoError(t, p.Load(context.Background()))

	_, err := p.DetectObjects(context.Background(), frame())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestToPixels_ClampsToFrame(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	got := toPixels(box(-0.1, 0.9, 0.5, 0.5), bounds)
	assert.Equal(t, image.Rect(0, 90, 40, 100), got)
}

func TestIntegration_DetectFaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		t.Skip("AWS credentials not configured")
	}

	ctx := context.Background()
	api, err := NewAPI(ctx, DefaultConfig())
	require.NoError(t, err)

	faces, err := NewProvider(api, DefaultConfig()).DetectFaces(ctx, frame())
	require.NoError(t, err)
	assert.Empty(t, faces)
}
