package rekognition

import (
	"context"
	"image"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

const providerName = "rekognition"

// COCO ids used by the device detector downstream
const (
	classLaptop    = 63
	classCellPhone = 67
)

// labelClasses maps Rekognition label names onto COCO class ids
var labelClasses = map[string]int{
	"mobile phone":    classCellPhone,
	"cell phone":      classCellPhone,
	"phone":           classCellPhone,
	"iphone":          classCellPhone,
	"laptop":          classLaptop,
	"tablet computer": classLaptop,
	"ipad":            classLaptop,
	"computer":        classLaptop,
}

// Provider is a remote FaceDetector and DeviceDetector backed by AWS Rekognition
type Provider struct {
	api         API
	config      Config
	auditLogger audit.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithAuditLogger sets the audit logger for the provider
func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

var (
	_ provider.FaceDetector   = (*Provider)(nil)
	_ provider.DeviceDetector = (*Provider)(nil)
)

// NewProvider wraps an API client; use NewAPI for the real one
func NewProvider(api API, cfg Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		api:    api,
		config: cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// logAudit is fire-and-forget
func (p *Provider) logAudit(ctx context.Context, eventType audit.EventType, success bool, err error, metadata map[string]string) {
	if p.auditLogger == nil {
		return
	}

	event := audit.Event{
		EventType: eventType,
		Provider:  providerName,
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	_ = p.auditLogger.Log(ctx, event)
}

// DetectFaces returns every face in the image. No face is an empty slice.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	data, err := encodeImage(img)
	if err != nil {
		p.logAudit(ctx, audit.EventFacesDetected, false, err, nil)
		return nil, err
	}

	output, err := p.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: data},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		err = translateError("detect faces", err)
		p.logAudit(ctx, audit.EventFacesDetected, false, err, map[string]string{
			"image_size": strconv.Itoa(len(data)),
		})
		return nil, err
	}

	bounds := img.Bounds()
	faces := make([]provider.RawFace, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		faces = append(faces, provider.RawFace{
			Box:        toPixels(detail.BoundingBox, bounds),
			Confidence: percent(detail.Confidence),
		})
	}

	p.logAudit(ctx, audit.EventFacesDetected, true, nil, map[string]string{
		"faces_count": strconv.Itoa(len(faces)),
	})

	return faces, nil
}

// Load is a no-op; credentials are checked on the first call
func (p *Provider) Load(ctx context.Context) error {
	return nil
}

// DetectObjects returns phone and laptop/tablet instances from DetectLabels.
// Labels without instances carry no box and are skipped.
func (p *Provider) DetectObjects(ctx context.Context, img image.Image) ([]provider.DetectedObject, error) {
	data, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	input := &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: data},
		MinConfidence: aws.Float32(p.config.MinConfidence),
	}
	if p.config.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(p.config.MaxLabels)
	}

	output, err := p.api.DetectLabels(ctx, input)
	if err != nil {
		err = translateError("detect labels", err)
		p.logAudit(ctx, audit.EventDevicesDetected, false, err, nil)
		return nil, err
	}

	bounds := img.Bounds()
	var objects []provider.DetectedObject
	for _, label := range output.Labels {
		name := strings.ToLower(aws.ToString(label.Name))
		class, ok := labelClasses[name]
		if !ok {
			continue
		}
		for _, inst := range label.Instances {
			if inst.BoundingBox == nil {
				continue
			}
			objects = append(objects, provider.DetectedObject{
				Box:        toPixels(inst.BoundingBox, bounds),
				ClassID:    class,
				Label:      aws.ToString(label.Name),
				Confidence: percent(inst.Confidence),
			})
		}
	}

	p.logAudit(ctx, audit.EventDevicesDetected, true, nil, map[string]string{
		"devices_count": strconv.Itoa(len(objects)),
	})

	return objects, nil
}

// toPixels converts Rekognition's ratio box into frame coordinates
func toPixels(box *types.BoundingBox, bounds image.Rectangle) image.Rectangle {
	w := float32(bounds.Dx())
	h := float32(bounds.Dy())

	left := aws.ToFloat32(box.Left) * w
	top := aws.ToFloat32(box.Top) * h
	width := aws.ToFloat32(box.Width) * w
	height := aws.ToFloat32(box.Height) * h

	r := image.Rect(int(left), int(top), int(left+width), int(top+height))
	return r.Add(bounds.Min).Intersect(bounds)
}

func percent(v *float32) float64 {
	return float64(aws.ToFloat32(v)) / 100
}
