package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
)

var ErrReadFrame = errors.New("failed to read frame from video stream")

// CaptureOpener opens network streams and local devices through VideoCapture
type CaptureOpener struct{}

func NewCaptureOpener() *CaptureOpener {
	return &CaptureOpener{}
}

// Open honours ctx for the open call only; VideoCapture itself cannot be
// cancelled, so a late success is closed in the background.
func (o *CaptureOpener) Open(ctx context.Context, target stream.Target) (stream.FrameSource, error) {
	type result struct {
		vc  *gocv.VideoCapture
		err error
	}
	done := make(chan result, 1)

	go func() {
		var (
			vc  *gocv.VideoCapture
			err error
		)
		if target.Local {
			vc, err = gocv.OpenVideoCapture(target.Device)
		} else {
			vc, err = gocv.OpenVideoCapture(target.URL)
		}
		done <- result{vc: vc, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				r.vc.Close()
			}
		}()
		return nil, fmt.Errorf("open %s: %w", target, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("open %s: %w", target, r.err)
		}
		if !r.vc.IsOpened() {
			r.vc.Close()
			return nil, fmt.Errorf("open %s: video capture is not opened", target)
		}
		r.vc.Set(gocv.VideoCaptureBufferSize, 1)
		return &Capture{vc: r.vc, frame: gocv.NewMat()}, nil
	}
}

// Capture is a FrameSource over a gocv VideoCapture
type Capture struct {
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
}

func (c *Capture) Read() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.vc.Read(&c.frame) || c.frame.Empty() {
		return nil, ErrReadFrame
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Grab avança um frame sem decodificar
func (c *Capture) Grab() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vc.Grab(1)
	return nil
}

func (c *Capture) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc.Get(gocv.VideoCaptureFPS)
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Close()
	return c.vc.Close()
}

var _ stream.SourceOpener = (*CaptureOpener)(nil)
