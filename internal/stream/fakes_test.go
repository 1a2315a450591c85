package stream

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidFrame(w, h int, r uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: r, G: 10, B: 10, A: 255})
		}
	}
	return img
}

var faceBox = image.Rect(100, 100, 220, 220)

type staticDetector struct {
	faces []provider.RawFace
	panic bool
}

func (d staticDetector) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	if d.panic {
		panic("detector exploded")
	}
	return d.faces, nil
}

// redEmbedder devolve o vetor associado ao canal vermelho do primeiro pixel do recorte
type redEmbedder map[uint8][]float64

func (e redEmbedder) Embed(ctx context.Context, crop image.Image) ([]float64, error) {
	b := crop.Bounds()
	r, _, _, _ := crop.At(b.Min.X, b.Min.Y).RGBA()
	return e[uint8(r>>8)], nil
}

func (e redEmbedder) Dimension() int { return 2 }

type personList []domain.Person

func (l personList) ListActive(ctx context.Context) ([]domain.Person, error) {
	return l, nil
}

func newEngine(t *testing.T, det provider.FaceDetector, persons ...domain.Person) *recognition.Engine {
	t.Helper()
	logger := testLogger()

	g := recognition.NewGallery(logger)
	require.NoError(t, g.Load(context.Background(), personList(persons)))

	return recognition.NewEngine(
		recognition.NewDetector(det, recognition.DefaultDetectorConfig(), logger),
		recognition.NewEmbedder(redEmbedder{50: {1, 0}, 80: {0, 1}}, logger),
		g,
		recognition.DefaultEngineConfig(),
		logger,
	)
}

func bob() domain.Person {
	return domain.Person{PersonID: "P002", Name: "Bob", Embeddings: domain.SingleEmbedding(domain.Embedding{1, 0}), IsActive: true}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memSink struct {
	mu     sync.Mutex
	events []domain.DetectionEvent
}

func (s *memSink) Append(ctx context.Context, e *domain.DetectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *memSink) all() []domain.DetectionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DetectionEvent(nil), s.events...)
}

type savedSnapshot struct {
	category domain.SnapshotCategory
	prefix   string
	personID string
}

type memSnapshots struct {
	mu    sync.Mutex
	saved []savedSnapshot
}

func (s *memSnapshots) Save(img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedSnapshot{category: category, prefix: prefix, personID: personID})
	return string(category) + "/" + prefix + ".jpg", nil
}

type attendanceLine struct {
	at       time.Time
	personID string
}

type memAttendance struct {
	mu    sync.Mutex
	lines []attendanceLine
}

func (a *memAttendance) Append(at time.Time, personID, name string, confidence float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, attendanceLine{at: at, personID: personID})
	return nil
}

type fixedDevices struct {
	mu    sync.Mutex
	boxes []image.Rectangle
}

func (d *fixedDevices) Detect(ctx context.Context, frame image.Image) []image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.boxes
}

func (d *fixedDevices) set(boxes ...image.Rectangle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.boxes = boxes
}

type fixedLiveness struct {
	result domain.LivenessResult
	status provider.Status
	calls  int
}

func (f *fixedLiveness) Check(ctx context.Context, frame image.Image) domain.LivenessResult {
	f.calls++
	return f.result
}

func (f *fixedLiveness) Status() provider.Status {
	return f.status
}

// fakeSource devolve o mesmo frame até esgotar reads (0 = infinito)
type fakeSource struct {
	mu     sync.Mutex
	frame  image.Image
	fps    float64
	reads  int
	limit  int
	grabs  int
	closed bool
}

func (s *fakeSource) Read() (image.Image, error) {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && s.reads >= s.limit {
		return nil, errors.New("stream lost")
	}
	s.reads++
	return s.frame, nil
}

func (s *fakeSource) Grab() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabs++
	return nil
}

func (s *fakeSource) FPS() float64 { return s.fps }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeOpener serves sources per target label in order; a nil entry fails
type fakeOpener struct {
	mu      sync.Mutex
	sources map[string][]*fakeSource
	opens   map[string]int
}

func newOpener() *fakeOpener {
	return &fakeOpener{sources: make(map[string][]*fakeSource), opens: make(map[string]int)}
}

func (o *fakeOpener) add(label string, srcs ...*fakeSource) *fakeOpener {
	o.sources[label] = append(o.sources[label], srcs...)
	return o
}

func (o *fakeOpener) Open(ctx context.Context, t Target) (FrameSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := o.opens[t.Label]
	o.opens[t.Label]++

	list := o.sources[t.Label]
	if len(list) == 0 {
		return nil, errors.New("connection refused")
	}
	if n >= len(list) {
		n = len(list) - 1
	}
	if list[n] == nil {
		return nil, errors.New("connection refused")
	}
	return list[n], nil
}

func (o *fakeOpener) count(label string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[label]
}
