package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
	"github.com/saturnino-fabrica-de-software/vigia/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
)

// ErrSourceExhausted is returned by Run when every connect attempt failed
var ErrSourceExhausted = errors.New("stream source exhausted reconnect attempts")

// Strategy selects the anti-spoofing pipeline run on each processed frame
type Strategy string

const (
	// StrategyDevice flags faces shown on a phone or tablet screen
	StrategyDevice Strategy = "device"
	// StrategyLiveness runs passive liveness on the whole frame before matching
	StrategyLiveness Strategy = "liveness"
)

func (s Strategy) Valid() bool {
	return s == StrategyDevice || s == StrategyLiveness
}

const (
	snapshotPrefixWebcam  = "webcam"
	snapshotPrefixSpoofed = "spoofed"
	livenessSpoofReason   = "Liveness check failed"
)

// Settings are the processor-wide constants shared by every source
type Settings struct {
	Strategy           Strategy
	OpenTimeout        time.Duration
	MaxConnectAttempts int
	EventCooldown      time.Duration
	AttendanceCooldown time.Duration
	SpoofPenalty       time.Duration
	OverlapRatio       float64
	EMAAlpha           float64
	FrameErrorDelay    time.Duration
	PenaltyLogInterval time.Duration
	DefaultFPS         float64
}

// DefaultSettings returns the production constants
func DefaultSettings() Settings {
	return Settings{
		Strategy:           StrategyDevice,
		OpenTimeout:        5 * time.Second,
		MaxConnectAttempts: 3,
		EventCooldown:      30 * time.Second,
		AttendanceCooldown: 300 * time.Second,
		SpoofPenalty:       60 * time.Second,
		OverlapRatio:       0.85,
		EMAAlpha:           0.3,
		FrameErrorDelay:    time.Second,
		PenaltyLogInterval: 10 * time.Second,
		DefaultFPS:         30,
	}
}

// Deps are the collaborators of a processor. Devices, Liveness, Snapshots
// and Attendance are optional.
type Deps struct {
	Engine     *recognition.Engine
	Devices    DeviceFinder
	Liveness   recognition.LivenessChecker
	Opener     SourceOpener
	Events     EventSink
	Snapshots  SnapshotStore
	Attendance AttendanceLog
	Clock      func() time.Time
}

// Processor runs the connect / stream / reconnect loop of one camera source
type Processor struct {
	source   SourceConfig
	settings Settings
	deps     Deps
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.RWMutex
	state       State
	running     bool
	active      Target
	distanceEMA *float64

	// owned by the Run goroutine
	lastEvent      map[string]time.Time
	lastAttendance map[string]time.Time
	penaltyUntil   map[string]time.Time
	penaltyLogged  map[string]time.Time
	distance       *recognition.EMA
	livenessOff    bool
}

func NewProcessor(source SourceConfig, settings Settings, deps Deps, logger *slog.Logger) (*Processor, error) {
	if err := source.validate(); err != nil {
		return nil, err
	}
	if deps.Engine == nil || deps.Opener == nil || deps.Events == nil {
		return nil, fmt.Errorf("source %s: engine, opener and event sink are required", source.Name)
	}
	if !settings.Strategy.Valid() {
		return nil, fmt.Errorf("source %s: unknown anti-spoof strategy %q", source.Name, settings.Strategy)
	}
	if settings.Strategy == StrategyLiveness && deps.Liveness == nil {
		return nil, fmt.Errorf("source %s: liveness strategy needs a liveness checker", source.Name)
	}
	if source.FPSLimit <= 0 {
		source.FPSLimit = 5
	}
	if settings.MaxConnectAttempts <= 0 {
		settings.MaxConnectAttempts = 1
	}
	if settings.DefaultFPS <= 0 {
		settings.DefaultFPS = 30
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	p := &Processor{
		source:   source,
		settings: settings,
		deps:     deps,
		now:      now,
		logger: logger.With(
			slog.String("component", "stream"),
			slog.String("source", source.Name),
		),
		active: source.primary(),
	}
	p.reset()
	return p, nil
}

func (p *Processor) reset() {
	p.lastEvent = make(map[string]time.Time)
	p.lastAttendance = make(map[string]time.Time)
	p.penaltyUntil = make(map[string]time.Time)
	p.penaltyLogged = make(map[string]time.Time)
	p.distance = recognition.NewEMA(p.settings.EMAAlpha)
	p.livenessOff = false

	p.mu.Lock()
	p.distanceEMA = nil
	p.mu.Unlock()
}

func (p *Processor) Name() string {
	return p.source.Name
}

func (p *Processor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Processor) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Name:         p.source.Name,
		Running:      p.running,
		CameraID:     p.active.CameraID,
		Location:     p.active.Location,
		State:        p.state,
		ActiveSource: p.active.Label,
		DistanceEMA:  p.distanceEMA,
	}
}

func (p *Processor) setDistance(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.distanceEMA = &v
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Processor) setActive(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = t
}

// Run blocks until ctx is cancelled (nil) or the connect attempts run out
// (ErrSourceExhausted). Runtime maps start empty on every call.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("source %s is already running", p.source.Name)
	}
	p.running = true
	p.state = StateDisconnected
	p.mu.Unlock()

	p.reset()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.state = StateStopped
		p.mu.Unlock()
		p.logger.Info("stream processor stopped")
	}()

	p.logger.Info("stream processor started",
		slog.String("camera_id", p.source.CameraID),
		slog.String("strategy", string(p.settings.Strategy)),
	)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		p.setState(StateConnecting)
		src, target, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempts++
			if attempts >= p.settings.MaxConnectAttempts {
				p.logger.Error("failed to connect, giving up",
					slog.Int("attempts", attempts),
					slog.String("error", err.Error()),
				)
				return ErrSourceExhausted
			}

			p.setState(StateDisconnected)
			p.logger.Warn("failed to connect, retrying",
				slog.Int("attempt", attempts),
				slog.Int("max_attempts", p.settings.MaxConnectAttempts),
				slog.Duration("delay", p.source.ReconnectDelay),
				slog.String("error", err.Error()),
			)
			if !sleep(ctx, p.source.ReconnectDelay) {
				return nil
			}
			continue
		}

		attempts = 0
		p.setActive(target)
		p.setState(StateStreaming)
		p.logger.Info("connected", slog.String("target", target.String()), slog.String("camera_id", target.CameraID))

		err = p.stream(ctx, src, target)
		if cerr := src.Close(); cerr != nil {
			p.logger.Warn("failed to close source", slog.String("error", cerr.Error()))
		}

		if ctx.Err() != nil {
			return nil
		}

		p.setState(StateDisconnected)
		p.logger.Warn("stream disconnected, reconnecting",
			slog.Duration("delay", p.source.ReconnectDelay),
			slog.Any("error", err),
		)
		if !sleep(ctx, p.source.ReconnectDelay) {
			return nil
		}
	}
}

// connect tenta a URL primária e, se falhar, o dispositivo local de fallback
func (p *Processor) connect(ctx context.Context) (FrameSource, Target, error) {
	var errs []error

	if url := p.source.StreamURL(); url != "" {
		t := p.source.primary()
		src, err := p.open(ctx, t)
		if err == nil {
			return src, t, nil
		}
		errs = append(errs, err)
	}

	if p.source.FallbackEnabled && ctx.Err() == nil {
		t := p.source.fallback()
		p.logger.Info("trying fallback camera", slog.Int("device", t.Device))
		src, err := p.open(ctx, t)
		if err == nil {
			return src, t, nil
		}
		errs = append(errs, err)
	}

	return nil, Target{}, errors.Join(errs...)
}

func (p *Processor) open(ctx context.Context, t Target) (FrameSource, error) {
	openCtx := ctx
	if p.settings.OpenTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, p.settings.OpenTimeout)
		defer cancel()
	}

	src, err := p.deps.Opener.Open(openCtx, t)
	if err != nil {
		return nil, err
	}

	// leitura de teste: câmera aberta mas sem frames conta como falha
	frame, err := src.Read()
	if err != nil || frame == nil || frame.Bounds().Empty() {
		_ = src.Close()
		if err == nil {
			err = errors.New("empty test frame")
		}
		return nil, fmt.Errorf("test read on %s: %w", t, err)
	}
	p.logger.Debug("test frame read", slog.Int("width", frame.Bounds().Dx()), slog.Int("height", frame.Bounds().Dy()))
	return src, nil
}

func (p *Processor) frameSkip(src FrameSource) int {
	fps := src.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = p.settings.DefaultFPS
	}
	return max(1, int(fps/float64(p.source.FPSLimit)))
}

func (p *Processor) stream(ctx context.Context, src FrameSource, target Target) error {
	skip := p.frameSkip(src)
	p.logger.Debug("streaming", slog.Int("frame_skip", skip))

	for count := 1; ; count++ {
		if ctx.Err() != nil {
			return nil
		}

		if count%skip != 0 {
			if err := src.Grab(); err != nil {
				return fmt.Errorf("grab frame: %w", err)
			}
			continue
		}

		frame, err := src.Read()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		if err := p.safeProcess(ctx, frame, target); err != nil {
			p.logger.Error("frame processing failed", slog.String("error", err.Error()))
			if !sleep(ctx, p.settings.FrameErrorDelay) {
				return nil
			}
		}
	}
}

func (p *Processor) safeProcess(ctx context.Context, frame image.Image, target Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.ProcessFrame(ctx, frame, target)
}

// ProcessFrame runs the per-frame pipeline of the configured strategy. It is
// called from the Run goroutine; tests call it directly.
func (p *Processor) ProcessFrame(ctx context.Context, frame image.Image, target Target) error {
	engine := p.deps.Engine

	faces, err := engine.Detector().Detect(ctx, frame)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		return nil
	}

	if d, ok := engine.EstimateDistance(faces[0].Box.Width); ok {
		smoothed := p.distance.Update(d)
		p.setDistance(smoothed)
		if engine.Config().DistanceGating && !engine.WithinRange(d) {
			p.logger.Debug("first face outside distance band",
				slog.Float64("distance_m", d),
				slog.Float64("smoothed_m", smoothed),
			)
			return nil
		}
	}

	if engine.Gallery().Empty() {
		p.logger.Warn("gallery is empty, nothing to match")
		return nil
	}

	if p.settings.Strategy == StrategyLiveness {
		return p.processLiveness(ctx, frame, faces, target)
	}
	return p.processDevice(ctx, frame, faces, target)
}

func (p *Processor) processDevice(ctx context.Context, frame image.Image, faces []domain.DetectedFace, target Target) error {
	var devices []image.Rectangle
	if p.deps.Devices != nil {
		devices = p.deps.Devices.Detect(ctx, frame)
	}

	bounds := frame.Bounds()
	for _, face := range faces {
		id, err := p.deps.Engine.MatchFace(ctx, face, true)
		if err != nil {
			return err
		}
		if !id.Known() {
			continue
		}

		now := p.now()
		if p.penalised(id.PersonID, now) {
			continue
		}

		faceRect := recognition.UnrotateBox(face.Box.Rect(), face.Rotation, bounds.Dx(), bounds.Dy())
		if enclosed, overlap := liveness.MostEnclosing(faceRect, devices, p.settings.OverlapRatio); enclosed {
			p.flagDeviceSpoof(ctx, frame, id, overlap, now, target)
			continue
		}

		p.emitIdentification(ctx, frame, id, nil, now, target)
	}
	return nil
}

// processLiveness emits one spoofing event per failed frame. When the model is
// unavailable the frame is matched without a liveness score.
func (p *Processor) processLiveness(ctx context.Context, frame image.Image, faces []domain.DetectedFace, target Target) error {
	if !recognition.LivenessAvailable(p.deps.Liveness) {
		p.livenessDisabled()
		return p.matchAll(ctx, frame, faces, nil, target)
	}

	lr := p.deps.Liveness.Check(ctx, frame)
	now := p.now()

	if !lr.IsLive && !recognition.LivenessAvailable(p.deps.Liveness) {
		p.livenessDisabled()
		return p.matchAll(ctx, frame, faces, nil, target)
	}

	if !lr.IsLive {
		p.logger.Warn("spoofing detected by liveness",
			slog.Float64("confidence", lr.Confidence),
			slog.Float64("threshold", lr.Threshold),
			slog.String("model", lr.Model),
			slog.String("error", lr.Error),
		)

		score := lr.Confidence
		p.emit(ctx, &domain.DetectionEvent{
			CameraID:         target.CameraID,
			Location:         target.Location,
			SnapshotPath:     p.snapshot(frame, domain.SnapshotSpoofing, snapshotPrefixSpoofed, "", target.CameraID),
			IsUnknown:        true,
			Timestamp:        now,
			RequestSource:    domain.RequestSourceWebcam,
			SpoofingDetected: true,
			SpoofingReason:   livenessSpoofReason,
			SpoofingType:     domain.SpoofTypePrintOrScreen,
			LivenessScore:    &score,
		})
		return nil
	}

	return p.matchAll(ctx, frame, faces, &lr, target)
}

func (p *Processor) matchAll(ctx context.Context, frame image.Image, faces []domain.DetectedFace, lr *domain.LivenessResult, target Target) error {
	var score *float64
	if lr != nil {
		score = &lr.Confidence
	}
	for _, face := range faces {
		id, err := p.deps.Engine.MatchFace(ctx, face, true)
		if err != nil {
			return err
		}
		if !id.Known() {
			continue
		}
		id.Liveness = lr
		p.emitIdentification(ctx, frame, id, score, p.now(), target)
	}
	return nil
}

func (p *Processor) livenessDisabled() {
	if p.livenessOff {
		return
	}
	p.livenessOff = true
	p.logger.Warn("liveness model unavailable, continuing without liveness check",
		slog.String("reason", p.deps.Liveness.Status().Reason),
	)
}

// penalised reports whether personID is still blocked, clearing expired entries
func (p *Processor) penalised(personID string, now time.Time) bool {
	until, ok := p.penaltyUntil[personID]
	if !ok {
		return false
	}
	if now.Before(until) {
		if last, logged := p.penaltyLogged[personID]; !logged || now.Sub(last) >= p.settings.PenaltyLogInterval {
			p.penaltyLogged[personID] = now
			p.logger.Info("identification suppressed by spoof penalty",
				slog.String("person_id", personID),
				slog.Duration("remaining", until.Sub(now)),
			)
		}
		return true
	}
	delete(p.penaltyUntil, personID)
	delete(p.penaltyLogged, personID)
	return false
}

func (p *Processor) flagDeviceSpoof(ctx context.Context, frame image.Image, id *domain.Identification, overlap float64, now time.Time, target Target) {
	p.penaltyUntil[id.PersonID] = now.Add(p.settings.SpoofPenalty)

	p.logger.Warn("face shown on a mobile device",
		slog.String("person_id", id.PersonID),
		slog.Float64("overlap", overlap),
		slog.Duration("penalty", p.settings.SpoofPenalty),
	)

	personID := id.PersonID
	distance := id.EmbeddingDistance
	p.emit(ctx, &domain.DetectionEvent{
		PersonID:          &personID,
		PersonName:        id.Name,
		CameraID:          target.CameraID,
		Location:          target.Location,
		Confidence:        id.Similarity,
		EmbeddingDistance: &distance,
		SnapshotPath:      p.snapshot(frame, domain.SnapshotSpoofing, snapshotPrefixSpoofed, personID, target.CameraID),
		BoundingBox:       id.Box,
		Timestamp:         now,
		RequestSource:     domain.RequestSourceWebcam,
		SpoofingDetected:  true,
		SpoofingReason:    fmt.Sprintf("Face enclosed by mobile device (overlap %.2f)", overlap),
		SpoofingType:      domain.SpoofTypeMobileDisplay,
	})
}

func (p *Processor) emitIdentification(ctx context.Context, frame image.Image, id *domain.Identification, livenessScore *float64, now time.Time, target Target) {
	if !p.cooldownElapsed(p.lastEvent, id.PersonID, p.settings.EventCooldown, now) {
		return
	}

	personID := id.PersonID
	distance := id.EmbeddingDistance
	snapshot := p.snapshot(frame, domain.SnapshotEvents, snapshotPrefixWebcam, personID, target.CameraID)

	if p.deps.Attendance != nil && p.cooldownElapsed(p.lastAttendance, personID, p.settings.AttendanceCooldown, now) {
		if err := p.deps.Attendance.Append(now, personID, id.Name, id.Similarity); err != nil {
			p.logger.Error("failed to write attendance", slog.String("person_id", personID), slog.String("error", err.Error()))
		}
	}

	p.logger.Info("person identified",
		slog.String("person_id", personID),
		slog.String("name", id.Name),
		slog.Float64("confidence", id.Similarity),
		slog.String("camera_id", target.CameraID),
	)

	p.emit(ctx, &domain.DetectionEvent{
		PersonID:          &personID,
		PersonName:        id.Name,
		CameraID:          target.CameraID,
		Location:          target.Location,
		Confidence:        id.Similarity,
		EmbeddingDistance: &distance,
		SnapshotPath:      snapshot,
		BoundingBox:       id.Box,
		Timestamp:         now,
		RequestSource:     domain.RequestSourceWebcam,
		LivenessScore:     livenessScore,
	})
}

// cooldownElapsed registra now quando a janela expirou
func (p *Processor) cooldownElapsed(last map[string]time.Time, key string, window time.Duration, now time.Time) bool {
	if t, ok := last[key]; ok && now.Sub(t) <= window {
		return false
	}
	last[key] = now
	return true
}

func (p *Processor) snapshot(frame image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) string {
	if p.deps.Snapshots == nil {
		return ""
	}
	ref, err := p.deps.Snapshots.Save(frame, category, prefix, personID, cameraID)
	if err != nil {
		p.logger.Error("failed to save snapshot",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return ref
}

func (p *Processor) emit(ctx context.Context, event *domain.DetectionEvent) {
	if err := p.deps.Events.Append(ctx, event); err != nil {
		p.logger.Error("failed to append detection event",
			slog.Bool("spoofing", event.SpoofingDetected),
			slog.String("error", err.Error()),
		)
	}
}

// sleep devolve false se ctx foi cancelado antes de d
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
