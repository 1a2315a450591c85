package webhook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const defaultQueueSize = 256

// Dispatcher fans stored detection events out to subscribed webhooks. Publish
// never blocks; events are dropped when the queue is full.
type Dispatcher struct {
	service *Service
	queue   chan EventPayload
	workers int
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewDispatcher(service *Service, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		service: service,
		queue:   make(chan EventPayload, defaultQueueSize),
		workers: workers,
		logger:  logger.With("component", "webhook_dispatcher"),
	}
}

func (d *Dispatcher) Publish(_ context.Context, event *domain.DetectionEvent) {
	payload := EventPayload{
		ID:        uuid.New(),
		Type:      event.Type(),
		Data:      event,
		Timestamp: event.Timestamp,
	}

	select {
	case d.queue <- payload:
	default:
		d.logger.Warn("webhook queue full, dropping event",
			slog.String("type", payload.Type),
			slog.Int64("event_id", event.ID),
		)
	}
}

// Run starts the delivery goroutines and blocks until ctx is cancelled and
// they have returned.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-d.queue:
					d.dispatch(ctx, payload)
				}
			}
		}()
	}
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, payload EventPayload) {
	hooks, err := d.service.ListByEvent(ctx, payload.Type)
	if err != nil {
		d.logger.Error("failed to list webhooks", slog.String("error", err.Error()))
		return
	}

	for _, h := range hooks {
		if err := d.service.Send(ctx, h, payload); err != nil {
			d.logger.Error("webhook delivery failed",
				slog.String("webhook_id", h.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
