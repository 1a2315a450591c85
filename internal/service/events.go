package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// Publisher receives every stored event; implementations must not block
type Publisher interface {
	Publish(ctx context.Context, event *domain.DetectionEvent)
}

// EventBus stores detection events and fans them out to publishers. It is the
// event sink of both the request path and the stream processors.
type EventBus struct {
	repo        EventRepositoryInterface
	publishers  []Publisher
	auditLogger audit.Logger
	logger      *slog.Logger
}

func NewEventBus(repo EventRepositoryInterface, auditLogger audit.Logger, logger *slog.Logger, publishers ...Publisher) *EventBus {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &EventBus{
		repo:        repo,
		publishers:  publishers,
		auditLogger: auditLogger,
		logger:      logger.With("component", "event_bus"),
	}
}

// Append persists the event first; publishers only see events that have an id
func (b *EventBus) Append(ctx context.Context, event *domain.DetectionEvent) error {
	if err := b.repo.Append(ctx, event); err != nil {
		return fmt.Errorf("store event: %w", err)
	}

	for _, p := range b.publishers {
		p.Publish(ctx, event)
	}

	b.audit(ctx, event)
	return nil
}

func (b *EventBus) audit(ctx context.Context, event *domain.DetectionEvent) {
	var e audit.Event
	switch {
	case event.SpoofingDetected:
		e = audit.Event{
			EventType: audit.EventSpoofingDetected,
			Success:   true,
			Metadata: map[string]string{
				"spoofing_type":   event.SpoofingType,
				"spoofing_reason": event.SpoofingReason,
			},
		}
	case !event.IsUnknown && event.PersonID != nil:
		e = audit.Event{
			EventType: audit.EventFaceIdentified,
			PersonID:  *event.PersonID,
			Success:   true,
			Metadata: map[string]string{
				"confidence": strconv.FormatFloat(event.Confidence, 'f', 4, 64),
			},
		}
	default:
		return
	}

	e.CameraID = event.CameraID
	e.IPAddress = event.ClientIP
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata["request_source"] = event.RequestSource
	e.Metadata["event_id"] = strconv.FormatInt(event.ID, 10)

	if err := b.auditLogger.Log(ctx, e); err != nil {
		b.logger.Warn("failed to write audit event", slog.String("error", err.Error()))
	}
}
