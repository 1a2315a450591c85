package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventRepository stores detection events; rows are never updated
type EventRepository struct {
	pool PgxPool
}

func NewEventRepository(pool PgxPool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, person_id, person_name, camera_id, location, confidence, embedding_distance,
		snapshot_path, bounding_box, is_unknown, timestamp, client_ip, request_source,
		spoofing_detected, spoofing_reason, spoofing_type, liveness_score`

func (r *EventRepository) Append(ctx context.Context, event *domain.DetectionEvent) error {
	query := `
		INSERT INTO detection_events (
			person_id, person_name, camera_id, location, confidence, embedding_distance,
			snapshot_path, bounding_box, is_unknown, timestamp, client_ip, request_source,
			spoofing_detected, spoofing_reason, spoofing_type, liveness_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	var box []byte
	if event.BoundingBox != nil {
		var err error
		box, err = json.Marshal(event.BoundingBox)
		if err != nil {
			return fmt.Errorf("encode bounding box: %w", err)
		}
	}

	source := event.RequestSource
	if source == "" {
		source = domain.RequestSourceAPI
	}

	err := r.pool.QueryRow(ctx, query,
		event.PersonID,
		event.PersonName,
		event.CameraID,
		event.Location,
		event.Confidence,
		event.EmbeddingDistance,
		event.SnapshotPath,
		box,
		event.IsUnknown,
		event.Timestamp,
		event.ClientIP,
		source,
		event.SpoofingDetected,
		event.SpoofingReason,
		event.SpoofingType,
		event.LivenessScore,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append detection event: %w", err)
	}

	event.RequestSource = source
	return nil
}

// List returns events newest first
func (r *EventRepository) List(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error) {
	var (
		where []string
		args  []any
	)

	if filter.PersonID != "" {
		args = append(args, filter.PersonID)
		where = append(where, fmt.Sprintf("person_id = $%d", len(args)))
	}
	if filter.CameraID != "" {
		args = append(args, filter.CameraID)
		where = append(where, fmt.Sprintf("camera_id = $%d", len(args)))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		where = append(where, fmt.Sprintf("location = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if filter.KnownOnly {
		where = append(where, "is_unknown = false")
	}
	if filter.SpoofingOnly {
		where = append(where, "spoofing_detected = true")
	}

	var b strings.Builder
	b.WriteString("SELECT " + eventColumns + " FROM detection_events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	args = append(args, clampLimit(filter.Limit))
	fmt.Fprintf(&b, " ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args))

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, offset)
	fmt.Fprintf(&b, " OFFSET $%d", len(args))

	return r.query(ctx, b.String(), args...)
}

func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM detection_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count detection events: %w", err)
	}
	return n, nil
}

func (r *EventRepository) query(ctx context.Context, query string, args ...any) ([]domain.DetectionEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list detection events: %w", err)
	}
	defer rows.Close()

	events := []domain.DetectionEvent{}
	for rows.Next() {
		var (
			e   domain.DetectionEvent
			box []byte
		)
		err := rows.Scan(
			&e.ID, &e.PersonID, &e.PersonName, &e.CameraID, &e.Location,
			&e.Confidence, &e.EmbeddingDistance, &e.SnapshotPath, &box,
			&e.IsUnknown, &e.Timestamp, &e.ClientIP, &e.RequestSource,
			&e.SpoofingDetected, &e.SpoofingReason, &e.SpoofingType, &e.LivenessScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan detection event: %w", err)
		}
		if len(box) > 0 {
			var fb domain.FaceBox
			if err := json.Unmarshal(box, &fb); err == nil {
				e.BoundingBox = &fb
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list detection events: %w", err)
	}

	return events, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultEventLimit
	}
	if limit > maxEventLimit {
		return maxEventLimit
	}
	return limit
}
