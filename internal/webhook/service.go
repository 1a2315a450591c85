package webhook

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const (
	HeaderSignature = "X-Vigia-Signature"
	HeaderEvent     = "X-Vigia-Event"
	userAgent       = "Vigia-Webhook/1.0"

	defaultTimeout = 10 * time.Second
)

const webhookColumns = `id, name, url, secret, events, enabled, last_triggered_at, created_at, updated_at`

type Service struct {
	db     DB
	client *http.Client
}

func NewService(db DB) *Service {
	return &Service{
		db: db,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// WithHTTPClient replaces the delivery client
func (s *Service) WithHTTPClient(c *http.Client) *Service {
	s.client = c
	return s
}

// Send delivers one event. A failed delivery is queued for the worker and
// is not reported as an error.
func (s *Service) Send(ctx context.Context, webhook *Webhook, event EventPayload) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.deliver(ctx, webhook, event.Type, payload); err != nil {
		return s.enqueue(ctx, webhook.ID, event.Type, payload, err.Error())
	}

	return s.updateLastTriggered(ctx, webhook.ID)
}

func (s *Service) deliver(ctx context.Context, webhook *Webhook, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(webhook.Secret, payload))
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, webhookID uuid.UUID, eventType string, payload []byte, errorMsg string) error {
	query := `
		INSERT INTO webhook_queue (webhook_id, event_type, payload, next_retry_at, last_error)
		VALUES ($1, $2, $3, NOW() + INTERVAL '1 second', $4)
	`

	_, err := s.db.Exec(ctx, query, webhookID, eventType, payload, errorMsg)
	if err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}

	return nil
}

func (s *Service) updateLastTriggered(ctx context.Context, webhookID uuid.UUID) error {
	query := `UPDATE webhooks SET last_triggered_at = NOW() WHERE id = $1`
	_, err := s.db.Exec(ctx, query, webhookID)
	return err
}

func (s *Service) List(ctx context.Context) ([]*Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	return scanWebhooks(rows)
}

// ListByEvent returns enabled webhooks subscribed to eventType or to every event
func (s *Service) ListByEvent(ctx context.Context, eventType string) ([]*Webhook, error) {
	query := `SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE enabled = true AND (events @> $1::jsonb OR events @> $2::jsonb)
	`

	typeJSON, _ := json.Marshal([]string{eventType})
	allJSON, _ := json.Marshal([]string{AllEvents})

	rows, err := s.db.Query(ctx, query, typeJSON, allJSON)
	if err != nil {
		return nil, fmt.Errorf("query webhooks by event: %w", err)
	}
	return scanWebhooks(rows)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	w, err := scanWebhook(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

// Create validates the webhook and fills ID and timestamps. An empty secret
// is generated.
func (s *Service) Create(ctx context.Context, webhook *Webhook) error {
	if err := validate(webhook); err != nil {
		return err
	}
	if webhook.Secret == "" {
		secret, err := newSecret()
		if err != nil {
			return err
		}
		webhook.Secret = secret
	}

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	query := `
		INSERT INTO webhooks (name, url, secret, events, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRow(ctx, query,
		webhook.Name, webhook.URL, webhook.Secret, eventsJSON, webhook.Enabled,
	).Scan(&webhook.ID, &webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrWebhookNotFound
	}

	return nil
}

func validate(w *Webhook) error {
	details := map[string]any{}
	if w.Name == "" {
		details["name"] = "is required"
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		details["url"] = "must be an absolute http(s) URL"
	}
	if len(w.Events) == 0 {
		details["events"] = "at least one event type is required"
	}
	for _, e := range w.Events {
		if e != AllEvents && e != domain.EventTypeDetection && e != domain.EventTypeSpoofing {
			details["events"] = fmt.Sprintf("unknown event type %q", e)
		}
	}
	if len(details) > 0 {
		return domain.ErrValidationFailed.WithDetails(details)
	}
	return nil
}

func newSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

func scanWebhook(row pgx.Row) (*Webhook, error) {
	var w Webhook
	var eventsJSON []byte

	err := row.Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret,
		&eventsJSON, &w.Enabled, &w.LastTriggeredAt,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(eventsJSON, &w.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return &w, nil
}

func scanWebhooks(rows pgx.Rows) ([]*Webhook, error) {
	defer rows.Close()

	webhooks := []*Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}
