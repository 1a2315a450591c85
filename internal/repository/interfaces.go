package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// PgxPool is the part of *pgxpool.Pool the repositories use; pgxmock satisfies it in tests
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PersonRepositoryInterface defines operations for enrolled persons
type PersonRepositoryInterface interface {
	Create(ctx context.Context, person *domain.Person) error
	GetByPersonID(ctx context.Context, personID string) (*domain.Person, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Person, error)
	ListActive(ctx context.Context) ([]domain.Person, error)
	Exists(ctx context.Context, personID string) (bool, error)
	Count(ctx context.Context) (total, active int, err error)
	Deactivate(ctx context.Context, personID string) error
	NextPersonID(ctx context.Context, prefix string, reuse bool) (string, error)
	FindSimilar(ctx context.Context, embedding domain.Embedding, limit int) ([]domain.PersonMatch, error)
}

// EventRepositoryInterface defines operations for detection events
type EventRepositoryInterface interface {
	Append(ctx context.Context, event *domain.DetectionEvent) error
	List(ctx context.Context, filter domain.EventFilter) ([]domain.DetectionEvent, error)
	Count(ctx context.Context) (int64, error)
}

var (
	_ PersonRepositoryInterface = (*PersonRepository)(nil)
	_ EventRepositoryInterface  = (*EventRepository)(nil)
)
