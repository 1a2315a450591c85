package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

type PersonRepository struct {
	pool PgxPool
}

func NewPersonRepository(pool PgxPool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// Create writes the person row and one person_embeddings row per vector in a single transaction
func (r *PersonRepository) Create(ctx context.Context, person *domain.Person) error {
	embeddings, err := json.Marshal(person.Embeddings)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}

	var extra []byte
	if len(person.ExtraInfo) > 0 {
		extra, err = json.Marshal(person.ExtraInfo)
		if err != nil {
			return fmt.Errorf("encode extra_info: %w", err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create person: %w", err)
	}

	query := `
		INSERT INTO persons (person_id, name, face_embedding, department, extra_info, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		person.PersonID,
		person.Name,
		embeddings,
		person.Department,
		extra,
	).Scan(&person.CreatedAt, &person.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return domain.ErrPersonExists
		}
		return fmt.Errorf("create person: %w", err)
	}

	for i, emb := range person.Embeddings.List() {
		_, err = tx.Exec(ctx, `
			INSERT INTO person_embeddings (person_id, idx, embedding)
			VALUES ($1, $2, $3)
		`, person.PersonID, i, toVector(emb))
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("create person embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create person: %w", err)
	}

	person.IsActive = true
	return nil
}

func (r *PersonRepository) GetByPersonID(ctx context.Context, personID string) (*domain.Person, error) {
	query := `
		SELECT person_id, name, face_embedding, department, extra_info, is_active, created_at, updated_at
		FROM persons
		WHERE person_id = $1
	`

	person, err := scanPerson(r.pool.QueryRow(ctx, query, personID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person by person_id: %w", err)
	}

	return person, nil
}

func (r *PersonRepository) List(ctx context.Context, activeOnly bool) ([]domain.Person, error) {
	query := `
		SELECT person_id, name, face_embedding, department, extra_info, is_active, created_at, updated_at
		FROM persons
		WHERE ($1 = false OR is_active = true)
		ORDER BY person_id
	`

	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	return persons, nil
}

// ListActive feeds the gallery
func (r *PersonRepository) ListActive(ctx context.Context) ([]domain.Person, error) {
	return r.List(ctx, true)
}

func (r *PersonRepository) Exists(ctx context.Context, personID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM persons WHERE person_id = $1)`, personID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check person exists: %w", err)
	}
	return exists, nil
}

// Count returns the number of persons and how many of them are active
func (r *PersonRepository) Count(ctx context.Context) (total, active int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM persons
	`).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count persons: %w", err)
	}
	return total, active, nil
}

// Deactivate is a soft delete; the id stays taken until reuse picks it up
func (r *PersonRepository) Deactivate(ctx context.Context, personID string) error {
	query := `
		UPDATE persons
		SET is_active = false, updated_at = NOW()
		WHERE person_id = $1 AND is_active = true
	`

	result, err := r.pool.Exec(ctx, query, personID)
	if err != nil {
		return fmt.Errorf("deactivate person: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrPersonNotFound
	}

	return nil
}

// NextPersonID returns prefix + 3-digit number. Inactive persons count as taken.
func (r *PersonRepository) NextPersonID(ctx context.Context, prefix string, reuse bool) (string, error) {
	rows, err := r.pool.Query(ctx, `SELECT person_id FROM persons WHERE person_id LIKE $1`, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("list person ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan person id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("list person ids: %w", err)
	}

	return nextPersonID(prefix, ids, reuse), nil
}

// nextPersonID picks the first gap when reuse is on, otherwise max+1.
// Ids whose suffix is not a number are ignored.
func nextPersonID(prefix string, ids []string, reuse bool) string {
	var nums []int
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil || n < 1 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)

	next := 1
	if reuse {
		for _, n := range nums {
			if n > next {
				break
			}
			if n == next {
				next++
			}
		}
	} else if len(nums) > 0 {
		next = nums[len(nums)-1] + 1
	}

	return fmt.Sprintf("%s%03d", prefix, next)
}

// FindSimilar ranks active persons' embeddings by cosine similarity. Rows of
// another dimension are skipped so mixed embedders do not break the query.
func (r *PersonRepository) FindSimilar(ctx context.Context, embedding domain.Embedding, limit int) ([]domain.PersonMatch, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	query := `
		SELECT p.person_id, p.name, 1 - (e.embedding <=> $1) AS similarity
		FROM person_embeddings e
		JOIN persons p ON p.person_id = e.person_id
		WHERE p.is_active = true AND vector_dims(e.embedding) = $2
		ORDER BY e.embedding <=> $1
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, toVector(embedding), len(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("find similar persons: %w", err)
	}
	defer rows.Close()

	var matches []domain.PersonMatch
	for rows.Next() {
		var m domain.PersonMatch
		if err := rows.Scan(&m.PersonID, &m.Name, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar person: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find similar persons: %w", err)
	}

	return matches, nil
}

func scanPerson(row pgx.Row) (*domain.Person, error) {
	var (
		p          domain.Person
		embeddings []byte
		extra      []byte
	)

	err := row.Scan(
		&p.PersonID,
		&p.Name,
		&embeddings,
		&p.Department,
		&extra,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(embeddings) > 0 {
		if err := json.Unmarshal(embeddings, &p.Embeddings); err != nil {
			return nil, fmt.Errorf("person %s: %w", p.PersonID, err)
		}
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &p.ExtraInfo); err != nil {
			return nil, fmt.Errorf("person %s extra_info: %w", p.PersonID, err)
		}
	}

	return &p, nil
}

func toVector(e domain.Embedding) pgvector.Vector {
	floats := make([]float32, len(e))
	for i, v := range e {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}
