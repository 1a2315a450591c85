package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// PersonSource lists the persons that make up the gallery
type PersonSource interface {
	ListActive(ctx context.Context) ([]domain.Person, error)
}

// snapshot is immutable once published; one row per embedding
type snapshot struct {
	ids        []string
	names      []string
	embeddings []domain.Embedding
	persons    int
}

// Match is the best gallery row for a query embedding
type Match struct {
	Index      int
	PersonID   string
	Name       string
	Similarity float64
}

// Gallery is the in-memory enrolled set. Load publishes a new snapshot
// atomically, so a concurrent Match sees either the old or the new rows.
type Gallery struct {
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
}

func NewGallery(logger *slog.Logger) *Gallery {
	g := &Gallery{logger: logger.With("component", "gallery")}
	g.current.Store(&snapshot{})
	return g
}

// Load rebuilds the gallery from every active person. On error the previous
// snapshot stays in place.
func (g *Gallery) Load(ctx context.Context, src PersonSource) error {
	persons, err := src.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	next := build(persons, g.logger)
	g.current.Store(next)

	g.logger.Info("gallery loaded",
		slog.Int("persons", next.persons),
		slog.Int("embeddings", len(next.embeddings)),
	)
	return nil
}

func build(persons []domain.Person, logger *slog.Logger) *snapshot {
	s := &snapshot{}
	for _, p := range persons {
		rows := 0
		for _, emb := range p.Embeddings.List() {
			if len(emb) == 0 || emb.Norm() == 0 {
				continue
			}
			s.ids = append(s.ids, p.PersonID)
			s.names = append(s.names, p.Name)
			s.embeddings = append(s.embeddings, emb.Normalized())
			rows++
		}
		if rows == 0 {
			logger.Warn("person has no usable embeddings", slog.String("person_id", p.PersonID))
			continue
		}
		s.persons++
	}
	return s
}

// Match returns the row with the highest cosine similarity.
// Ties keep the lowest index (first-max); that ordering is arbitrary but stable.
func (g *Gallery) Match(query domain.Embedding) (Match, bool) {
	s := g.current.Load()
	if len(s.embeddings) == 0 || len(query) == 0 {
		return Match{}, false
	}

	q := query.Normalized()
	best := -1
	bestSim := math.Inf(-1)

	for i, row := range s.embeddings {
		sim := dot(q, row)
		if math.IsNaN(sim) {
			continue
		}
		if sim > bestSim {
			best = i
			bestSim = sim
		}
	}

	if best < 0 {
		return Match{}, false
	}

	return Match{
		Index:      best,
		PersonID:   s.ids[best],
		Name:       s.names[best],
		Similarity: bestSim,
	}, true
}

// Size is the number of embedding rows
func (g *Gallery) Size() int {
	return len(g.current.Load().embeddings)
}

// PersonCount is the number of distinct persons with at least one row
func (g *Gallery) PersonCount() int {
	return g.current.Load().persons
}

func (g *Gallery) Empty() bool {
	return g.Size() == 0
}

func dot(a, b domain.Embedding) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
