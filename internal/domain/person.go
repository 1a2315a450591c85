package domain

import "time"

// Person representa uma pessoa cadastrada na galeria
type Person struct {
	PersonID   string         `json:"person_id"`
	Name       string         `json:"name"`
	Embeddings Embeddings     `json:"-"`
	Department string         `json:"department,omitempty"`
	ExtraInfo  map[string]any `json:"extra_info,omitempty"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EmbeddingCount is exposed in API responses instead of the raw vectors
func (p *Person) EmbeddingCount() int {
	return p.Embeddings.Len()
}

// PersonMatch is one row of a vector similarity search over enrolled faces
type PersonMatch struct {
	PersonID   string  `json:"person_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}
