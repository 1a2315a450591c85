package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Embedding is a fixed-length face descriptor produced from a single crop
type Embedding []float64

// Norm returns the L2 norm
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy; a zero vector is returned unchanged
func (e Embedding) Normalized() Embedding {
	out := make(Embedding, len(e))
	n := e.Norm()
	if n == 0 {
		copy(out, e)
		return out
	}
	for i, v := range e {
		out[i] = v / n
	}
	return out
}

// CosineSimilarity returns 0 when either vector has zero norm or the lengths differ
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EmbeddingShape tags how a person's embeddings were serialized
type EmbeddingShape int

const (
	// ShapeSingle is the legacy layout: one JSON array of numbers
	ShapeSingle EmbeddingShape = iota + 1
	// ShapeMulti is one JSON array per enrollment image
	ShapeMulti
)

func (s EmbeddingShape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeMulti:
		return "multi"
	default:
		return "unknown"
	}
}

var ErrEmbeddingShape = errors.New("embeddings must be an array of numbers or an array of arrays")

// Embeddings is the tagged union stored in persons.face_embedding.
// Callers use List(); the shape only matters when re-encoding.
type Embeddings struct {
	shape   EmbeddingShape
	vectors []Embedding
}

func SingleEmbedding(e Embedding) Embeddings {
	return Embeddings{shape: ShapeSingle, vectors: []Embedding{e}}
}

func MultiEmbeddings(es []Embedding) Embeddings {
	return Embeddings{shape: ShapeMulti, vectors: es}
}

func (e Embeddings) Shape() EmbeddingShape {
	return e.shape
}

// List normalizes both shapes to one vector per gallery row
func (e Embeddings) List() []Embedding {
	return e.vectors
}

func (e Embeddings) Len() int {
	return len(e.vectors)
}

func (e Embeddings) MarshalJSON() ([]byte, error) {
	if e.shape == ShapeSingle && len(e.vectors) == 1 {
		return json.Marshal(e.vectors[0])
	}
	if e.vectors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.vectors)
}

func (e *Embeddings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return ErrEmbeddingShape
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode embeddings: %w", err)
	}

	if len(items) == 0 {
		*e = Embeddings{shape: ShapeMulti}
		return nil
	}

	first := bytes.TrimSpace(items[0])
	if len(first) > 0 && first[0] == '[' {
		var vectors []Embedding
		if err := json.Unmarshal(data, &vectors); err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingShape, err)
		}
		*e = MultiEmbeddings(vectors)
		return nil
	}

	var vector Embedding
	if err := json.Unmarshal(data, &vector); err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingShape, err)
	}
	*e = SingleEmbedding(vector)
	return nil
}
