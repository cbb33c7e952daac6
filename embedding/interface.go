// Package embedding wraps the external embedding model behind a small
// interface producing unit-norm dense vectors.
package embedding

import (
	"context"
	"math"
)

// DefaultDimensions is the embedding dimensionality the rest of the system
// assumes.
const DefaultDimensions = 1024

// Model is the interface to an embedding model. Implementations return
// L2-normalised vectors so cosine similarity reduces to an inner product.
type Model interface {
	// EmbedDocuments generates one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a search query. Some models
	// treat queries differently from documents.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Warmer is implemented by models that benefit from a warm-up call at
// process start.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Warm warms the model if it supports warming.
func Warm(ctx context.Context, model Model) error {
	if w, ok := model.(Warmer); ok {
		return w.Warm(ctx)
	}
	return nil
}

// Normalize scales vec to unit L2 norm in place and returns it. Zero
// vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
