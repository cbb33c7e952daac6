package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// MockModel is a deterministic embedding model for tests. Each text maps to
// a unit-norm vector seeded from its content hash, so equal texts always get
// equal embeddings and distinct texts almost surely do not.
type MockModel struct {
	// Dimensions is the vector size. Zero means DefaultDimensions.
	Dimensions int
	// Err, if set, is returned from every call.
	Err error
}

// EmbedDocuments generates one embedding per input text.
func (m *MockModel) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = m.vector(text)
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query.
func (m *MockModel) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.vector(query), nil
}

func (m *MockModel) vector(text string) []float32 {
	dims := m.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}

	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))

	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return Normalize(vec)
}

var _ Model = (*MockModel)(nil)
