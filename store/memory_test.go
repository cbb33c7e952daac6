package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqua777/docindex/schema"
)

func passage(content, sourceID string, embedding []float32) schema.Passage {
	p := schema.NewPassage(content, schema.Location{
		ID:   sourceID,
		Type: schema.LocationTypeDocx,
		Path: []string{"Intro"},
	})
	p.Embedding = embedding
	return p
}

func TestMemoryStoreWriteAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := passage("alpha", "src-1", []float32{1, 0})
	b := passage("beta", "src-1", []float32{0, 1})
	require.NoError(t, s.Write(ctx, []schema.Passage{a, b}, DuplicateFail))

	t.Run("get by ids skips unknown", func(t *testing.T) {
		got, err := s.GetByIDs(ctx, []string{a.ID, "missing", b.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "alpha", got[0].Content)
		assert.Equal(t, "beta", got[1].Content)
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("fail policy rejects duplicates", func(t *testing.T) {
		err := s.Write(ctx, []schema.Passage{a}, DuplicateFail)
		var dupErr *DuplicateError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, []string{a.ID}, dupErr.IDs)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("overwrite policy replaces", func(t *testing.T) {
		updated := a
		updated.SetLocations(append(updated.Locations(), schema.Location{
			ID:   "src-2",
			Type: schema.LocationTypeDocx,
			Path: []string{"Appendix"},
		}))
		require.NoError(t, s.Write(ctx, []schema.Passage{updated}, DuplicateOverwrite))

		got, err := s.GetByIDs(ctx, []string{a.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Locations(), 2)
	})
}

func TestMemoryStoreFilterBySource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := passage("alpha", "src-1", []float32{1, 0})
	b := passage("beta", "src-2", []float32{0, 1})
	shared := passage("shared", "src-1", []float32{1, 1})
	shared.SetLocations(append(shared.Locations(), schema.Location{ID: "src-2", Type: schema.LocationTypeDocx}))
	require.NoError(t, s.Write(ctx, []schema.Passage{a, b, shared}, DuplicateFail))

	got, err := s.FilterBySource(ctx, []string{"src-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Content)
	assert.Equal(t, "shared", got[1].Content)

	got, err = s.FilterBySource(ctx, []string{"src-1", "src-2"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.FilterBySource(ctx, []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := passage("east", "src-1", []float32{1, 0})
	b := passage("north", "src-2", []float32{0, 1})
	c := passage("northeast", "src-1", []float32{0.7071, 0.7071})
	require.NoError(t, s.Write(ctx, []schema.Passage{a, b, c}, DuplicateFail))

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		got, err := s.Query(ctx, []float32{1, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "east", got[0].Passage.Content)
		assert.Equal(t, "northeast", got[1].Passage.Content)
		assert.Greater(t, got[0].Score, got[1].Score)
	})

	t.Run("source filter restricts results", func(t *testing.T) {
		got, err := s.Query(ctx, []float32{0, 1}, 10, []string{"src-1"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "northeast", got[0].Passage.Content)
		assert.Equal(t, "east", got[1].Passage.Content)
	})

	t.Run("excludes passages without locations", func(t *testing.T) {
		orphan := passage("orphan", "src-3", []float32{1, 0})
		orphan.SetLocations(nil)
		require.NoError(t, s.Write(ctx, []schema.Passage{orphan}, DuplicateOverwrite))

		got, err := s.Query(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		for _, sp := range got {
			assert.NotEqual(t, "orphan", sp.Passage.Content)
		}

		// Still reachable by ID for deduplication.
		byID, err := s.GetByIDs(ctx, []string{orphan.ID})
		require.NoError(t, err)
		assert.Len(t, byID, 1)
	})

	t.Run("rejects non-positive topK", func(t *testing.T) {
		_, err := s.Query(ctx, []float32{1, 0}, 0, nil)
		assert.Error(t, err)
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := passage("alpha", "src-1", []float32{1, 0})
	require.NoError(t, s.Write(ctx, []schema.Passage{p}, DuplicateFail))

	got, err := s.GetByIDs(ctx, []string{p.ID})
	require.NoError(t, err)
	got[0].SetLocations(nil)
	got[0].Embedding[0] = 99

	again, err := s.GetByIDs(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.Len(t, again[0].Locations(), 1)
	assert.Equal(t, float32(1), again[0].Embedding[0])
}
