package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentID(t *testing.T) {
	t.Run("matches SHA-256 of UTF-8 bytes", func(t *testing.T) {
		content := "Active content has to be disabled."
		sum := sha256.Sum256([]byte(content))
		assert.Equal(t, hex.EncodeToString(sum[:]), ContentID(content))
	})

	t.Run("is 64 lowercase hex characters", func(t *testing.T) {
		id := ContentID("hello")
		assert.Len(t, id, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", id)
	})

	t.Run("AssignContentID overwrites prior id", func(t *testing.T) {
		p := Passage{ID: "old", Content: "some text"}
		p.AssignContentID()
		assert.Equal(t, ContentID("some text"), p.ID)
	})
}

func TestPassageLocations(t *testing.T) {
	loc := Location{ID: "s1", Type: LocationTypeDocx, Path: []string{"Intro"}}

	t.Run("NewPassage records one location", func(t *testing.T) {
		p := NewPassage("content", loc)
		require.Len(t, p.Locations(), 1)
		assert.Equal(t, loc, p.Locations()[0])
		assert.Equal(t, ContentID("content"), p.ID)
	})

	t.Run("HasSource", func(t *testing.T) {
		p := NewPassage("content", loc)
		assert.True(t, p.HasSource("s1"))
		assert.False(t, p.HasSource("s2"))
	})

	t.Run("RemoveSources keeps surviving locations", func(t *testing.T) {
		p := NewPassage("content", loc)
		p.SetLocations(append(p.Locations(), Location{ID: "s2", Type: LocationTypeDocx, Path: []string{"Intro"}}))

		p.RemoveSources([]string{"s1"})
		require.Len(t, p.Locations(), 1)
		assert.Equal(t, "s2", p.Locations()[0].ID)

		p.RemoveSources([]string{"s2"})
		assert.Empty(t, p.Locations())
	})

	t.Run("PruneSources drops foreign locations", func(t *testing.T) {
		p := NewPassage("content", loc)
		p.SetLocations(append(p.Locations(), Location{ID: "s2", Type: LocationTypeDocx, Path: []string{"Other"}}))

		p.PruneSources([]string{"s2"})
		require.Len(t, p.Locations(), 1)
		assert.Equal(t, "s2", p.Locations()[0].ID)
	})

	t.Run("DedupLocations collapses exact duplicates only", func(t *testing.T) {
		p := NewPassage("content", loc)
		p.SetLocations([]Location{
			loc,
			loc,
			{ID: "s1", Type: LocationTypeDocx, Path: []string{"Other"}},
		})
		p.DedupLocations()
		assert.Len(t, p.Locations(), 2)
	})
}

func TestMergeMaps(t *testing.T) {
	tests := []struct {
		name     string
		d1       map[string]any
		d2       map[string]any
		expected map[string]any
	}{
		{
			name:     "empty maps",
			d1:       map[string]any{},
			d2:       map[string]any{},
			expected: map[string]any{},
		},
		{
			name:     "no overlapping keys",
			d1:       map[string]any{"a": 1},
			d2:       map[string]any{"b": 2},
			expected: map[string]any{"a": 1, "b": 2},
		},
		{
			name:     "overlapping scalar keys, left wins",
			d1:       map[string]any{"a": 1},
			d2:       map[string]any{"a": 2},
			expected: map[string]any{"a": 1},
		},
		{
			name:     "nested maps merge recursively",
			d1:       map[string]any{"a": map[string]any{"b": 1}},
			d2:       map[string]any{"a": map[string]any{"b": 2, "c": 3}},
			expected: map[string]any{"a": map[string]any{"b": 1, "c": 3}},
		},
		{
			name:     "slices concatenate left first",
			d1:       map[string]any{"a": []int{1, 2}},
			d2:       map[string]any{"a": []int{3, 4}},
			expected: map[string]any{"a": []int{1, 2, 3, 4}},
		},
		{
			name: "location slices concatenate",
			d1:   map[string]any{"locations": []Location{{ID: "s1"}}},
			d2:   map[string]any{"locations": []Location{{ID: "s2"}}},
			expected: map[string]any{
				"locations": []Location{{ID: "s1"}, {ID: "s2"}},
			},
		},
		{
			name:     "mismatched structures revert to left",
			d1:       map[string]any{"a": []int{1, 2}},
			d2:       map[string]any{"a": map[string]any{"b": 2}},
			expected: map[string]any{"a": []int{1, 2}},
		},
		{
			name:     "key only in right side",
			d1:       map[string]any{},
			d2:       map[string]any{"a": 2},
			expected: map[string]any{"a": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MergeMaps(tt.d1, tt.d2))
		})
	}
}

func TestMergePassages(t *testing.T) {
	t.Run("groups by id preserving first-seen order", func(t *testing.T) {
		a := NewPassage("alpha", Location{ID: "s1", Type: LocationTypeDocx})
		b := NewPassage("beta", Location{ID: "s1", Type: LocationTypeDocx})
		a2 := NewPassage("alpha", Location{ID: "s2", Type: LocationTypeDocx})

		merged := MergePassages([]Passage{a, b, a2})
		require.Len(t, merged, 2)
		assert.Equal(t, a.ID, merged[0].ID)
		assert.Equal(t, b.ID, merged[1].ID)

		locs := merged[0].Locations()
		require.Len(t, locs, 2)
		assert.Equal(t, "s1", locs[0].ID)
		assert.Equal(t, "s2", locs[1].ID)
	})

	t.Run("first passage keeps content and embedding", func(t *testing.T) {
		stored := NewPassage("alpha", Location{ID: "s1", Type: LocationTypeDocx})
		stored.Embedding = []float32{1, 0, 0}
		fresh := NewPassage("alpha", Location{ID: "s2", Type: LocationTypeDocx})

		merged := MergePassages([]Passage{stored}, []Passage{fresh})
		require.Len(t, merged, 1)
		assert.Equal(t, []float32{1, 0, 0}, merged[0].Embedding)
		require.Len(t, merged[0].Locations(), 2)
		assert.Equal(t, "s1", merged[0].Locations()[0].ID)
	})

	t.Run("merging across lists keeps list order", func(t *testing.T) {
		a := NewPassage("alpha", Location{ID: "s1", Type: LocationTypeDocx})
		b := NewPassage("beta", Location{ID: "s2", Type: LocationTypeDocx})

		merged := MergePassages([]Passage{a}, []Passage{b})
		require.Len(t, merged, 2)
		assert.Equal(t, a.ID, merged[0].ID)
	})
}
