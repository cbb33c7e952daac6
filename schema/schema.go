// Package schema defines the data model shared by the indexing, deindexing
// and querying pipelines: passages, their source locations, and the
// content-addressed identifiers that make deduplication possible.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
)

// LocationTypeDocx is the format tag recorded for passages extracted from
// DOCX sources. It is currently the only supported format.
const LocationTypeDocx = "docx"

// MetaKeyLocations is the metadata key under which a passage's locations are
// stored. The value is always a []Location.
const MetaKeyLocations = "locations"

// Location records where one specific source contributed a passage.
type Location struct {
	// ID is the opaque source identifier issued at upload time.
	ID string `json:"id"`
	// Type is the source format tag, e.g. LocationTypeDocx.
	Type string `json:"type"`
	// Path is the ordered heading path under which the passage appeared.
	Path []string `json:"path"`
}

// Equal reports whether two locations are identical, including the heading
// path.
func (l Location) Equal(other Location) bool {
	if l.ID != other.ID || l.Type != other.Type || len(l.Path) != len(other.Path) {
		return false
	}
	for i := range l.Path {
		if l.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

// Passage is the fundamental stored unit: a span of cleaned text with an
// embedding and the locations of every source that contributed it.
type Passage struct {
	// ID is the lowercase hex SHA-256 of Content. See ContentID.
	ID string `json:"id"`
	// Content is the cleaned text.
	Content string `json:"content"`
	// Embedding is a unit-norm dense vector, or nil before embedding.
	Embedding []float32 `json:"embedding,omitempty"`
	// Meta carries passage metadata. The "locations" key holds []Location.
	Meta map[string]any `json:"meta,omitempty"`
}

// NewPassage creates a passage for content that appeared in a single source
// location. The ID is assigned from the content.
func NewPassage(content string, loc Location) Passage {
	p := Passage{
		Content: content,
		Meta:    map[string]any{MetaKeyLocations: []Location{loc}},
	}
	p.AssignContentID()
	return p
}

// ContentID derives the stable passage identifier from cleaned content.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AssignContentID overwrites the passage ID with the hash of its content.
// Passages with identical content converge to the same ID; their metadata is
// unioned by MergePassages later.
func (p *Passage) AssignContentID() {
	p.ID = ContentID(p.Content)
}

// Locations returns the passage's locations, or nil if it has none.
func (p *Passage) Locations() []Location {
	if p.Meta == nil {
		return nil
	}
	locs, _ := p.Meta[MetaKeyLocations].([]Location)
	return locs
}

// SetLocations replaces the passage's locations.
func (p *Passage) SetLocations(locs []Location) {
	if p.Meta == nil {
		p.Meta = make(map[string]any, 1)
	}
	p.Meta[MetaKeyLocations] = locs
}

// HasSource reports whether any location references the given source ID.
func (p *Passage) HasSource(sourceID string) bool {
	for _, loc := range p.Locations() {
		if loc.ID == sourceID {
			return true
		}
	}
	return false
}

// RemoveSources drops every location whose source ID is in the given set.
// The result may be an empty location list; such passages are semantically
// orphaned and are excluded from query results by the store.
func (p *Passage) RemoveSources(sourceIDs []string) {
	drop := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		drop[id] = struct{}{}
	}
	kept := make([]Location, 0, len(p.Locations()))
	for _, loc := range p.Locations() {
		if _, ok := drop[loc.ID]; !ok {
			kept = append(kept, loc)
		}
	}
	p.SetLocations(kept)
}

// PruneSources keeps only locations whose source ID is in the given set.
// Used when rendering query results so that callers never see locations
// belonging to sources they did not ask about.
func (p *Passage) PruneSources(sourceIDs []string) {
	keep := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		keep[id] = struct{}{}
	}
	kept := make([]Location, 0, len(p.Locations()))
	for _, loc := range p.Locations() {
		if _, ok := keep[loc.ID]; ok {
			kept = append(kept, loc)
		}
	}
	p.SetLocations(kept)
}

// DedupLocations collapses exact-duplicate (id, type, path) entries,
// preserving first-seen order. Metadata merging concatenates location lists,
// so re-ingesting identical input would otherwise accumulate copies.
func (p *Passage) DedupLocations() {
	locs := p.Locations()
	if len(locs) < 2 {
		return
	}
	kept := locs[:0:0]
	for _, loc := range locs {
		dup := false
		for _, seen := range kept {
			if seen.Equal(loc) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, loc)
		}
	}
	p.SetLocations(kept)
}

// ScoredPassage pairs a passage with the similarity score reported by the
// store.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}
