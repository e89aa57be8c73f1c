package domain

import "time"

// Chunk is a bounded text window of a ContentUnit plus its embedding.
// The full chunk set of a unit is regenerated whenever its content hash changes.
type Chunk struct {
	// ID is deterministic for a given unit, content hash and index.
	ID string

	// UnitID links to the owning ContentUnit.
	UnitID string

	// CourseID is the owning unit's course. It drives access filtering.
	CourseID string

	// Kind is the owning unit's content kind.
	Kind ContentKind

	// Title is the owning unit's title.
	Title string

	// Index is the ordinal position within the unit.
	Index int

	// Text is the window content.
	Text string

	// Vector is the embedding in the pinned model space.
	Vector []float32

	// ContentHash is the owning unit's hash when the chunk was created.
	ContentHash string

	// UnitUpdatedAt is the owning unit's remote timestamp, used for tie-breaks.
	UnitUpdatedAt time.Time
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// EmbeddingModel identifies the pinned embedding space of an index.
type EmbeddingModel struct {
	Name       string
	Dimensions int
}

// IndexStats counts the outcome of indexing a batch of dirty units.
type IndexStats struct {
	// Indexed is the number of units whose chunks were replaced.
	Indexed int `json:"indexed"`

	// Removed is the number of deleted units whose chunks were dropped.
	Removed int `json:"removed"`

	// Failed is the number of units left dirty for the next cycle.
	Failed int `json:"failed"`

	// Chunks is the number of chunks written.
	Chunks int `json:"chunks"`
}
