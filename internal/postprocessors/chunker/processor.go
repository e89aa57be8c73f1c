// Package chunker splits content units into overlapping fixed-size windows.
package chunker

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// chunkNamespace scopes the name-based chunk UUIDs.
var chunkNamespace = uuid.MustParse("0b8f6f0e-6c1d-4f4e-9a43-2d1b7c5e8a90")

// Processor splits unit text into windows of chunkSize characters, each
// overlapping the previous by overlap characters. Window ends snap back to
// whitespace when one exists in the second half of the window.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Split returns the chunks of a unit's index text. Vectors are left empty.
func (p *Processor) Split(_ context.Context, unit *domain.ContentUnit) ([]domain.Chunk, error) {
	windows := p.Windows(unit.IndexText())
	if len(windows) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, len(windows))
	for i, text := range windows {
		chunks[i] = domain.Chunk{
			ID:            ChunkID(unit.ID, unit.ContentHash, i),
			UnitID:        unit.ID,
			CourseID:      unit.CourseID,
			Kind:          unit.Kind,
			Title:         unit.Title,
			Index:         i,
			Text:          text,
			ContentHash:   unit.ContentHash,
			UnitUpdatedAt: unit.UpdatedAt,
		}
	}
	return chunks, nil
}

// ChunkID derives a stable chunk ID from the unit, its content hash and the window index.
func ChunkID(unitID, contentHash string, index int) string {
	name := unitID + "|" + contentHash + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// Windows splits text into overlapping windows. The result depends only on
// text and the processor settings.
func (p *Processor) Windows(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var windows []string
	start := 0
	for start < n {
		end := start + p.chunkSize
		if end >= n {
			end = n
		} else if ws := lastSpace(runes, start+p.chunkSize/2, end); ws > start {
			end = ws
		}

		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			windows = append(windows, w)
		}
		if end == n {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = start + 1
		}
		// Start the next window on a word when the overlap lands mid-word.
		if next > 0 && !unicode.IsSpace(runes[next-1]) {
			for i := next; i < end; i++ {
				if unicode.IsSpace(runes[i]) {
					next = i + 1
					break
				}
			}
		}
		start = next
	}
	return windows
}

// lastSpace returns the index of the last whitespace rune in runes[from:to], or -1.
func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
