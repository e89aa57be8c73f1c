package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

const chunkColumns = "id, unit_id, course_id, kind, title, chunk_index, text, vector, content_hash, unit_updated_at"

// EnsureModel pins the embedding model on first use and verifies it afterwards.
func (s *indexStore) EnsureModel(ctx context.Context, model domain.EmbeddingModel) error {
	if model.Name == "" || model.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding model needs a name and dimensions", domain.ErrInvalidInput)
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		var (
			name string
			dims int
		)
		err := tx.QueryRowContext(ctx, "SELECT model, dimensions FROM index_meta WHERE id = 1").Scan(&name, &dims)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err := tx.ExecContext(ctx,
				"INSERT INTO index_meta (id, model, dimensions, created_at) VALUES (1, ?, ?, ?)",
				model.Name, model.Dimensions, formatTime(time.Now()))
			if err != nil {
				return fmt.Errorf("pinning model: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("reading model: %w", err)
		}
		if name != model.Name || dims != model.Dimensions {
			return fmt.Errorf("%w: index uses %s/%d, configured %s/%d",
				domain.ErrModelMismatch, name, dims, model.Name, model.Dimensions)
		}
		return nil
	})
}

// Upsert replaces every chunk of unitID in one transaction.
func (s *indexStore) Upsert(ctx context.Context, unitID string, chunks []domain.Chunk) error {
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if c.UnitID != unitID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s", domain.ErrInvalidInput, c.ID, c.UnitID, unitID)
		}
		if dims > 0 && len(c.Vector) != dims {
			return fmt.Errorf("%w: chunk %s has %d, index has %d", domain.ErrDimensionMismatch, c.ID, len(c.Vector), dims)
		}
	}

	err = s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE unit_id = ?", unitID); err != nil {
			return fmt.Errorf("deleting old chunks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, c.ID, c.UnitID, c.CourseID, string(c.Kind), c.Title, c.Index,
				c.Text, encodeVector(c.Vector), c.ContentHash, formatTime(c.UnitUpdatedAt)); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if isBusy(err) {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteConflict, err)
	}
	return err
}

// DeleteByUnit removes every chunk of unitID.
func (s *indexStore) DeleteByUnit(ctx context.Context, unitID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE unit_id = ?", unitID)
	if isBusy(err) {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteConflict, err)
	}
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Search ranks the filter's chunks by exact cosine similarity.
func (s *indexStore) Search(ctx context.Context, query []float32, filter domain.AccessFilter, topK int) ([]domain.ScoredChunk, error) {
	if filter.IsEmpty() {
		return nil, domain.ErrAccessDenied
	}
	if topK <= 0 {
		return nil, nil
	}
	dims, err := s.dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims > 0 && len(query) != dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), dims)
	}
	qnorm := norm(query)
	if qnorm == 0 {
		return nil, nil
	}

	var hits []domain.ScoredChunk
	for _, batch := range batches(filter.CourseIDs()) {
		rows, err := s.store.db.QueryContext(ctx,
			"SELECT "+chunkColumns+" FROM chunks WHERE course_id IN ("+placeholders(len(batch))+")",
			stringArgs(nil, batch)...)
		if err != nil {
			return nil, fmt.Errorf("searching chunks: %w", err)
		}
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning chunk: %w", err)
			}
			// The SQL predicate already restricts courses; this guards the invariant.
			if !filter.Allows(c.CourseID) {
				continue
			}
			hits = append(hits, domain.ScoredChunk{Chunk: *c, Similarity: cosine(query, qnorm, c.Vector)})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating chunks: %w", err)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return rankBefore(hits[i], hits[j]) })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ChunksForUnit returns a unit's chunks ordered by index.
func (s *indexStore) ChunksForUnit(ctx context.Context, unitID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE unit_id = ? ORDER BY chunk_index", unitID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// dimensions returns the pinned dimension, or 0 before a model is pinned.
func (s *indexStore) dimensions(ctx context.Context) (int, error) {
	var dims int
	err := s.store.db.QueryRowContext(ctx, "SELECT dimensions FROM index_meta WHERE id = 1").Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading model: %w", err)
	}
	return dims, nil
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var (
		c       domain.Chunk
		kind    string
		blob    []byte
		updated sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UnitID, &c.CourseID, &kind, &c.Title, &c.Index, &c.Text,
		&blob, &c.ContentHash, &updated); err != nil {
		return nil, err
	}
	c.Kind = domain.ContentKind(kind)
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}
	c.Vector = vec
	if c.UnitUpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

// rankBefore orders hits by similarity, then newest unit, then chunk index.
func rankBefore(a, b domain.ScoredChunk) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if !a.Chunk.UnitUpdatedAt.Equal(b.Chunk.UnitUpdatedAt) {
		return a.Chunk.UnitUpdatedAt.After(b.Chunk.UnitUpdatedAt)
	}
	if a.Chunk.Index != b.Chunk.Index {
		return a.Chunk.Index < b.Chunk.Index
	}
	return a.Chunk.ID < b.Chunk.ID
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns the similarity of query and v, clamped to [0, 1].
func cosine(query []float32, qnorm float64, v []float32) float64 {
	if len(v) != len(query) {
		return 0
	}
	vnorm := norm(v)
	if vnorm == 0 {
		return 0
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(v[i])
	}
	sim := dot / (qnorm * vnorm)
	return math.Max(0, math.Min(1, sim))
}
