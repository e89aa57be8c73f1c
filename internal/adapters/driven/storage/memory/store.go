// Package memory provides in-memory implementations of the storage ports.
// They hold the same semantics as the SQLite store and are used in tests
// and for ephemeral runs that should leave nothing on disk.
package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type cursorKey struct {
	courseID string
	kind     domain.ContentKind
}

// Store is an in-memory backing for every storage port. A single lock
// guards all maps so a page commit and its cursor change together.
type Store struct {
	mu sync.RWMutex

	courses map[string]domain.Course
	members map[string]map[string]struct{}
	cursors map[cursorKey]string

	units       map[string]domain.ContentUnit
	submissions map[string]domain.Submission

	runs map[string]domain.SyncRun

	model  *domain.EmbeddingModel
	chunks map[string][]domain.Chunk

	tokens map[string]domain.OAuthToken

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		courses:     make(map[string]domain.Course),
		members:     make(map[string]map[string]struct{}),
		cursors:     make(map[cursorKey]string),
		units:       make(map[string]domain.ContentUnit),
		submissions: make(map[string]domain.Submission),
		runs:        make(map[string]domain.SyncRun),
		chunks:      make(map[string][]domain.Chunk),
		tokens:      make(map[string]domain.OAuthToken),
		now:         time.Now,
	}
}

// CourseStore returns a CourseStore backed by this store.
func (s *Store) CourseStore() driven.CourseStore {
	return &courseStore{s}
}

// ContentStore returns a ContentStore backed by this store.
func (s *Store) ContentStore() driven.ContentStore {
	return &contentStore{s}
}

// SyncRunStore returns a SyncRunStore backed by this store.
func (s *Store) SyncRunStore() driven.SyncRunStore {
	return &syncRunStore{s}
}

// IndexStore returns an IndexStore backed by this store.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{s}
}

// CredentialsStore returns a CredentialsStore backed by this store.
func (s *Store) CredentialsStore() driven.CredentialsStore {
	return &credentialsStore{s}
}

// Close is a no-op kept for parity with the SQLite store.
func (s *Store) Close() error {
	return nil
}
