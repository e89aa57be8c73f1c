package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/classmate/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/postprocessors/chunker"
)

var testStart = time.Date(2025, 10, 17, 9, 0, 0, 0, time.UTC)

// --- Clock ---

// fakeClock advances only when slept on, and records every sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testStart}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// --- Remote ---

type pageKey struct {
	kind   domain.ContentKind
	cursor string
}

type scripted struct {
	page *domain.RemotePage
	err  error
}

// fakeRemote serves fixed pages per kind and cursor. Scripted responses
// for a key are consumed before the fixed page is served.
type fakeRemote struct {
	mu sync.Mutex

	courses    []domain.RemoteCourse
	coursesErr error

	pages  map[pageKey]*domain.RemotePage
	script map[pageKey][]scripted
	calls  map[pageKey]int

	refreshes  int
	refreshErr error

	// onList runs before each ListPage, outside the lock.
	onList func(kind domain.ContentKind, cursor string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pages:  make(map[pageKey]*domain.RemotePage),
		script: make(map[pageKey][]scripted),
		calls:  make(map[pageKey]int),
	}
}

// cursorFor names the cursor of the i-th page (0-based) of a kind.
func cursorFor(kind domain.ContentKind, i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%d", kind, i)
}

// setPages replaces the listing of kind with the given pages.
func (r *fakeRemote) setPages(kind domain.ContentKind, pages ...[]domain.RemoteRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.pages {
		if k.kind == kind {
			delete(r.pages, k)
		}
	}
	for i, items := range pages {
		next := ""
		if i < len(pages)-1 {
			next = cursorFor(kind, i+1)
		}
		for j := range items {
			items[j].Kind = kind
		}
		r.pages[pageKey{kind, cursorFor(kind, i)}] = &domain.RemotePage{Items: items, NextCursor: next}
	}
}

// push queues scripted responses for one page.
func (r *fakeRemote) push(kind domain.ContentKind, cursor string, responses ...scripted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pageKey{kind, cursor}
	r.script[key] = append(r.script[key], responses...)
}

func (r *fakeRemote) callsFor(kind domain.ContentKind, cursor string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[pageKey{kind, cursor}]
}

func (r *fakeRemote) ListCourses(_ context.Context, _ string) (*domain.CoursePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coursesErr != nil {
		return nil, r.coursesErr
	}
	return &domain.CoursePage{Courses: append([]domain.RemoteCourse(nil), r.courses...)}, nil
}

func (r *fakeRemote) ListPage(_ context.Context, _ string, kind domain.ContentKind, cursor string) (*domain.RemotePage, error) {
	if r.onList != nil {
		r.onList(kind, cursor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pageKey{kind, cursor}
	r.calls[key]++
	if queue := r.script[key]; len(queue) > 0 {
		r.script[key] = queue[1:]
		if queue[0].err != nil {
			return nil, queue[0].err
		}
		return queue[0].page, nil
	}
	p, ok := r.pages[key]
	if !ok {
		return &domain.RemotePage{}, nil
	}
	out := *p
	out.Items = append([]domain.RemoteRecord(nil), p.Items...)
	return &out, nil
}

func (r *fakeRemote) RefreshAuth(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	return r.refreshErr
}

// fakeFactory hands out one remote per user.
type fakeFactory struct {
	remotes map[string]*fakeRemote
	err     error
}

func (f *fakeFactory) ForUser(_ context.Context, userID string) (driven.RemoteClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.remotes[userID]
	if !ok {
		return nil, domain.ErrNoCredentials
	}
	return r, nil
}

func record(id, title, body string) domain.RemoteRecord {
	return domain.RemoteRecord{ExternalID: id, Title: title, Body: body, UpdatedAt: testStart}
}

func submissionRecord(id, assignment string, grade *float64) domain.RemoteRecord {
	return domain.RemoteRecord{
		ExternalID: id,
		UpdatedAt:  testStart,
		Submission: &domain.SubmissionRecord{
			AssignmentID: assignment,
			StudentID:    "student-" + id,
			State:        "TURNED_IN",
			Grade:        grade,
		},
	}
}

// --- Embedding and index failure injection ---

// flakyEmbedder fails the first failures calls, then delegates.
type flakyEmbedder struct {
	driven.EmbeddingService

	mu       sync.Mutex
	failures int
	calls    int
	hook     func()
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.failures > 0
	if fail {
		e.failures--
	}
	hook := e.hook
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return nil, fmt.Errorf("model unavailable")
	}
	return e.EmbeddingService.Embed(ctx, text)
}

// conflictIndex reports write conflicts on the first conflicts upserts and
// tracks the peak number of concurrent upserts.
type conflictIndex struct {
	driven.IndexStore

	mu        sync.Mutex
	conflicts int
	upserts   int
	inFlight  int
	peak      int
}

func (c *conflictIndex) Upsert(ctx context.Context, unitID string, chunks []domain.Chunk) error {
	c.mu.Lock()
	c.upserts++
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return fmt.Errorf("%w: database is locked", domain.ErrIndexWriteConflict)
	}
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()

	time.Sleep(time.Millisecond)
	err := c.IndexStore.Upsert(ctx, unitID, chunks)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return err
}

// --- Fixture ---

const testDims = 64

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	remote   *fakeRemote
	factory  *fakeFactory
	embedder driven.EmbeddingService
	indexer  *Indexer
	engine   *SyncEngine
}

func fastPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.5,
	}
}

// newFixture wires a sync engine over memory stores with course c1 owned by alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		clock:    newFakeClock(),
		remote:   newFakeRemote(),
		embedder: hashing.NewEmbeddingService(hashing.Config{Dimensions: testDims}),
	}
	f.factory = &fakeFactory{remotes: map[string]*fakeRemote{"alice": f.remote}}
	require.NoError(t, f.store.IndexStore().EnsureModel(context.Background(), domain.EmbeddingModel{
		Name: f.embedder.ModelName(), Dimensions: testDims,
	}))
	f.indexer = NewIndexer(f.store.ContentStore(), f.store.IndexStore(), chunker.New(), f.embedder)
	f.engine = f.newEngine()

	courses := f.store.CourseStore()
	require.NoError(t, courses.SaveCourse(context.Background(), domain.Course{
		ID: "c1", Name: "Chemistry", State: domain.CourseActive, OwnerID: "alice", CreatedAt: testStart,
	}))
	require.NoError(t, courses.AddMember(context.Background(), "c1", "alice"))
	return f
}

func (f *fixture) newEngine(opts ...SyncOption) *SyncEngine {
	base := []SyncOption{
		WithClock(f.clock),
		WithBackoffPolicy(fastPolicy()),
		WithJitterSource(func() float64 { return 0 }),
	}
	return NewSyncEngine(
		f.store.CourseStore(),
		f.store.ContentStore(),
		f.store.SyncRunStore(),
		f.factory,
		f.indexer,
		append(base, opts...)...,
	)
}
