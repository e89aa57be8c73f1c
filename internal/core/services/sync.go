package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// errCursorStuck guards against a remote that returns the cursor it was given.
var errCursorStuck = errors.New("remote returned a non-advancing cursor")

// SyncEngine drives incremental ingestion per course.
type SyncEngine struct {
	courses driven.CourseStore
	content driven.ContentStore
	runs    driven.SyncRunStore
	remotes driven.RemoteClientFactory
	indexer driving.Indexer

	clock       driven.Clock
	policy      BackoffPolicy
	rand        func() float64
	concurrency int

	flight   singleflight.Group
	flightMu sync.Mutex
	flights  map[string]*flight

	mu     sync.RWMutex
	active map[string]*domain.SyncRun
}

// SyncOption configures a SyncEngine.
type SyncOption func(*SyncEngine)

// WithClock sets the clock used for timestamps and backoff waits.
func WithClock(c driven.Clock) SyncOption {
	return func(e *SyncEngine) {
		e.clock = c
	}
}

// WithBackoffPolicy sets the per-page retry policy.
func WithBackoffPolicy(p BackoffPolicy) SyncOption {
	return func(e *SyncEngine) {
		e.policy = p
	}
}

// WithJitterSource sets the random source for backoff jitter.
func WithJitterSource(fn func() float64) SyncOption {
	return func(e *SyncEngine) {
		e.rand = fn
	}
}

// WithConcurrency bounds how many courses SyncUser syncs at once.
func WithConcurrency(n int) SyncOption {
	return func(e *SyncEngine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewSyncEngine creates a sync engine.
// The indexer is optional; when nil, dirty units wait for a separate indexing pass.
func NewSyncEngine(
	courses driven.CourseStore,
	content driven.ContentStore,
	runs driven.SyncRunStore,
	remotes driven.RemoteClientFactory,
	indexer driving.Indexer,
	opts ...SyncOption,
) *SyncEngine {
	e := &SyncEngine{
		courses:     courses,
		content:     content,
		runs:        runs,
		remotes:     remotes,
		indexer:     indexer,
		clock:       SystemClock{},
		policy:      DefaultBackoffPolicy(),
		concurrency: 4,
		active:      make(map[string]*domain.SyncRun),
		flights:     make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recover finalises runs left running by a process that exited mid-sync.
func (e *SyncEngine) Recover(ctx context.Context) (int, error) {
	n, err := e.runs.FailUnfinished(ctx, e.clock.Now(), "interrupted before finalisation")
	if err != nil {
		return 0, fmt.Errorf("recover unfinished runs: %w", err)
	}
	if n > 0 {
		logger.Warn("Marked %d interrupted sync run(s) as failed", n)
	}
	return n, nil
}

// Sync runs one synchronisation of a course, joining an in-flight run if any.
// The run is cancelled only when every caller waiting on it is cancelled; a
// caller that leaves early while others wait gets its context error.
func (e *SyncEngine) Sync(ctx context.Context, courseID string) (*domain.SyncRun, error) {
	e.flightMu.Lock()
	fl, ok := e.flights[courseID]
	if !ok {
		fl = newFlight(ctx)
		e.flights[courseID] = fl
	}
	fl.join(ctx)
	ch := e.flight.DoChan(courseID, func() (any, error) {
		defer e.land(courseID, fl)
		return e.runSync(fl, courseID)
	})
	e.flightMu.Unlock()

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		if fl.Err() == nil {
			logger.Debug("Left in-flight sync for course %s, other callers still waiting", courseID)
			return nil, fmt.Errorf("sync %s: %w", courseID, ctx.Err())
		}
		res = <-ch
	}
	if res.Shared {
		logger.Debug("Joined in-flight sync for course %s", courseID)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*domain.SyncRun), nil
}

// land retires a course's flight so the next Sync starts a fresh run.
func (e *SyncEngine) land(courseID string, fl *flight) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	if e.flights[courseID] == fl {
		delete(e.flights, courseID)
		e.flight.Forget(courseID)
	}
	fl.land()
}

// History returns a course's runs, newest first.
func (e *SyncEngine) History(ctx context.Context, courseID string, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := e.runs.ListRuns(ctx, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Status returns whether a course is syncing and its latest finalised run.
func (e *SyncEngine) Status(ctx context.Context, courseID string) (*driving.SyncStatus, error) {
	e.mu.RLock()
	_, running := e.active[courseID]
	e.mu.RUnlock()

	status := &driving.SyncStatus{CourseID: courseID, Running: running}
	runs, err := e.runs.ListRuns(ctx, courseID, 5)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		if runs[i].IsFinal() {
			status.LastRun = &runs[i]
			break
		}
	}
	return status, nil
}

// SyncUser refreshes the user's course list and syncs each active course.
func (e *SyncEngine) SyncUser(ctx context.Context, userID string) (*domain.SyncSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", domain.ErrInvalidInput)
	}

	summary := &domain.SyncSummary{Failures: []domain.SyncFailure{}}
	logger.Section("Sync " + userID)

	client, err := e.remotes.ForUser(ctx, userID)
	if err != nil {
		summary.Failures = append(summary.Failures, listingFailure(fmt.Errorf("remote client: %w", err)))
		return summary, nil
	}

	courses, err := e.refreshCourses(ctx, userID, client)
	if err != nil {
		logger.Warn("Course listing for %s failed: %v", userID, err)
		summary.Failures = append(summary.Failures, listingFailure(err))
		return summary, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.concurrency)
	for _, course := range courses {
		if !course.IsActive() {
			continue
		}
		g.Go(func() error {
			run, err := e.Sync(ctx, course.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, domain.SyncFailure{
					CourseID:   course.ID,
					CourseName: course.Name,
					Status:     domain.RunFailed,
					Errors:     []domain.RunError{{Code: domain.CodeOf(err), Message: err.Error()}},
				})
				return nil
			}
			summary.Add(course, run)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Runs, func(i, j int) bool { return summary.Runs[i].CourseID < summary.Runs[j].CourseID })
	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].CourseID < summary.Failures[j].CourseID })

	logger.Info("Synced %d course(s) for %s, %d assignment(s), %d failure(s)",
		summary.CoursesSynced, userID, summary.AssignmentsSynced, len(summary.Failures))
	return summary, nil
}

func listingFailure(err error) domain.SyncFailure {
	return domain.SyncFailure{
		Status: domain.RunFailed,
		Errors: []domain.RunError{{Code: domain.CodeOf(err), Message: err.Error()}},
	}
}

// refreshCourses lists the user's remote courses, upserts them with
// membership, soft-archives owned courses that disappeared and drops the
// user's memberships of courses no longer listed.
func (e *SyncEngine) refreshCourses(ctx context.Context, userID string, client driven.RemoteClient) ([]domain.Course, error) {
	sess := &syncSession{engine: e, client: client}
	now := e.clock.Now()

	var (
		listed []domain.Course
		keep   []string
		cursor string
	)
	for page := 1; ; page++ {
		var cp *domain.CoursePage
		err := sess.fetch(ctx, page, func(ctx context.Context) (domain.PageSignals, error) {
			p, err := client.ListCourses(ctx, cursor)
			if err != nil {
				return domain.PageSignals{}, err
			}
			if p == nil {
				p = &domain.CoursePage{}
			}
			cp = p
			return p.PageSignals, nil
		})
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}

		for _, rc := range cp.Courses {
			course, err := e.upsertCourse(ctx, userID, rc, now)
			if err != nil {
				return nil, err
			}
			listed = append(listed, course)
			keep = append(keep, course.ID)
		}

		if cp.NextCursor == "" {
			break
		}
		if cp.NextCursor == cursor {
			return nil, fmt.Errorf("list courses: %w", errCursorStuck)
		}
		cursor = cp.NextCursor
	}

	archived, err := e.courses.ArchiveMissing(ctx, userID, keep)
	if err != nil {
		return nil, fmt.Errorf("archive missing courses: %w", err)
	}
	if archived > 0 {
		logger.Info("Archived %d course(s) no longer listed for %s", archived, userID)
	}
	revoked, err := e.courses.RemoveMissingMembers(ctx, userID, keep)
	if err != nil {
		return nil, fmt.Errorf("revoke missing memberships: %w", err)
	}
	if revoked > 0 {
		logger.Info("Revoked %d course membership(s) no longer listed for %s", revoked, userID)
	}
	return listed, nil
}

func (e *SyncEngine) upsertCourse(ctx context.Context, userID string, rc domain.RemoteCourse, now time.Time) (domain.Course, error) {
	course := domain.Course{
		ID:        rc.ExternalID,
		Name:      rc.Name,
		Section:   rc.Section,
		State:     rc.State,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if course.State == "" {
		course.State = domain.CourseActive
	}

	existing, err := e.courses.GetCourse(ctx, rc.ExternalID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.Course{}, fmt.Errorf("get course: %w", err)
	default:
		course.OwnerID = existing.OwnerID
		course.CreatedAt = existing.CreatedAt
		course.LastSyncedAt = existing.LastSyncedAt
	}

	if err := e.courses.SaveCourse(ctx, course); err != nil {
		return domain.Course{}, fmt.Errorf("save course: %w", err)
	}
	if err := e.courses.AddMember(ctx, course.ID, userID); err != nil {
		return domain.Course{}, fmt.Errorf("add member: %w", err)
	}
	return course, nil
}

// runSync performs one run. Only failures to load the course escape as
// errors; everything else is recorded on the returned run.
func (e *SyncEngine) runSync(ctx context.Context, courseID string) (*domain.SyncRun, error) {
	course, err := e.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}

	start := e.clock.Now()
	run := domain.NewSyncRun(newRunID(start), courseID, start)
	if err := e.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	e.setActive(courseID, run)
	defer e.clearActive(courseID)

	logger.Info("Starting sync for course %s (run %s)", courseID, run.ID)

	client, err := e.remotes.ForUser(ctx, course.OwnerID)
	if err != nil {
		run.Abort("", 0, fmt.Errorf("remote client for %s: %w", course.OwnerID, err))
		return e.finalise(ctx, run)
	}

	sess := &syncSession{engine: e, client: client, run: run, course: course}
	for _, kind := range domain.SyncKinds() {
		if err := ctx.Err(); err != nil {
			run.Record(kind, 0, err)
			break
		}
		err := sess.syncKind(ctx, kind)
		if err == nil {
			continue
		}
		if isFatal(err) {
			run.Abort(kind, sess.page, err)
			break
		}
		run.Record(kind, sess.page, err)
		logger.Warn("Sync of %s for course %s stopped at page %d: %v", kind, courseID, sess.page, err)
		if ctx.Err() != nil {
			break
		}
	}

	if !run.Aborted() && ctx.Err() == nil && e.indexer != nil {
		stats, unitErrs, err := e.indexer.IndexCourse(ctx, courseID)
		run.Index = stats
		run.Errors = append(run.Errors, unitErrs...)
		if err != nil {
			run.Abort("", 0, err)
		}
	}

	return e.finalise(ctx, run)
}

// finalise stamps and persists the run. It runs detached from ctx so a
// cancelled sync still leaves a finalised record.
func (e *SyncEngine) finalise(ctx context.Context, run *domain.SyncRun) (*domain.SyncRun, error) {
	ctx = context.WithoutCancel(ctx)
	now := e.clock.Now()
	run.Finalise(now)

	if run.Status != domain.RunFailed {
		if err := e.courses.MarkSynced(ctx, run.CourseID, now); err != nil {
			logger.Warn("Failed to stamp last sync for course %s: %v", run.CourseID, err)
		}
	}
	if err := e.runs.FinaliseRun(ctx, run); err != nil {
		return nil, fmt.Errorf("finalise run: %w", err)
	}

	logger.Info("Finished sync for course %s: %s (%d error(s))", run.CourseID, run.Status, len(run.Errors))
	return run, nil
}

func (e *SyncEngine) setActive(courseID string, run *domain.SyncRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[courseID] = run
}

func (e *SyncEngine) clearActive(courseID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, courseID)
}

// isFatal reports whether err must abort the whole run.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrAuthExpired) ||
		errors.Is(err, domain.ErrNoCredentials) ||
		errors.Is(err, domain.ErrStoreFailure)
}

func newRunID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// syncSession holds the per-run state shared across content kinds.
type syncSession struct {
	engine *SyncEngine
	client driven.RemoteClient
	run    *domain.SyncRun
	course *domain.Course

	// refreshed is set once the single token refresh of the run is spent.
	refreshed bool

	// page is the page number currently being fetched, for error reports.
	page int
}

// fetch drives one page request through the backoff state machine.
// Auth expiry triggers the run's single refresh and an immediate retry.
func (s *syncSession) fetch(ctx context.Context, page int, call func(context.Context) (domain.PageSignals, error)) error {
	e := s.engine
	f := newPageFetch(e.policy, e.clock, e.rand)
	for {
		sig, err := call(ctx)
		switch {
		case err != nil && errors.Is(err, domain.ErrRemoteUnavailable):
			f.Fail(err, 0)
		case err != nil:
			return err
		case sig.AuthExpired:
			if s.refreshed {
				return fmt.Errorf("%w: token rejected after refresh", domain.ErrAuthExpired)
			}
			s.refreshed = true
			logger.Debug("Access token expired, refreshing")
			if rerr := s.client.RefreshAuth(ctx); rerr != nil {
				return fmt.Errorf("%w: refresh: %w", domain.ErrAuthExpired, rerr)
			}
			continue
		case sig.RateLimited:
			f.Fail(domain.ErrRateLimited, sig.RetryAfter)
		default:
			f.Succeed()
			return nil
		}

		if f.State() == FetchExhausted {
			return fmt.Errorf("page %d gave up after %d attempts: %w", page, f.Attempts(), f.Err())
		}
		logger.Debug("Page %d attempt %d failed (%v), backing off %s", page, f.Attempts(), f.Err(), f.Delay())
		if err := f.Wait(ctx); err != nil {
			return err
		}
	}
}

// syncKind walks the remaining pages of one content kind from its stored cursor.
func (s *syncSession) syncKind(ctx context.Context, kind domain.ContentKind) error {
	e := s.engine
	courseID := s.course.ID
	s.page = 0

	cursor, err := e.courses.GetCursor(ctx, courseID, kind)
	if err != nil {
		return fmt.Errorf("%w: get cursor: %w", domain.ErrStoreFailure, err)
	}

	// A pass that starts from the first page sees every live item, so
	// anything it does not see was removed remotely.
	var seen map[string]struct{}
	if cursor == "" {
		seen = make(map[string]struct{})
	}
	counts := s.run.CountsFor(kind)

	for page := 1; ; page++ {
		s.page = page
		if err := ctx.Err(); err != nil {
			return err
		}

		var rp *domain.RemotePage
		err := s.fetch(ctx, page, func(ctx context.Context) (domain.PageSignals, error) {
			p, err := s.client.ListPage(ctx, courseID, kind, cursor)
			if err != nil {
				return domain.PageSignals{}, err
			}
			if p == nil {
				p = &domain.RemotePage{}
			}
			rp = p
			return p.PageSignals, nil
		})
		if err != nil {
			return err
		}

		last := rp.NextCursor == ""
		if !last && rp.NextCursor == cursor {
			return errCursorStuck
		}

		commit, err := s.reconcile(ctx, kind, rp.Items, counts, seen)
		if err != nil {
			return fmt.Errorf("%w: reconcile: %w", domain.ErrStoreFailure, err)
		}
		if last && seen != nil {
			if err := s.sweep(ctx, kind, seen, counts, &commit); err != nil {
				return fmt.Errorf("%w: sweep: %w", domain.ErrStoreFailure, err)
			}
		}

		// The next page's cursor is committed with this page. An exhausted
		// listing stores an empty cursor so the next cycle starts over.
		commit.Cursor = rp.NextCursor
		if err := e.content.CommitPage(ctx, commit); err != nil {
			return fmt.Errorf("%w: commit page: %w", domain.ErrStoreFailure, err)
		}
		counts.Pages++
		counts.Fetched += len(rp.Items)
		logger.Debug("Committed %s page %d for course %s (%d item(s))", kind, page, courseID, len(rp.Items))

		if last {
			return nil
		}
		cursor = rp.NextCursor
	}
}
