package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/classmate/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
)

// mockSyncEngine implements driving.SyncEngine for testing.
type mockSyncEngine struct {
	mu sync.Mutex

	run     *domain.SyncRun
	summary *domain.SyncSummary
	runs    []domain.SyncRun
	status  *driving.SyncStatus
	err     error

	// block, when set, holds Sync until closed.
	block chan struct{}

	syncedCourse string
	syncedUser   string
	historyLimit int
}

func (m *mockSyncEngine) Sync(_ context.Context, courseID string) (*domain.SyncRun, error) {
	m.mu.Lock()
	m.syncedCourse = courseID
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return m.run, m.err
}

func (m *mockSyncEngine) SyncUser(_ context.Context, userID string) (*domain.SyncSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncedUser = userID
	return m.summary, m.err
}

func (m *mockSyncEngine) History(_ context.Context, _ string, limit int) ([]domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyLimit = limit
	return m.runs, m.err
}

func (m *mockSyncEngine) Status(_ context.Context, courseID string) (*driving.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != nil {
		return m.status, nil
	}
	return &driving.SyncStatus{CourseID: courseID, Running: m.block != nil}, nil
}

// mockQAService implements driving.QAService for testing.
type mockQAService struct {
	answer   *domain.Answer
	err      error
	question string
	filter   domain.AccessFilter
}

func (m *mockQAService) Answer(_ context.Context, q string, filter domain.AccessFilter) (*domain.Answer, error) {
	m.question = q
	m.filter = filter
	return m.answer, m.err
}

// staticAccess maps users to course IDs.
type staticAccess map[string][]string

func (a staticAccess) AccessibleCourses(_ context.Context, userID string) (domain.AccessFilter, error) {
	return domain.NewAccessFilter(a[userID]...), nil
}

// mockScheduler records Start calls and blocks until ctx is done.
type mockScheduler struct {
	mu      sync.Mutex
	started bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) wasStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// testRuntime returns a runtime over fakes and a memory store.
func testRuntime(t *testing.T) (*Runtime, *mockSyncEngine, *mockQAService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := &mockSyncEngine{}
	qa := &mockQAService{answer: &domain.Answer{Text: "no answer"}}
	rt := &Runtime{
		Config:      domain.DefaultConfig(),
		Sync:        engine,
		QA:          qa,
		Access:      staticAccess{"alice": {"c1"}},
		Courses:     store.CourseStore(),
		Credentials: store.CredentialsStore(),
	}
	return rt, engine, qa, store
}

// setRuntime installs rt for the duration of the test.
func setRuntime(t *testing.T, rt *Runtime) {
	t.Helper()
	old := activeRuntime
	activeRuntime = rt
	t.Cleanup(func() { activeRuntime = old })
}

// executeCommand runs the root command with fresh flags and captures output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetCommands(rootCmd, ctx)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetCommands restores flag defaults left over from earlier executions.
func resetCommands(cmd *cobra.Command, ctx context.Context) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		resetCommands(c, ctx)
	}
}
