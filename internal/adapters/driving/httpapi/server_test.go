package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

type harness struct {
	sync   *fakeSync
	qa     *fakeQA
	server *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sync: &fakeSync{},
		qa:   &fakeQA{},
	}
	s, err := NewServer(domain.DefaultConfig().Server, Services{
		Sync:   h.sync,
		QA:     h.qa,
		Access: staticAccess{"alice": {"c1", "c2"}},
	})
	require.NoError(t, err)
	h.server = s
	return h
}

func (h *harness) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(domain.DefaultConfig().Server, Services{QA: &fakeQA{}})
	assert.ErrorIs(t, err, ErrMissingService)
}

func TestQA(t *testing.T) {
	h := newHarness(t)
	h.qa.answer = &domain.Answer{
		Text:       "According to the assignment 'Lab 3':\n\nDue Friday.",
		Confidence: 0.82,
		Sources: []domain.Source{{
			Type: domain.KindAssignment, Title: "Lab 3", Excerpt: "Due Friday.",
			RelevanceScore: 0.82, UnitID: "c1:assignment:w1", CourseID: "c1",
		}},
		Explanation: "This answer is based on 1 assignment.",
		Factor:      domain.FactorSimilarity,
	}

	rec := h.do(http.MethodPost, "/qa", "alice", `{"question":"When is Lab 3 due?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, h.qa.answer.Text, body["answer"])
	assert.InDelta(t, 0.82, body["confidence"], 1e-9)
	assert.Equal(t, h.qa.answer.Explanation, body["explanation"])

	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	src := sources[0].(map[string]any)
	assert.Equal(t, "assignment", src["type"])
	assert.Equal(t, "Lab 3", src["title"])
	assert.Equal(t, "Due Friday.", src["excerpt"])
	assert.InDelta(t, 0.82, src["relevance_score"], 1e-9)
	assert.NotContains(t, src, "unit_id", "internal identifiers are not exposed")

	assert.Equal(t, "When is Lab 3 due?", h.qa.question)
	assert.Equal(t, []string{"c1", "c2"}, h.qa.filter.CourseIDs())
}

func TestQA_UnknownUserGetsEmptyFilter(t *testing.T) {
	h := newHarness(t)
	h.qa.answer = &domain.Answer{Text: "nothing", Sources: []domain.Source{}}

	rec := h.do(http.MethodPost, "/qa", "mallory", `{"question":"When is Lab 3 due?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.qa.filter.IsEmpty())
	assert.Empty(t, decode(t, rec)["sources"])
}

func TestQA_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		status int
	}{
		{"no identity", "", `{"question":"hi"}`, http.StatusUnauthorized},
		{"missing question", "alice", `{}`, http.StatusBadRequest},
		{"empty body", "alice", ``, http.StatusBadRequest},
		{"malformed JSON", "alice", `{"question":`, http.StatusBadRequest},
		{"unknown field", "alice", `{"question":"hi","top_k":3}`, http.StatusBadRequest},
		{"question too long", "alice", `{"question":"` + strings.Repeat("a", 2001) + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(http.MethodPost, "/qa", tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestQA_ServiceErrors(t *testing.T) {
	h := newHarness(t)
	h.qa.err = errors.New("disk on fire")
	rec := h.do(http.MethodPost, "/qa", "alice", `{"question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])

	h.qa.err = domain.ErrEmbeddingFailure
	rec = h.do(http.MethodPost, "/qa", "alice", `{"question":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "embedding_failure", decode(t, rec)["code"])
}

func TestSync_AllCourses(t *testing.T) {
	h := newHarness(t)
	h.sync.summary = &domain.SyncSummary{
		CoursesSynced:     2,
		AssignmentsSynced: 7,
		Failures: []domain.SyncFailure{{
			CourseID: "c2", CourseName: "Physics", Status: domain.RunPartial,
			Errors: []domain.RunError{{Kind: domain.KindMaterial, Code: domain.CodeRemoteForbidden, Message: "forbidden"}},
		}},
	}

	rec := h.do(http.MethodPost, "/courses/sync", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["courses_synced"])
	assert.EqualValues(t, 7, body["assignments_synced"])
	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "c2", failures[0].(map[string]any)["course_id"])
	assert.Equal(t, []string{"alice"}, h.sync.users)
}

func TestSync_FailuresAlwaysAList(t *testing.T) {
	h := newHarness(t)
	h.sync.summary = &domain.SyncSummary{}
	rec := h.do(http.MethodPost, "/courses/sync", "alice", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["failures"])
}

func TestSync_OneCourse(t *testing.T) {
	h := newHarness(t)
	run := domain.NewSyncRun("run-1", "c1", time.Now())
	run.CountsFor(domain.KindAssignment).Created = 3
	run.Finalise(time.Now())
	h.sync.run = run

	rec := h.do(http.MethodPost, "/courses/sync", "alice", `{"course_id":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["courses_synced"])
	assert.EqualValues(t, 3, body["assignments_synced"])
	assert.Equal(t, []string{"c1"}, h.sync.courses)

	rec = h.do(http.MethodPost, "/courses/sync", "alice", `{"course_id":"c9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"c1"}, h.sync.courses, "inaccessible courses are never synced")
}

func TestRuns(t *testing.T) {
	h := newHarness(t)
	h.sync.runs = []domain.SyncRun{*domain.NewSyncRun("run-2", "c1", time.Now())}

	rec := h.do(http.MethodGet, "/courses/c1/runs?limit=5", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "c1", body["course_id"])
	assert.Len(t, body["runs"], 1)
	assert.Equal(t, []int{5}, h.sync.limits)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/courses/c3/runs", "alice", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/courses/c1/runs?limit=0", "alice", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/courses/c1/runs", "", "").Code)
}

func TestRuns_EmptyHistory(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/courses/c2/runs", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["runs"])
	assert.Equal(t, []int{0}, h.sync.limits)
}

func TestRouting(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodGet, "/qa", "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nope", "alice", "").Code)
}

func TestHeaderAuthenticator_CustomHeader(t *testing.T) {
	cfg := domain.DefaultConfig().Server
	cfg.UserHeader = "X-Forwarded-User"
	qa := &fakeQA{answer: &domain.Answer{Sources: []domain.Source{}}}
	s, err := NewServer(cfg, Services{Sync: &fakeSync{}, QA: qa, Access: staticAccess{"alice": {"c1"}}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/qa", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("X-Forwarded-User", " alice ")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, qa.filter.Allows("c1"))
}
