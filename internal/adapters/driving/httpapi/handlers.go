package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

type syncRequest struct {
	CourseID string `json:"course_id" validate:"omitempty,max=256"`
}

type syncResponse struct {
	CoursesSynced     int                  `json:"courses_synced"`
	AssignmentsSynced int                  `json:"assignments_synced"`
	Failures          []domain.SyncFailure `json:"failures"`
}

type qaRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type sourceResponse struct {
	Type           domain.ContentKind `json:"type"`
	Title          string             `json:"title"`
	Excerpt        string             `json:"excerpt"`
	RelevanceScore float64            `json:"relevance_score"`
}

type qaResponse struct {
	Answer      string           `json:"answer"`
	Confidence  float64          `json:"confidence"`
	Sources     []sourceResponse `json:"sources"`
	Explanation string           `json:"explanation"`
}

type runsResponse struct {
	CourseID string           `json:"course_id"`
	Runs     []domain.SyncRun `json:"runs"`
}

// handleSync syncs every course of the caller, or only course_id when given.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req syncRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	var summary *domain.SyncSummary
	if req.CourseID == "" {
		summary, err = s.services.Sync.SyncUser(r.Context(), user)
	} else {
		summary, err = s.syncCourse(r, user, req.CourseID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	failures := summary.Failures
	if failures == nil {
		failures = []domain.SyncFailure{}
	}
	writeJSON(w, http.StatusOK, syncResponse{
		CoursesSynced:     summary.CoursesSynced,
		AssignmentsSynced: summary.AssignmentsSynced,
		Failures:          failures,
	})
}

func (s *Server) syncCourse(r *http.Request, user, courseID string) (*domain.SyncSummary, error) {
	if err := s.authorise(r, user, courseID); err != nil {
		return nil, err
	}
	run, err := s.services.Sync.Sync(r.Context(), courseID)
	if err != nil {
		return nil, err
	}
	summary := &domain.SyncSummary{Failures: []domain.SyncFailure{}}
	summary.Add(domain.Course{ID: courseID}, run)
	return summary, nil
}

// handleQA answers a question restricted to the caller's courses.
func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req qaRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	filter, err := s.services.Access.AccessibleCourses(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ans, err := s.services.QA.Answer(r.Context(), req.Question, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := qaResponse{
		Answer:      ans.Text,
		Confidence:  ans.Confidence,
		Sources:     make([]sourceResponse, len(ans.Sources)),
		Explanation: ans.Explanation,
	}
	for i, src := range ans.Sources {
		resp.Sources[i] = sourceResponse{
			Type:           src.Type,
			Title:          src.Title,
			Excerpt:        src.Excerpt,
			RelevanceScore: src.RelevanceScore,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRuns lists the sync history of one course.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	courseID := r.PathValue("id")
	if err := s.authorise(r, user, courseID); err != nil {
		writeServiceError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := s.services.Sync.History(r.Context(), courseID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runsResponse{CourseID: courseID, Runs: runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorise reports a course outside the caller's access as not found so
// that existence is not revealed.
func (s *Server) authorise(r *http.Request, user, courseID string) error {
	filter, err := s.services.Access.AccessibleCourses(r.Context(), user)
	if err != nil {
		return err
	}
	if !filter.Allows(courseID) {
		return fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	return nil
}
