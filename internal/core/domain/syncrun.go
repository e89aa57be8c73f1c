package domain

import "time"

// RunStatus is the outcome of a SyncRun.
type RunStatus string

const (
	// RunRunning marks a run that has not been finalised yet.
	RunRunning RunStatus = "running"

	// RunSucceeded marks a run that completed with no recorded errors.
	RunSucceeded RunStatus = "succeeded"

	// RunPartial marks a run that recorded errors but kept its committed pages.
	RunPartial RunStatus = "partial"

	// RunFailed marks a run aborted by auth expiry or a store failure.
	RunFailed RunStatus = "failed"
)

// KindCounts tallies the records processed for one content kind.
type KindCounts struct {
	Pages     int `json:"pages"`
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

// Synced returns the number of records present on the remote in this run.
func (c KindCounts) Synced() int {
	return c.Created + c.Updated + c.Unchanged
}

// RunError is one failure recorded on a SyncRun.
type RunError struct {
	Kind    ContentKind `json:"kind,omitempty"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Page    int         `json:"page,omitempty"`
	UnitID  string      `json:"unit_id,omitempty"`
}

// SyncRun is one invocation of the sync engine for one course.
// It is created when the run starts and immutable once finalised.
type SyncRun struct {
	ID         string                      `json:"id"`
	CourseID   string                      `json:"course_id"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at,omitempty"`
	Status     RunStatus                   `json:"status"`
	Counts     map[ContentKind]*KindCounts `json:"counts"`
	Index      IndexStats                  `json:"index"`
	Errors     []RunError                  `json:"errors,omitempty"`

	aborted bool
}

// NewSyncRun starts a run record.
func NewSyncRun(id, courseID string, startedAt time.Time) *SyncRun {
	counts := make(map[ContentKind]*KindCounts, len(SyncKinds()))
	for _, k := range SyncKinds() {
		counts[k] = &KindCounts{}
	}
	return &SyncRun{
		ID:        id,
		CourseID:  courseID,
		StartedAt: startedAt,
		Status:    RunRunning,
		Counts:    counts,
	}
}

// CountsFor returns the mutable counters for kind.
func (r *SyncRun) CountsFor(kind ContentKind) *KindCounts {
	if r.Counts == nil {
		r.Counts = make(map[ContentKind]*KindCounts)
	}
	c, ok := r.Counts[kind]
	if !ok {
		c = &KindCounts{}
		r.Counts[kind] = c
	}
	return c
}

// Record appends an error classified from err.
func (r *SyncRun) Record(kind ContentKind, page int, err error) {
	r.Errors = append(r.Errors, RunError{
		Kind:    kind,
		Code:    CodeOf(err),
		Message: err.Error(),
		Page:    page,
	})
}

// Abort records err and marks the run failed at finalisation.
func (r *SyncRun) Abort(kind ContentKind, page int, err error) {
	r.Record(kind, page, err)
	r.aborted = true
}

// Aborted reports whether Abort was called.
func (r *SyncRun) Aborted() bool {
	return r.aborted
}

// Finalise stamps the end time and derives the status.
func (r *SyncRun) Finalise(at time.Time) {
	r.FinishedAt = at
	switch {
	case r.aborted:
		r.Status = RunFailed
	case len(r.Errors) > 0:
		r.Status = RunPartial
	default:
		r.Status = RunSucceeded
	}
}

// IsFinal reports whether the run has been finalised.
func (r *SyncRun) IsFinal() bool {
	return r.Status != RunRunning
}

// SyncFailure describes a course whose run did not fully succeed.
type SyncFailure struct {
	CourseID   string     `json:"course_id"`
	CourseName string     `json:"course_name,omitempty"`
	Status     RunStatus  `json:"status"`
	Errors     []RunError `json:"errors"`
}

// SyncSummary aggregates the runs triggered for one user.
type SyncSummary struct {
	CoursesSynced     int           `json:"courses_synced"`
	AssignmentsSynced int           `json:"assignments_synced"`
	Runs              []SyncRun     `json:"runs,omitempty"`
	Failures          []SyncFailure `json:"failures"`
}

// Add folds a finalised run into the summary.
func (s *SyncSummary) Add(course Course, run *SyncRun) {
	s.Runs = append(s.Runs, *run)
	if run.Status != RunFailed {
		s.CoursesSynced++
	}
	if c, ok := run.Counts[KindAssignment]; ok {
		s.AssignmentsSynced += c.Synced()
	}
	if run.Status != RunSucceeded {
		s.Failures = append(s.Failures, SyncFailure{
			CourseID:   course.ID,
			CourseName: course.Name,
			Status:     run.Status,
			Errors:     run.Errors,
		})
	}
}
