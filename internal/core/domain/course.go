package domain

import "time"

// CourseState is the lifecycle state of a course.
type CourseState string

const (
	// CourseActive is a course currently offered on the remote platform.
	CourseActive CourseState = "active"

	// CourseArchived is a course no longer returned by the remote listing.
	// Courses are never hard-deleted.
	CourseArchived CourseState = "archived"
)

// Course is a classroom course mirrored from the remote platform.
// Its pagination cursors live alongside it in the store, one per ContentKind.
type Course struct {
	// ID is the remote course identifier.
	ID string `json:"id"`

	// Name is the course title.
	Name string `json:"name"`

	// Section is the optional section label (e.g. "Period 2").
	Section string `json:"section,omitempty"`

	// State is active or archived.
	State CourseState `json:"state"`

	// OwnerID is the user whose credentials sync this course.
	OwnerID string `json:"owner_id"`

	// LastSyncedAt is when the latest SyncRun for this course finished.
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`

	// CreatedAt is when the course was first synced.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the course metadata last changed locally.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the course should be synced.
func (c *Course) IsActive() bool {
	return c.State == CourseActive
}

// DisplayName returns the name with its section, if any.
func (c *Course) DisplayName() string {
	if c.Section == "" {
		return c.Name
	}
	return c.Name + " (" + c.Section + ")"
}
