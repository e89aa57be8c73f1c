package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ContentKind identifies a remote content type listed by the sync engine.
type ContentKind string

const (
	// KindAssignment is a piece of course work.
	KindAssignment ContentKind = "assignment"

	// KindAnnouncement is a post on the course stream.
	KindAnnouncement ContentKind = "announcement"

	// KindMaterial is a course work material (readings, links).
	KindMaterial ContentKind = "material"

	// KindSubmission is a student submission. Submissions are synced
	// but never indexed, since they are private to one student.
	KindSubmission ContentKind = "submission"
)

// SyncKinds returns the content types in the order the sync engine walks them.
func SyncKinds() []ContentKind {
	return []ContentKind{KindAssignment, KindAnnouncement, KindMaterial, KindSubmission}
}

// Indexable reports whether units of this kind are chunked and embedded.
func (k ContentKind) Indexable() bool {
	return k == KindAssignment || k == KindAnnouncement || k == KindMaterial
}

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k.Indexable() || k == KindSubmission
}

// ContentUnit is a syncable, text-bearing artefact owned by exactly one Course.
type ContentUnit struct {
	// ID is the local identifier, derived from course, kind and external ID.
	ID string `json:"id"`

	// CourseID is the owning course.
	CourseID string `json:"course_id"`

	// ExternalID is the remote identifier.
	ExternalID string `json:"external_id"`

	// Kind is assignment, announcement or material.
	Kind ContentKind `json:"kind"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Body is the normalised body text.
	Body string `json:"body"`

	// URL is the remote link to the item, if any.
	URL string `json:"url,omitempty"`

	// UpdatedAt is the remote modification timestamp.
	UpdatedAt time.Time `json:"updated_at"`

	// ContentHash is the hash of the normalised title and body.
	ContentHash string `json:"content_hash"`

	// Deleted marks a unit removed on the remote.
	Deleted bool `json:"deleted"`

	// Dirty marks a unit whose chunks must be regenerated or removed.
	Dirty bool `json:"dirty"`

	// CreatedAt is when the unit was first synced.
	CreatedAt time.Time `json:"created_at"`

	// SyncedAt is when the unit was last written by a sync.
	SyncedAt time.Time `json:"synced_at"`
}

// UnitID derives the local ContentUnit ID. External IDs are only unique
// within a course and kind on the remote platform.
func UnitID(courseID string, kind ContentKind, externalID string) string {
	return courseID + ":" + string(kind) + ":" + externalID
}

// IndexText returns the text that is chunked and embedded for the unit.
func (u *ContentUnit) IndexText() string {
	return joinText(u.Title, u.Body)
}

// HashContent returns the content hash for a normalised title and body.
func HashContent(title, body string) string {
	sum := sha256.Sum256([]byte(joinText(title, body)))
	return hex.EncodeToString(sum[:])
}

func joinText(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

// Submission is a student's submission for an assignment.
type Submission struct {
	// ID is the local identifier.
	ID string `json:"id"`

	// CourseID is the owning course.
	CourseID string `json:"course_id"`

	// ExternalID is the remote submission identifier.
	ExternalID string `json:"external_id"`

	// AssignmentID is the external ID of the course work it belongs to.
	AssignmentID string `json:"assignment_id"`

	// StudentID is the remote user ID of the submitting student.
	StudentID string `json:"student_id"`

	// State is the remote submission state (e.g. TURNED_IN, RETURNED).
	State string `json:"state"`

	// Grade is the assigned grade, if any.
	Grade *float64 `json:"grade,omitempty"`

	// Late reports whether the submission was turned in after the due date.
	Late bool `json:"late"`

	// Deleted marks a submission removed on the remote.
	Deleted bool `json:"deleted"`

	// UpdatedAt is the remote modification timestamp.
	UpdatedAt time.Time `json:"updated_at"`

	// ContentHash fingerprints the submission fields for idempotent upserts.
	ContentHash string `json:"content_hash"`
}
