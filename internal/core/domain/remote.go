package domain

import "time"

// PageSignals are the control signals a remote listing can raise.
type PageSignals struct {
	// RateLimited reports a 429-class response. The page carries no items.
	RateLimited bool

	// RetryAfter is the server-suggested wait, if any.
	RetryAfter time.Duration

	// AuthExpired reports that the access token was rejected.
	AuthExpired bool
}

// RemoteRecord is a remote item normalised into a fixed shape at the adapter boundary.
type RemoteRecord struct {
	ExternalID string
	Kind       ContentKind
	Title      string
	Body       string
	URL        string
	UpdatedAt  time.Time

	// Deleted reports the remote marked the item removed.
	Deleted bool

	// Submission carries submission fields when Kind is KindSubmission.
	Submission *SubmissionRecord
}

// SubmissionRecord holds the submission-specific fields of a RemoteRecord.
type SubmissionRecord struct {
	AssignmentID string
	StudentID    string
	State        string
	Grade        *float64
	Late         bool
}

// RemotePage is one page of a content listing.
type RemotePage struct {
	PageSignals

	Items []RemoteRecord

	// NextCursor is empty on the last page.
	NextCursor string
}

// RemoteCourse is a course as listed by the remote platform.
type RemoteCourse struct {
	ExternalID string
	Name       string
	Section    string
	State      CourseState
	OwnerID    string
}

// CoursePage is one page of the course listing.
type CoursePage struct {
	PageSignals

	Courses    []RemoteCourse
	NextCursor string
}

// PageCommit is everything written for one page in a single transaction.
type PageCommit struct {
	CourseID string
	Kind     ContentKind

	// Units are the created, changed or deleted units. Unchanged units are omitted.
	Units []ContentUnit

	// Submissions are the created or changed submissions.
	Submissions []Submission

	// Cursor is the cursor to resume from after this page. Empty restarts the listing.
	Cursor string
}
