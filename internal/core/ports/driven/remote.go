package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// RemoteClient lists content from the remote classroom platform.
// Implementations own the HTTP and pagination mechanics and normalise
// every payload into domain records before returning.
//
// Rate limiting and auth expiry are reported as page signals, not errors.
// Errors are reserved for transport failures (wrapping
// domain.ErrRemoteUnavailable) and permanent refusals (wrapping
// domain.ErrRemoteForbidden).
type RemoteClient interface {
	// ListCourses returns one page of the user's courses.
	ListCourses(ctx context.Context, cursor string) (*domain.CoursePage, error)

	// ListPage returns one page of content of the given kind for a course.
	// An empty cursor starts from the first page.
	ListPage(ctx context.Context, courseID string, kind domain.ContentKind, cursor string) (*domain.RemotePage, error)

	// RefreshAuth forces a token refresh after an auth-expired signal.
	RefreshAuth(ctx context.Context) error
}

// RemoteClientFactory creates RemoteClients scoped to a user's credentials.
type RemoteClientFactory interface {
	// ForUser returns a client authenticated as userID.
	// Returns domain.ErrNoCredentials if the user has no stored token.
	ForUser(ctx context.Context, userID string) (RemoteClient, error)
}
