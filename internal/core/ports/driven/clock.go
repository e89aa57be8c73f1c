package driven

import (
	"context"
	"time"
)

// Clock abstracts time so backoff can be tested without real delays.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}
