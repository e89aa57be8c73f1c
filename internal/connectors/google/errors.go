package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// Classify sorts a Google API call error into the signals of a listing page
// or a domain error.
//
//   - 429 and quota exhaustion become a RateLimited signal
//   - 401 becomes an AuthExpired signal
//   - 5xx and transport failures wrap domain.ErrRemoteUnavailable
//   - 403 and 404 wrap domain.ErrRemoteForbidden
//   - A failed token refresh wraps domain.ErrAuthExpired
//
// A nil error yields zero signals and a nil error.
func Classify(err error) (domain.PageSignals, error) {
	if err == nil {
		return domain.PageSignals{}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.PageSignals{}, err
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return domain.PageSignals{}, fmt.Errorf("%w: token refresh rejected: %s", domain.ErrAuthExpired, rerr.ErrorCode)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests || isQuotaExceeded(gerr):
			return domain.PageSignals{RateLimited: true, RetryAfter: RetryAfter(gerr.Header)}, nil
		case gerr.Code == http.StatusUnauthorized:
			return domain.PageSignals{AuthExpired: true}, nil
		case gerr.Code == http.StatusForbidden, gerr.Code == http.StatusNotFound:
			return domain.PageSignals{}, fmt.Errorf("%w: %d %s", domain.ErrRemoteForbidden, gerr.Code, gerr.Message)
		case gerr.Code >= http.StatusInternalServerError:
			return domain.PageSignals{}, fmt.Errorf("%w: %d %s", domain.ErrRemoteUnavailable, gerr.Code, gerr.Message)
		default:
			return domain.PageSignals{}, fmt.Errorf("%w: %d %s", domain.ErrInvalidInput, gerr.Code, gerr.Message)
		}
	}

	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		return domain.PageSignals{}, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	return domain.PageSignals{}, err
}

// isQuotaExceeded reports a 403 that Google uses for per-user rate limits.
func isQuotaExceeded(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
