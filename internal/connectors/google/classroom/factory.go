package classroom

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/custodia-labs/classmate/internal/connectors/google"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/normalisers/html"
)

// Ensure Factory implements the interface.
var _ driven.RemoteClientFactory = (*Factory)(nil)

// Factory creates Classroom clients from stored credentials.
// Clients for the same user share one rate limiter.
type Factory struct {
	credentials driven.CredentialsStore
	oauth       *oauth2.Config
	rateLimit   google.RateLimitConfig
	pageSize    int64
	norm        *html.Normaliser
	options     []option.ClientOption

	mu       sync.Mutex
	limiters map[string]*google.RateLimiter
}

// NewFactory creates a client factory from the Google configuration.
// Extra service options are passed to every Classroom service.
func NewFactory(credentials driven.CredentialsStore, cfg domain.GoogleConfig, opts ...option.ClientOption) *Factory {
	return &Factory{
		credentials: credentials,
		oauth:       google.OAuthConfig(cfg.ClientID, cfg.ClientSecret),
		rateLimit: google.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         google.DefaultRateLimit.BurstSize,
		},
		pageSize: cfg.PageSize,
		norm:     html.New(),
		options:  opts,
		limiters: make(map[string]*google.RateLimiter),
	}
}

// ForUser returns a client authenticated as userID.
func (f *Factory) ForUser(ctx context.Context, userID string) (driven.RemoteClient, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", domain.ErrInvalidInput)
	}
	ts, err := google.NewTokenSource(ctx, f.credentials, f.oauth, userID)
	if err != nil {
		return nil, err
	}
	svc, err := google.NewClassroomService(ctx, ts, f.options...)
	if err != nil {
		return nil, err
	}
	return NewClient(svc, ts,
		WithPageSize(f.pageSize),
		WithRateLimiter(f.limiter(userID)),
		WithNormaliser(f.norm),
	), nil
}

func (f *Factory) limiter(userID string) *google.RateLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[userID]
	if !ok {
		l = google.NewRateLimiter(f.rateLimit)
		f.limiters[userID] = l
	}
	return l
}
