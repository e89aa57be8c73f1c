package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// FetchState is the state of one page-fetch attempt sequence.
type FetchState int

const (
	// FetchPending means the next attempt may be issued.
	FetchPending FetchState = iota

	// FetchBackingOff means the last attempt was throttled or failed transiently
	// and the machine is waiting before the next attempt.
	FetchBackingOff

	// FetchSucceeded means a page was obtained.
	FetchSucceeded

	// FetchExhausted means the attempt budget is spent.
	FetchExhausted
)

// String returns the state name.
func (s FetchState) String() string {
	switch s {
	case FetchPending:
		return "pending"
	case FetchBackingOff:
		return "backing_off"
	case FetchSucceeded:
		return "succeeded"
	case FetchExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("FetchState(%d)", int(s))
	}
}

// BackoffPolicy bounds retries of a single page fetch.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts per page, including the first.
	MaxAttempts int

	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration

	// MaxDelay caps every wait, including server-suggested ones.
	MaxDelay time.Duration

	// Multiplier grows the wait after each failed attempt.
	Multiplier float64

	// Jitter is the fraction of each wait that is randomised (0 to 1).
	// A wait d becomes a value in [d*(1-Jitter), d].
	Jitter float64
}

// DefaultBackoffPolicy returns 5 attempts from 4s up to 60s, doubling, half jittered.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:  5,
		InitialDelay: 4 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		Jitter:       0.5,
	}
}

// BackoffPolicyFromConfig builds a policy from sync configuration.
func BackoffPolicyFromConfig(cfg domain.SyncConfig) BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay.Std(),
		MaxDelay:     cfg.MaxDelay.Std(),
		Multiplier:   cfg.Multiplier,
		Jitter:       cfg.Jitter,
	}
}

// BaseDelay returns the un-jittered wait after the given failed attempt (1-based).
func (p BackoffPolicy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// pageFetch is the backoff state machine for one page.
//
//	pending -> succeeded
//	pending -> backing_off -> pending (after Wait)
//	pending -> exhausted (attempt budget spent)
type pageFetch struct {
	policy BackoffPolicy
	clock  driven.Clock
	rand   func() float64

	state    FetchState
	attempts int
	delay    time.Duration
	lastErr  error
}

func newPageFetch(policy BackoffPolicy, clock driven.Clock, rnd func() float64) *pageFetch {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return &pageFetch{policy: policy, clock: clock, rand: rnd, state: FetchPending}
}

// State returns the current state.
func (f *pageFetch) State() FetchState {
	return f.state
}

// Attempts returns the number of attempts recorded so far.
func (f *pageFetch) Attempts() int {
	return f.attempts
}

// Delay returns the wait chosen on entering backing_off.
func (f *pageFetch) Delay() time.Duration {
	return f.delay
}

// Err returns the error of the last failed attempt.
func (f *pageFetch) Err() error {
	return f.lastErr
}

// Succeed records a successful attempt.
func (f *pageFetch) Succeed() {
	if f.state != FetchPending {
		return
	}
	f.attempts++
	f.state = FetchSucceeded
}

// Fail records a throttled or transiently failed attempt and returns the
// next state. retryAfter is the server-suggested wait, zero if none.
func (f *pageFetch) Fail(err error, retryAfter time.Duration) FetchState {
	if f.state != FetchPending {
		return f.state
	}
	f.attempts++
	f.lastErr = err
	if f.attempts >= f.policy.MaxAttempts {
		f.state = FetchExhausted
		return f.state
	}

	base := f.policy.BaseDelay(f.attempts)
	d := base - time.Duration(float64(base)*f.policy.Jitter*f.rand())
	if retryAfter > d {
		d = retryAfter
	}
	if f.policy.MaxDelay > 0 && d > f.policy.MaxDelay {
		d = f.policy.MaxDelay
	}
	f.delay = d
	f.state = FetchBackingOff
	return f.state
}

// Wait sleeps out the backoff and returns to pending.
// A cancelled context leaves the machine backing off and returns ctx.Err().
func (f *pageFetch) Wait(ctx context.Context) error {
	if f.state != FetchBackingOff {
		return nil
	}
	if err := f.clock.Sleep(ctx, f.delay); err != nil {
		return err
	}
	f.state = FetchPending
	return nil
}
