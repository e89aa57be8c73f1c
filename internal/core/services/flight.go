package services

import (
	"context"
	"sync"
	"time"
)

// flight is the context of one in-flight course sync. It carries the values
// of the caller that started the run and is cancelled only once every caller
// waiting on the run has had its own context cancelled.
type flight struct {
	base context.Context
	done chan struct{}

	mu      sync.Mutex
	waiters []context.Context
	stops   []func() bool
	closed  bool
}

var _ context.Context = (*flight)(nil)

func newFlight(ctx context.Context) *flight {
	return &flight{
		base: context.WithoutCancel(ctx),
		done: make(chan struct{}),
	}
}

// join registers ctx as a waiter on the run.
func (f *flight) join(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiters = append(f.waiters, ctx)
	f.stops = append(f.stops, context.AfterFunc(ctx, func() { _ = f.Err() }))
}

// land detaches the flight from its waiters once the run is over.
func (f *flight) land() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stop := range f.stops {
		stop()
	}
	f.stops = nil
}

// Deadline reports no deadline; waiters' deadlines only count through Err.
func (f *flight) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Done is closed once every waiter has gone.
func (f *flight) Done() <-chan struct{} {
	return f.done
}

// Err returns context.Canceled once every waiter's context is done.
// It is evaluated synchronously so page-boundary checks see a cancellation
// as soon as the last waiter leaves.
func (f *flight) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return context.Canceled
	}
	if len(f.waiters) == 0 {
		return nil
	}
	for _, w := range f.waiters {
		if w.Err() == nil {
			return nil
		}
	}
	f.closed = true
	close(f.done)
	return context.Canceled
}

// Value returns values from the context that started the run.
func (f *flight) Value(key any) any {
	return f.base.Value(key)
}
