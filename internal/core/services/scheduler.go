package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler periodically syncs every user with stored credentials.
// Overlapping ticks are skipped while a pass is still running.
type Scheduler struct {
	spec   string
	users  driven.CredentialsStore
	engine driving.SyncEngine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cron    *cron.Cron
}

// NewScheduler creates a scheduler running on a cron spec (e.g. "@every 30m").
func NewScheduler(spec string, users driven.CredentialsStore, engine driving.SyncEngine) *Scheduler {
	return &Scheduler{spec: spec, users: users, engine: engine}
}

// Start schedules the sync pass and blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.cron = c
	stopCh := s.stopCh
	s.mu.Unlock()

	c.Start()
	logger.Info("Scheduler started (%s)", s.spec)

	select {
	case <-ctx.Done():
		s.shutdown()
		return ctx.Err()
	case <-stopCh:
		return nil
	}
}

// Stop gracefully shuts down the scheduler, waiting for a running pass.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.mu.Unlock()
	s.shutdown()
	return nil
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce syncs every user with stored credentials and returns the number of
// users processed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list users: %v", err)
		return 0
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		summary, err := s.engine.SyncUser(ctx, userID)
		if err != nil {
			logger.Error("scheduler: sync for %s failed: %v", userID, err)
			continue
		}
		if len(summary.Failures) > 0 {
			logger.Warn("scheduler: sync for %s finished with %d failure(s)", userID, len(summary.Failures))
		}
	}
	return len(users)
}
