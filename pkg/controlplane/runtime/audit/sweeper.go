package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

// DefaultSchedule runs the sweep every night at 03:00.
const DefaultSchedule = "0 3 * * *"

// Sweeper deletes audit entries older than the retention period on a cron
// schedule.
type Sweeper struct {
	cron      *cron.Cron
	store     store.AuditStore
	retention time.Duration
	schedule  string
	now       func() time.Time
}

// NewSweeper creates a Sweeper. A zero retention disables sweeping.
func NewSweeper(s store.AuditStore, retention time.Duration, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		cron:      cron.New(),
		store:     s,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Sweeper) Start() error {
	if s.retention <= 0 {
		logger.Info("Audit log retention disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Warn("Audit log sweep failed", logger.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid audit sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	logger.Info("Audit log sweeper started", "schedule", s.schedule, "retention", s.retention)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes the entries older than the retention period.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	n, err := s.store.PurgeAuditLogs(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("Audit log entries purged", logger.KeyCount, n)
	}
	return n, nil
}
