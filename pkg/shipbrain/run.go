package shipbrain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/scheduler"
)

// Periodic job names.
const (
	JobMemoryCleanup  = "memory_cleanup"
	JobAlertExpiry    = "alert_expiry"
	JobDecisionExpiry = "decision_expiry"
	JobRefresh        = "refresh"
	JobAnalysis       = "analysis"
	JobPersist        = "persist"
)

func (c *Core) newScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(scheduler.WithLogger(c.logger))
	jobs := []scheduler.Job{
		{Name: JobMemoryCleanup, Interval: c.settings.Memory.CleanupInterval, Run: func(ctx context.Context) error {
			n := c.memory.Cleanup()
			c.metrics.RecordSweep(ctx, JobMemoryCleanup, n)
			observability.LogSweep(c.logger, JobMemoryCleanup, n)
			return nil
		}},
		{Name: JobAlertExpiry, Interval: c.settings.Alerts.ExpireInterval, Run: func(ctx context.Context) error {
			c.alerts.ExpireSweep(ctx)
			return nil
		}},
		{Name: JobDecisionExpiry, Interval: c.settings.Decisions.ExpireInterval, Run: func(ctx context.Context) error {
			c.decisions.ExpireSweep(ctx)
			return nil
		}},
		{Name: JobRefresh, Interval: c.settings.Analysis.RefreshInterval, Run: func(ctx context.Context) error {
			c.Refresh(ctx)
			return nil
		}},
		{Name: JobAnalysis, Interval: c.settings.Analysis.Interval, Run: func(ctx context.Context) error {
			c.Analyze(ctx)
			return nil
		}},
		{Name: JobPersist, Interval: c.settings.Storage.PersistInterval, Run: c.Persist},
	}
	for _, j := range jobs {
		// A zero interval disables the job.
		if j.Interval <= 0 {
			continue
		}
		if err := s.Add(j); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.Name, err)
		}
	}
	return s, nil
}

// RunJob runs one periodic job immediately.
func (c *Core) RunJob(ctx context.Context, name string) error {
	return c.sched.RunNow(ctx, name)
}

// JobStats returns run counters for the periodic jobs.
func (c *Core) JobStats() map[string]scheduler.Stats {
	return c.sched.Stats()
}

// Run starts the periodic jobs and the rule file watcher (when a rule file
// is configured with watching on) and blocks until ctx is cancelled. A
// final snapshot is written on the way out.
func (c *Core) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.sched.Run(gctx) })
	if c.watcher != nil && c.settings.Rules.Watch {
		g.Go(func() error { return c.watcher.Run(gctx) })
	}
	err := g.Wait()

	// ctx is done here; the snapshot must not inherit its cancellation.
	if perr := c.Persist(context.WithoutCancel(ctx)); perr != nil {
		c.logger.Warn("final snapshot failed", "error", perr)
	}
	return err
}
