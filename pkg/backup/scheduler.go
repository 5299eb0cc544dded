package backup

import (
	"context"
	"time"

	"github.com/marmos91/distfs/internal/logger"
)

// Scheduler runs a Runner at a fixed interval.
type Scheduler struct {
	runner   *Runner
	interval time.Duration

	// OnRun, if set, receives every report. Used by tests.
	OnRun func(Report, error)
}

// NewScheduler returns a scheduler. interval usually comes from
// config.ParseSchedule.
func NewScheduler(runner *Runner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval}
}

// Start runs one backup immediately and then one per interval until ctx is
// cancelled. Runs never overlap: a slow run delays the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("Backup scheduler started",
		logger.KeyTarget, s.runner.target.Kind(), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		rep, err := s.runner.Run(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("Backup run failed", "run_id", rep.RunID, logger.Err(err))
		}
		if s.OnRun != nil {
			s.OnRun(rep, err)
		}

		select {
		case <-ctx.Done():
			logger.Info("Backup scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
