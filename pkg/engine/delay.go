package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const defaultSweepInterval = time.Minute

// DelayScheduler resumes parked runs whose resume timestamp has passed.
// Runs waiting on a delay hold no worker; this sweep is the only thing
// that picks them back up.
type DelayScheduler struct {
	engine      *Engine
	persistence persistence.Persistence
	interval    time.Duration
	logger      *slog.Logger

	cron *cron.Cron
	now  func() time.Time
}

func NewDelayScheduler(engine *Engine, p persistence.Persistence, interval time.Duration, logger *slog.Logger) *DelayScheduler {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &DelayScheduler{
		engine:      engine,
		persistence: p,
		interval:    interval,
		logger:      logger.With("module", "delay_scheduler"),
		now:         time.Now,
	}
}

func (s *DelayScheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	spec := fmt.Sprintf("@every %s", s.interval)

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Delay sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule delay sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Delay scheduler started", "interval", s.interval)

	return nil
}

func (s *DelayScheduler) Stop(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}

	s.logger.InfoContext(ctx, "Delay scheduler stopped")

	return nil
}

// Sweep resumes every run due at the time of the call. One run's resume
// failure is logged and skipped so the rest of the batch still moves.
func (s *DelayScheduler) Sweep(ctx context.Context) error {
	due, err := s.persistence.RunRepository().DueDelayed(ctx, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list due runs: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.InfoContext(ctx, "Resuming delayed runs", "count", len(due))

	for _, run := range due {
		if err := s.engine.ResumeRun(ctx, run.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to resume run",
				"run_id", run.ID, "error", err)
		}
	}

	return nil
}
