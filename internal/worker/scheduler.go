package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexocrm/automation-engine/internal/engine"
)

// Scheduler drives schedule-triggered rules by feeding periodic clock ticks
// to the evaluator. It owns the tick lifecycle: started on boot, stopped on
// shutdown, with an in-flight tick always allowed to finish.
type Scheduler struct {
	evaluator *engine.Evaluator
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a new schedule scanner
func NewScheduler(evaluator *engine.Evaluator, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		evaluator: evaluator,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run drives the clock-tick loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("schedule scanner started",
		slog.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("schedule scanner stopped")
			return
		case <-ticker.C:
			if err := s.evaluator.OnClockTick(ctx, s.now()); err != nil {
				// Tick-level failures are retried at the next interval.
				s.logger.Error("schedule scan tick failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
