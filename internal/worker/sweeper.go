package worker

import (
	"context"
	"time"

	"todo-lifecycle/pkg/logger"
)

// PastDueSweeper runs one bulk past-due pass.
type PastDueSweeper interface {
	SweepPastDue(ctx context.Context) (int64, error)
}

// Sweeper runs the past-due pass once on start and then every interval.
type Sweeper struct {
	target   PastDueSweeper
	interval time.Duration
}

func NewSweeper(target PastDueSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{target: target, interval: interval}
}

// Run blocks until ctx is cancelled. A failed pass is logged and the next
// tick tries again.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.Info(ctx, "Past-due sweeper started", "interval", s.interval.String())
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Past-due sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := s.target.SweepPastDue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error(ctx, "Past-due sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info(ctx, "Past-due sweep", "transitioned", n, "took_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Debug(ctx, "Past-due sweep", "transitioned", 0)
}
