package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Passer runs one check pass.
type Passer interface {
	RunPass(ctx context.Context) (Summary, error)
}

// Loop triggers passes in process for deployments without an external cron.
type Loop struct {
	Logger   *zap.Logger
	Passes   Passer
	Interval time.Duration
}

func NewLoop(logger *zap.Logger, p Passer, interval time.Duration) *Loop {
	if interval < 0 {
		interval = 0
	}
	return &Loop{Logger: logger, Passes: p, Interval: interval}
}

// Run does an immediate pass, then one per tick. Returns when ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l.Interval == 0 {
		// external trigger only
		l.Logger.Info("loop_disabled")
		return
	}
	t := time.NewTicker(l.Interval)
	defer t.Stop()

	l.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("loop_stopped")
			return
		case <-t.C:
			l.runOnce(ctx)
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	if _, err := l.Passes.RunPass(ctx); err != nil {
		l.Logger.Warn("loop_pass_failed", zap.Error(err))
	}
}
