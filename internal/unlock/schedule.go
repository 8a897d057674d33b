package unlock

import (
	"context"
	"errors"
	"time"

	"github.com/adhocore/gronx"

	"timecapsule/pkg/logger"
	"timecapsule/pkg/timeutil"
)

// Start runs the sweep on the configured cron schedule until ctx is done.
// The returned function stops the loop and waits for it to exit.
func (r *Runner) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger.Info("unlock_sweeper_enabled", "cron", r.opts.Cron, "dry_run", r.opts.DryRun)
	go func() {
		defer close(done)
		r.scheduleLoop(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.opts.Cron, timeutil.Now(), false)
		if err != nil {
			logger.Error("unlock_nexttick_failed", "cron", r.opts.Cron, "error", err)
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}
		wait := next.Sub(timeutil.Now())
		if wait < time.Second {
			wait = time.Second
		}
		if !sleep(ctx, wait) {
			return
		}
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunning) && ctx.Err() == nil {
			logger.Error("unlock_run_error", "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
