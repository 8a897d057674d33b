package lockclock

import (
	"context"
	"sync"
	"time"

	"timecapsule/pkg/timeutil"
)

// DefaultInterval is the countdown refresh period.
const DefaultInterval = time.Second

// Watch re-evaluates a lock date on a fixed interval until it opens.
type Watch struct {
	target   *time.Time
	interval time.Duration
	onTick   func(State)
	onUnlock func()

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start evaluates target immediately and then once per interval, calling
// onTick with each state. When the state turns unlocked onUnlock runs once and
// the watch ends. Cancelling ctx or calling Stop releases the ticker; no
// callback fires after Stop returns.
func Start(ctx context.Context, target *time.Time, interval time.Duration, onTick func(State), onUnlock func()) *Watch {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		target:   target,
		interval: interval,
		onTick:   onTick,
		onUnlock: onUnlock,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *Watch) run(ctx context.Context) {
	defer close(w.done)
	if w.step(ctx) {
		return
	}
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if w.step(ctx) {
				return
			}
		}
	}
}

// step reports whether the watch is finished.
func (w *Watch) step(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	st := Evaluate(w.target, timeutil.Now())
	if w.onTick != nil {
		w.onTick(st)
	}
	if !st.Locked {
		if w.onUnlock != nil {
			w.onUnlock()
		}
		return true
	}
	return false
}

// Stop ends the watch and waits for the loop to exit.
func (w *Watch) Stop() {
	w.once.Do(w.cancel)
	<-w.done
}

// Done is closed once the watch has ended.
func (w *Watch) Done() <-chan struct{} { return w.done }
