package view

import (
	"context"
	"sync"
	"time"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/timeutil"
)

// Board keeps one countdown per visible locked item. Callbacks run on the
// watch goroutines and may be called concurrently for different ids.
type Board struct {
	ctx      context.Context
	interval time.Duration
	onTick   func(id string, st lockclock.State)
	onUnlock func(id string)

	mu      sync.Mutex
	watches map[string]*lockclock.Watch
	closed  bool
}

// NewBoard creates an empty board. A zero interval means one second.
//
// onTick must not call Untrack or Close: the countdown it belongs to is still
// running and stopping it from its own goroutine blocks forever. onUnlock may
// do either, since the finished countdown has already left the board.
func NewBoard(ctx context.Context, interval time.Duration, onTick func(string, lockclock.State), onUnlock func(string)) *Board {
	return &Board{
		ctx:      ctx,
		interval: interval,
		onTick:   onTick,
		onUnlock: onUnlock,
		watches:  make(map[string]*lockclock.Watch),
	}
}

// Track starts a countdown for id if it is currently locked and not already
// tracked. It reports whether a countdown was started.
func (b *Board) Track(id string, lockDate *time.Time) bool {
	if !lockclock.IsLocked(lockDate, timeutil.Now()) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if _, ok := b.watches[id]; ok {
		return false
	}
	b.watches[id] = lockclock.Start(b.ctx, lockDate, b.interval,
		func(st lockclock.State) {
			if b.onTick != nil {
				b.onTick(id, st)
			}
		},
		func() {
			b.mu.Lock()
			delete(b.watches, id)
			b.mu.Unlock()
			if b.onUnlock != nil {
				b.onUnlock(id)
			}
		},
	)
	return true
}

// TrackCapsule tracks a capsule and each of its entries.
func (b *Board) TrackCapsule(c Capsule) int {
	n := 0
	if b.Track(c.ID, c.LockDate) {
		n++
	}
	for _, e := range c.Entries {
		if b.Track(e.ID, e.LockDate) {
			n++
		}
	}
	return n
}

// Untrack stops the countdown for id, if any.
func (b *Board) Untrack(id string) {
	b.mu.Lock()
	w, ok := b.watches[id]
	delete(b.watches, id)
	b.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// Len is the number of running countdowns.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watches)
}

// Close stops every countdown. The board cannot be reused.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	ws := make([]*lockclock.Watch, 0, len(b.watches))
	for _, w := range b.watches {
		ws = append(ws, w)
	}
	b.watches = map[string]*lockclock.Watch{}
	b.mu.Unlock()
	for _, w := range ws {
		w.Stop()
	}
}
