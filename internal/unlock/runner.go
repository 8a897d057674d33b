// Package unlock announces capsules and entries whose lock date has passed.
// Each item is announced once: the sweep writes an unlock marker to the store
// and an audit record, and skips items that already carry a marker.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store"
	"timecapsule/pkg/store/keys"
	"timecapsule/pkg/timeutil"

	"github.com/google/uuid"
)

// ErrRunning is returned by RunOnce while another sweep is in progress in
// this process.
var ErrRunning = errors.New("unlock sweep already running")

const maxConsecutiveRenewFails = 3

// Options configures a Runner.
type Options struct {
	Cron     string
	DryRun   bool
	LockTTL  time.Duration
	StateDir string
}

// Item is one announced unlock.
type Item struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	CapsuleID string    `json:"capsule_id"`
	LockDate  time.Time `json:"lock_date"`
}

// Report summarises a sweep.
type Report struct {
	RunID     string `json:"run_id"`
	DryRun    bool   `json:"dry_run"`
	Skipped   bool   `json:"skipped,omitempty"`
	Scanned   int    `json:"scanned"`
	Unlocked  []Item `json:"unlocked"`
	StartedAt string `json:"started_at"`
}

// Runner sweeps the store for newly unlocked items.
type Runner struct {
	store *store.Store
	opts  Options
	lease *fileLease

	mu      sync.Mutex
	running bool
}

// New builds a Runner. The lease lives under opts.StateDir.
func New(st *store.Store, opts Options) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Runner{store: st, opts: opts, lease: newFileLease(opts.StateDir)}
}

// RunOnce performs a single sweep. A sweep that finds the lease held by
// another owner returns a Report with Skipped set.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Report{}, ErrRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	rep := Report{
		RunID:     uuid.NewString(),
		DryRun:    r.opts.DryRun,
		Unlocked:  []Item{},
		StartedAt: timeutil.Now().Format(time.RFC3339),
	}
	owner := rep.RunID
	acq, err := r.lease.Acquire(owner, r.opts.LockTTL)
	if err != nil {
		logger.Error("unlock_lease_acquire_error", "error", err)
		return rep, fmt.Errorf("lease acquire failed: %w", err)
	}
	if !acq {
		logger.Info("unlock_lease_not_acquired")
		rep.Skipped = true
		return rep, nil
	}
	defer func() {
		if err := r.lease.Release(owner); err != nil {
			logger.Error("unlock_lease_release_error", "error", err)
		}
	}()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go r.heartbeat(runCtx, runCancel, owner)

	logger.AuditInfo("unlock_audit_header", "run_id", rep.RunID, "started_at", rep.StartedAt, "dry_run", rep.DryRun)
	now := timeutil.Now()
	err = r.store.AllCapsules(runCtx, func(c *models.Capsule) error {
		rep.Scanned++
		if err := r.consider(&rep, keys.MarkerCapsule, c.ID, c.ID, c.LockDate, now); err != nil {
			return err
		}
		for _, e := range c.Entries {
			rep.Scanned++
			if err := r.consider(&rep, keys.MarkerEntry, e.ID, c.ID, e.LockDate, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("unlock sweep aborted after lease renewal failures: %w", err)
		}
		logger.Error("unlock_run_error", "run_id", rep.RunID, "error", err)
		return rep, err
	}
	logger.AuditInfo("unlock_audit_footer", "run_id", rep.RunID, "scanned", rep.Scanned, "unlocked", len(rep.Unlocked))
	logger.Info("unlock_run_complete", "run_id", rep.RunID, "scanned", rep.Scanned, "unlocked", len(rep.Unlocked), "dry_run", rep.DryRun)
	return rep, nil
}

func (r *Runner) consider(rep *Report, kind, id, capsuleID string, lockDate *time.Time, now time.Time) error {
	if lockDate == nil || lockclock.IsLocked(lockDate, now) {
		return nil
	}
	done, err := r.store.UnlockNotified(kind, id)
	if err != nil {
		return fmt.Errorf("check unlock marker %s %s: %w", kind, id, err)
	}
	if done {
		return nil
	}
	item := Item{Kind: kind, ID: id, CapsuleID: capsuleID, LockDate: *lockDate}
	event := kind + "_unlocked"
	if r.opts.DryRun {
		logger.AuditInfo(event, "run_id", rep.RunID, "id", id, "capsule_id", capsuleID, "lock_date", lockDate.Format(time.RFC3339), "status", "dry_run")
		rep.Unlocked = append(rep.Unlocked, item)
		return nil
	}
	if err := r.store.MarkUnlockNotified(kind, id, now); err != nil {
		logger.AuditInfo(event, "run_id", rep.RunID, "id", id, "capsule_id", capsuleID, "status", "failed", "error", err.Error())
		return err
	}
	logger.AuditInfo(event, "run_id", rep.RunID, "id", id, "capsule_id", capsuleID, "lock_date", lockDate.Format(time.RFC3339), "status", "success")
	rep.Unlocked = append(rep.Unlocked, item)
	return nil
}

// heartbeat renews the lease every third of its TTL and aborts the run after
// repeated renewal failures.
func (r *Runner) heartbeat(ctx context.Context, abort context.CancelFunc, owner string) {
	t := time.NewTicker(r.opts.LockTTL / 3)
	defer t.Stop()
	var failCount int
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.lease.Renew(owner, r.opts.LockTTL); err != nil {
				failCount++
				logger.Error("unlock_lease_renew_failed", "error", err, "count", failCount)
				if failCount >= maxConsecutiveRenewFails {
					abort()
					return
				}
				continue
			}
			failCount = 0
		}
	}
}
