// Package store persists capsules, entries, accounts and unlock markers in
// pebble.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"timecapsule/pkg/logger"

	"github.com/cockroachdb/pebble"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotMember        = errors.New("caller is not a member of this capsule")
	ErrNotCollaborative = errors.New("entries can only be added to collaborative capsules")
)

// Options tunes the pebble instance.
type Options struct {
	DisableWAL bool
}

// Store wraps a pebble database.
type Store struct {
	db            *pebble.DB
	path          string
	walDisabled   bool
	pendingWrites atomic.Uint64

	locksMu      sync.Mutex
	capsuleLocks map[string]*sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.DisableWAL {
		logger.Warn("durability_disabled", "durability", "no WAL enabled", "path", path)
	}
	db, err := pebble.Open(path, &pebble.Options{DisableWAL: opts.DisableWAL})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &Store{
		db:           db,
		path:         path,
		walDisabled:  opts.DisableWAL,
		capsuleLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ready reports whether the database is open.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

// Path returns the directory the store was opened on.
func (s *Store) Path() string { return s.path }

// PendingWrites is the number of applied write batches since open.
func (s *Store) PendingWrites() uint64 { return s.pendingWrites.Load() }

// IsNotFound reports whether err is a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pebble.ErrNotFound)
}

func (s *Store) writeOpt(requestSync bool) *pebble.WriteOptions {
	if requestSync && !s.walDisabled {
		return pebble.Sync
	}
	return pebble.NoSync
}

// returns mutex for given capsule (creates if needed)
func (s *Store) capsuleLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l, ok := s.capsuleLocks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.capsuleLocks[id] = l
	return l
}

func (s *Store) newBatch() (*pebble.Batch, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	return s.db.NewBatch(), nil
}

func (s *Store) apply(b *pebble.Batch) error {
	if !s.Ready() {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := s.db.Apply(b, s.writeOpt(true)); err != nil {
		logger.Error("pebble_apply_batch_failed", "error", err)
		return err
	}
	s.pendingWrites.Add(1)
	return nil
}

func (s *Store) getRaw(key string) ([]byte, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return nil, ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (s *Store) getJSON(key string, out any) error {
	raw, err := s.getRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) has(key string) (bool, error) {
	_, err := s.getRaw(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scan calls fn for every key under prefix in key order. Key and value are
// only valid during the call.
func (s *Store) scan(ctx context.Context, prefix string, fn func(key, value []byte) error) error {
	if !s.Ready() {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	pfx := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ListKeys lists all keys under prefix; used by admin tooling.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.scan(ctx, prefix, func(k, _ []byte) error {
		out = append(out, string(k))
		return nil
	})
	return out, err
}
