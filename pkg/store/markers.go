package store

import (
	"fmt"
	"time"

	"timecapsule/pkg/store/keys"
)

// MarkUnlockNotified records that an unlock was announced for an item.
func (s *Store) MarkUnlockNotified(kind, id string, at time.Time) error {
	b, err := s.newBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Set([]byte(keys.GenUnlockMarkerKey(kind, id)), []byte(at.UTC().Format(time.RFC3339Nano)), nil); err != nil {
		return err
	}
	if err := s.apply(b); err != nil {
		return fmt.Errorf("mark unlock %s %s: %w", kind, id, err)
	}
	return nil
}

// UnlockNotified reports whether an unlock marker exists for an item.
func (s *Store) UnlockNotified(kind, id string) (bool, error) {
	return s.has(keys.GenUnlockMarkerKey(kind, id))
}
