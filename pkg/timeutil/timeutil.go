package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	clockMu sync.RWMutex
	clock   = func() time.Time { return time.Now().UTC() }
)

// Now returns the current UTC time from the installed clock.
func Now() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock()
}

// SetClock swaps the clock used by Now. Tests only.
func SetClock(fn func() time.Time) {
	clockMu.Lock()
	defer clockMu.Unlock()
	clock = fn
}

// ResetClock restores the wall clock.
func ResetClock() {
	SetClock(func() time.Time { return time.Now().UTC() })
}

const dateLayout = "2006-01-02"

// ParseLockDate parses a lock date as sent by clients. Empty input means no
// lock date. Date-only values resolve to midnight UTC of that day.
func ParseLockDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid lock date %q: expected YYYY-MM-DD or RFC3339", raw)
	}
	t = t.UTC()
	return &t, nil
}

// DayKey returns the calendar day of t in its own location.
func DayKey(t time.Time) string {
	return t.Format(dateLayout)
}
