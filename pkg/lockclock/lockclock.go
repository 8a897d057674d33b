// Package lockclock decides whether content is sealed and how long remains
// until it opens.
package lockclock

import "time"

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Remaining is a countdown split into whole units. Hours, Minutes and
// Seconds are always below their next unit.
type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Milliseconds reconstructs the floored countdown.
func (r Remaining) Milliseconds() int64 {
	return r.Days*msPerDay + r.Hours*msPerHour + r.Minutes*msPerMinute + r.Seconds*msPerSecond
}

// State is the lock evaluation at one instant. Remaining is set only while
// locked.
type State struct {
	Locked    bool       `json:"locked"`
	Remaining *Remaining `json:"remaining,omitempty"`
}

// Unlocked is the state of content without a lock date, or past it.
var Unlocked = State{}

// Evaluate reports whether now is strictly before target. A nil target is
// never locked, and now == target is unlocked.
func Evaluate(target *time.Time, now time.Time) State {
	if target == nil || !now.Before(*target) {
		return Unlocked
	}
	r := Split(target.Sub(now).Milliseconds())
	return State{Locked: true, Remaining: &r}
}

// IsLocked is Evaluate(...).Locked.
func IsLocked(target *time.Time, now time.Time) bool {
	return target != nil && now.Before(*target)
}

// Split breaks a millisecond duration into floored day/hour/minute/second
// parts. Negative input is treated as zero.
func Split(ms int64) Remaining {
	if ms < 0 {
		ms = 0
	}
	return Remaining{
		Days:    ms / msPerDay,
		Hours:   (ms % msPerDay) / msPerHour,
		Minutes: (ms % msPerHour) / msPerMinute,
		Seconds: (ms % msPerMinute) / msPerSecond,
	}
}
