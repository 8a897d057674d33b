// Package aggregate groups capsules by creation day and derives lock counts
// for list and tree displays.
package aggregate

import (
	"time"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/models"
	"timecapsule/pkg/timeutil"
)

// Item is anything listable as a capsule: stored capsules and their views.
type Item interface {
	CapsuleKind() models.Kind
	Created() time.Time
	Unlocks() *time.Time
}

// Group is one calendar day of capsules in receive order.
type Group[T Item] struct {
	Day      string `json:"day"`
	Capsules []T    `json:"capsules"`
}

// Tally counts capsules by lock state at a single instant.
type Tally struct {
	Locked   int `json:"locked"`
	Unlocked int `json:"unlocked"`
}

// GroupByDay buckets items by the calendar day of their creation time. Groups
// appear in first-seen order and items keep their order within a group.
func GroupByDay[T Item](items []T) []Group[T] {
	groups := []Group[T]{}
	index := make(map[string]int)
	for _, it := range items {
		day := timeutil.DayKey(it.Created())
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, Group[T]{Day: day})
		}
		groups[i].Capsules = append(groups[i].Capsules, it)
	}
	return groups
}

// Counts evaluates every item against the same now.
func Counts[T Item](items []T, now time.Time) Tally {
	var t Tally
	for _, it := range items {
		if lockclock.IsLocked(it.Unlocks(), now) {
			t.Locked++
		} else {
			t.Unlocked++
		}
	}
	return t
}

// OfKind filters items by capsule kind, keeping order. An empty kind keeps
// everything.
func OfKind[T Item](items []T, kind models.Kind) []T {
	if kind == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.CapsuleKind() == kind {
			out = append(out, it)
		}
	}
	return out
}

// Tree is the combined output used by tree views.
type Tree[T Item] struct {
	Groups []Group[T] `json:"groups"`
	Counts Tally      `json:"counts"`
}

// BuildTree filters by kind, groups by day and counts with one now snapshot.
func BuildTree[T Item](items []T, kind models.Kind, now time.Time) Tree[T] {
	items = OfKind(items, kind)
	return Tree[T]{Groups: GroupByDay(items), Counts: Counts(items, now)}
}
