package view

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecapsule/pkg/aggregate"
	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func sample() models.Capsule {
	return models.Capsule{
		ID:          "c1",
		Kind:        models.KindCollaborative,
		Title:       "Class of 2026",
		Description: "for later",
		Content:     "secret",
		Media:       []media.Item{{URL: "/media/a.mov", Kind: media.KindVideo}},
		LockDate:    at(time.Hour),
		Members:     []models.Member{{Name: "A", Email: "a@x.com", Resolved: true}},
		CreatedAt:   now.Add(-time.Hour),
		CreatedBy:   "a@x.com",
		Entries: []models.Entry{
			{ID: "e1", CapsuleID: "c1", Content: "open entry", CreatedBy: "a@x.com", CreatedAt: now},
			{ID: "e2", CapsuleID: "c1", Content: "sealed entry", LockDate: at(24 * time.Hour), CreatedBy: "a@x.com", CreatedAt: now},
		},
	}
}

func TestBuildCapsuleWithholdsWhileLocked(t *testing.T) {
	v := BuildCapsule(sample(), now)
	assert.True(t, v.Locked())
	assert.Empty(t, v.Content)
	assert.Empty(t, v.Description)
	assert.Empty(t, v.Media)
	assert.Equal(t, "Class of 2026", v.Title)
	require.NotNil(t, v.Lock.Remaining)
	assert.Equal(t, int64(1), v.Lock.Remaining.Hours)

	require.Len(t, v.Entries, 2)
	assert.Equal(t, "open entry", v.Entries[0].Content, "entries lock independently")
	assert.False(t, v.Entries[0].Lock.Locked)
	assert.Empty(t, v.Entries[1].Content)
	assert.Equal(t, int64(1), v.Entries[1].Lock.Remaining.Days)
}

func TestBuildCapsuleRevealsAtLockDate(t *testing.T) {
	c := sample()
	v := BuildCapsule(c, *c.LockDate)
	assert.False(t, v.Locked())
	assert.Equal(t, "secret", v.Content)
	require.Len(t, v.Media, 1)
	assert.Equal(t, media.KindVideo, v.Media[0].Kind)
	assert.Empty(t, v.Entries[1].Content, "entry still sealed")
}

func TestCapsuleViewAggregates(t *testing.T) {
	list := BuildCapsules([]models.Capsule{sample(), {ID: "c2", Kind: models.KindPersonal, Title: "p", CreatedAt: now}}, now)
	tree := aggregate.BuildTree(list, "", now)
	assert.Equal(t, aggregate.Tally{Locked: 1, Unlocked: 1}, tree.Counts)
}

func TestViewJSONRoundTrip(t *testing.T) {
	v := BuildCapsule(sample(), now)
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")

	var back Capsule
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, v.Lock, back.Lock)
	assert.Equal(t, v.Entries[0].Content, back.Entries[0].Content)
}

func TestBoardTracksOnlyLocked(t *testing.T) {
	b := NewBoard(context.Background(), time.Hour, nil, nil)
	defer b.Close()

	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)
	assert.True(t, b.Track("x", &future))
	assert.False(t, b.Track("x", &future), "already tracked")
	assert.False(t, b.Track("y", &past))
	assert.False(t, b.Track("z", nil))
	assert.Equal(t, 1, b.Len())

	b.Untrack("x")
	assert.Equal(t, 0, b.Len())
}

func TestBoardFlipsToUnlocked(t *testing.T) {
	var mu sync.Mutex
	var unlocked []string
	ticks := 0
	done := make(chan struct{})
	b := NewBoard(context.Background(), 5*time.Millisecond,
		func(string, lockclock.State) {
			mu.Lock()
			ticks++
			mu.Unlock()
		},
		func(id string) {
			mu.Lock()
			unlocked = append(unlocked, id)
			mu.Unlock()
			close(done)
		},
	)
	defer b.Close()

	soon := time.Now().UTC().Add(30 * time.Millisecond)
	require.True(t, b.Track("e1", &soon))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never flipped")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"e1"}, unlocked)
	assert.Greater(t, ticks, 1)
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBoardUnlockCallbackMayCloseBoard(t *testing.T) {
	done := make(chan struct{})
	var b *Board
	b = NewBoard(context.Background(), 5*time.Millisecond, nil, func(id string) {
		b.Untrack(id)
		b.Close()
		close(done)
	})
	later := time.Now().UTC().Add(time.Hour)
	soon := time.Now().UTC().Add(20 * time.Millisecond)
	require.True(t, b.Track("long", &later))
	require.True(t, b.Track("short", &soon))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("closing from the unlock callback blocked")
	}
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Track("again", &later), "closed board accepts nothing")
}

func TestBoardCloseStopsEverything(t *testing.T) {
	b := NewBoard(context.Background(), time.Millisecond, nil, nil)
	c := BuildCapsule(models.Capsule{
		ID: "c", LockDate: ptr(time.Now().UTC().Add(time.Hour)),
		Entries: []models.Entry{{ID: "e", LockDate: ptr(time.Now().UTC().Add(time.Hour))}},
	}, time.Now().UTC())
	assert.Equal(t, 2, b.TrackCapsule(c))
	b.Close()
	assert.Equal(t, 0, b.Len())
	future := time.Now().UTC().Add(time.Hour)
	assert.False(t, b.Track("late", &future))
}

func ptr(t time.Time) *time.Time { return &t }
