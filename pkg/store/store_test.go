package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetCapsule(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	lock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &models.Capsule{
		Kind:      models.KindPersonal,
		Title:     "letters",
		Content:   "hello future",
		Media:     []media.Item{media.Classify(media.Ref{URL: "/media/x.mp4"})},
		LockDate:  &lock,
		CreatedBy: "Me@X.com",
	}
	require.NoError(t, s.CreateCapsule(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.Equal(t, "me@x.com", c.CreatedBy)

	got, err := s.GetCapsule(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello future", got.Content)
	assert.Equal(t, media.KindVideo, got.Media[0].Kind)
	require.NotNil(t, got.LockDate)
	assert.True(t, lock.Equal(*got.LockDate))
	assert.Equal(t, uint64(1), s.PendingWrites())

	_, err = s.GetCapsule(ctx, "missing")
	assert.True(t, IsNotFound(err))
	_, err = s.GetCapsule(ctx, "bad:id")
	assert.True(t, IsNotFound(err))
}

func TestCreateCapsuleRejectsInvalid(t *testing.T) {
	s := openTest(t)
	err := s.CreateCapsule(context.Background(), &models.Capsule{
		Kind: models.KindCollaborative, Title: "t", CreatedBy: "a@x.com",
		Members: []models.Member{{Email: "b@x.com"}},
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestListCapsulesForMembers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mine := &models.Capsule{Kind: models.KindPersonal, Title: "mine", CreatedBy: "a@x.com", CreatedAt: t0.Add(time.Hour)}
	shared := &models.Capsule{
		Kind: models.KindCollaborative, Title: "shared", CreatedBy: "b@x.com", CreatedAt: t0,
		Members: []models.Member{{Name: "B", Email: "b@x.com"}, {Name: "A", Email: "A@x.com"}},
	}
	other := &models.Capsule{Kind: models.KindPersonal, Title: "other", CreatedBy: "c@x.com", CreatedAt: t0}
	for _, c := range []*models.Capsule{mine, shared, other} {
		require.NoError(t, s.CreateCapsule(ctx, c))
	}

	list, err := s.ListCapsulesFor(ctx, "A@X.COM")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "shared", list[0].Title)
	assert.Equal(t, "mine", list[1].Title)

	var all int
	require.NoError(t, s.AllCapsules(ctx, func(*models.Capsule) error { all++; return nil }))
	assert.Equal(t, 3, all)
}

func TestAppendEntry(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	shared := &models.Capsule{
		Kind: models.KindCollaborative, Title: "shared", CreatedBy: "b@x.com",
		Members: []models.Member{{Email: "b@x.com"}, {Email: "a@x.com"}},
	}
	personal := &models.Capsule{Kind: models.KindPersonal, Title: "p", CreatedBy: "a@x.com"}
	require.NoError(t, s.CreateCapsule(ctx, shared))
	require.NoError(t, s.CreateCapsule(ctx, personal))

	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendEntry(ctx, shared.ID, &models.Entry{Content: "second", CreatedBy: "a@x.com", CreatedAt: t0.Add(time.Second)}))
	require.NoError(t, s.AppendEntry(ctx, shared.ID, &models.Entry{Content: "first", CreatedBy: "B@x.com", CreatedAt: t0}))

	err := s.AppendEntry(ctx, shared.ID, &models.Entry{Content: "x", CreatedBy: "z@x.com"})
	assert.True(t, errors.Is(err, ErrNotMember))
	err = s.AppendEntry(ctx, personal.ID, &models.Entry{Content: "x", CreatedBy: "a@x.com"})
	assert.True(t, errors.Is(err, ErrNotCollaborative))
	err = s.AppendEntry(ctx, "nope", &models.Entry{Content: "x", CreatedBy: "a@x.com"})
	assert.True(t, IsNotFound(err))

	got, err := s.GetCapsule(ctx, shared.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "first", got.Entries[0].Content)
	assert.Equal(t, "second", got.Entries[1].Content)
	assert.Equal(t, shared.ID, got.Entries[0].CapsuleID)
}

func TestUsersAndVerify(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	u, created, err := s.RegisterUser(ctx, models.User{Name: "Alice", Email: "Alice@X.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice@x.com", u.Email)

	_, created, err = s.RegisterUser(ctx, models.User{Name: "Other", Email: "alice@x.com"})
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = s.RegisterUser(ctx, models.User{Email: "not-an-email"})
	assert.True(t, apperr.IsValidation(err))

	p, err := s.VerifyMembers(ctx, []models.Member{
		{Name: "Unknown", Email: "alice@x.com"},
		{Name: "Bob", Email: "bob@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Member{{Name: "Alice", Email: "alice@x.com", Resolved: true}}, p.Found)
	assert.Equal(t, []models.Member{{Name: "Bob", Email: "bob@x.com"}}, p.NotFound)
}

func TestUnlockMarkers(t *testing.T) {
	s := openTest(t)
	ok, err := s.UnlockNotified("capsule", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkUnlockNotified("capsule", "c1", time.Now()))
	ok, err = s.UnlockNotified("capsule", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := s.ListKeys(context.Background(), "unl:")
	require.NoError(t, err)
	assert.Equal(t, []string{"unl:capsule:c1"}, keys)
}

func TestClosedStore(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Close())
	assert.False(t, s.Ready())
	assert.Error(t, s.MarkUnlockNotified("capsule", "c1", time.Now()))
	assert.NoError(t, s.Close())
}
