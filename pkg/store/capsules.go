package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"timecapsule/pkg/logger"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store/keys"
	"timecapsule/pkg/timeutil"

	"github.com/google/uuid"
)

// CreateCapsule validates and writes a capsule together with a membership
// marker for the creator and every member. ID and CreatedAt are filled in
// when empty.
func (s *Store) CreateCapsule(ctx context.Context, c *models.Capsule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = timeutil.Now()
	}
	c.CreatedBy = models.NormalizeEmail(c.CreatedBy)
	for i := range c.Members {
		c.Members[i].Email = models.NormalizeEmail(c.Members[i].Email)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	stored := *c
	stored.Entries = nil
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal capsule: %w", err)
	}

	b, err := s.newBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Set([]byte(keys.GenCapsuleKey(c.ID)), data, nil); err != nil {
		return err
	}
	for _, email := range participants(c) {
		if err := b.Set([]byte(keys.GenRelUserCapsule(email, c.ID)), []byte("1"), nil); err != nil {
			return err
		}
	}
	if err := s.apply(b); err != nil {
		return fmt.Errorf("create capsule: %w", err)
	}
	logger.Info("capsule_created", "capsule_id", c.ID, "kind", c.Kind, "members", len(c.Members), "locked_until", c.LockDate)
	return nil
}

func participants(c *models.Capsule) []string {
	seen := map[string]struct{}{c.CreatedBy: {}}
	out := []string{c.CreatedBy}
	for _, m := range c.Members {
		if _, ok := seen[m.Email]; ok {
			continue
		}
		seen[m.Email] = struct{}{}
		out = append(out, m.Email)
	}
	return out
}

// GetCapsule loads a capsule with its entries in append order.
func (s *Store) GetCapsule(ctx context.Context, id string) (*models.Capsule, error) {
	if err := keys.ValidateID(id); err != nil {
		return nil, ErrNotFound
	}
	var c models.Capsule
	if err := s.getJSON(keys.GenCapsuleKey(id), &c); err != nil {
		return nil, err
	}
	entries, err := s.ListEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Entries = entries
	return &c, nil
}

// ListEntries returns the entries of a capsule ordered by creation.
func (s *Store) ListEntries(ctx context.Context, capsuleID string) ([]models.Entry, error) {
	var out []models.Entry
	err := s.scan(ctx, keys.GenEntryPrefix(capsuleID), func(k, v []byte) error {
		var e models.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("decode entry %s: %w", k, err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// ListCapsulesFor returns every capsule the email created or is a member of,
// oldest first.
func (s *Store) ListCapsulesFor(ctx context.Context, email string) ([]models.Capsule, error) {
	var ids []string
	err := s.scan(ctx, keys.GenRelUserPrefix(models.NormalizeEmail(email)), func(k, _ []byte) error {
		_, id, err := keys.ParseRelUserCapsule(string(k))
		if err != nil {
			logger.Warn("membership_key_invalid", "key", string(k), "error", err)
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Capsule, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCapsule(ctx, id)
		if IsNotFound(err) {
			logger.Warn("membership_dangling", "email", email, "capsule_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	sortCapsules(out)
	return out, nil
}

func sortCapsules(list []models.Capsule) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// AllCapsules calls fn for every stored capsule, with entries attached.
func (s *Store) AllCapsules(ctx context.Context, fn func(*models.Capsule) error) error {
	var ids []string
	err := s.scan(ctx, keys.CapsulePrefix, func(k, _ []byte) error {
		if id, err := keys.ParseCapsuleKey(string(k)); err == nil {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, err := s.GetCapsule(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// AppendEntry adds an entry to a collaborative capsule on behalf of a member.
func (s *Store) AppendEntry(ctx context.Context, capsuleID string, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.capsuleLock(capsuleID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.getCapsuleOnly(capsuleID)
	if err != nil {
		return err
	}
	if c.Kind != models.KindCollaborative {
		return ErrNotCollaborative
	}
	if !c.HasMember(e.CreatedBy) {
		return ErrNotMember
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = timeutil.Now()
	}
	e.CapsuleID = capsuleID
	e.CreatedBy = models.NormalizeEmail(e.CreatedBy)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	b, err := s.newBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Set([]byte(keys.GenEntryKey(capsuleID, e.CreatedAt.UnixNano(), e.ID)), data, nil); err != nil {
		return err
	}
	if err := s.apply(b); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	logger.Info("entry_created", "capsule_id", capsuleID, "entry_id", e.ID, "created_by", e.CreatedBy)
	return nil
}

func (s *Store) getCapsuleOnly(id string) (*models.Capsule, error) {
	if err := keys.ValidateID(id); err != nil {
		return nil, ErrNotFound
	}
	var c models.Capsule
	if err := s.getJSON(keys.GenCapsuleKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
