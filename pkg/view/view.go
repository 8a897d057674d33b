// Package view turns stored capsules into what a caller may see at a given
// instant. Locked capsules and entries keep their identity and countdown but
// withhold their content and media.
package view

import (
	"time"

	"timecapsule/pkg/lockclock"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
)

// Entry is the visible form of an entry.
type Entry struct {
	ID        string          `json:"id"`
	CapsuleID string          `json:"capsule_id"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	LockDate  *time.Time      `json:"lock_date,omitempty"`
	Lock      lockclock.State `json:"lock"`
	Content   string          `json:"content,omitempty"`
	Media     []media.Item    `json:"media,omitempty"`
}

// Capsule is the visible form of a capsule.
type Capsule struct {
	ID          string          `json:"id"`
	Kind        models.Kind     `json:"kind"`
	Title       string          `json:"title"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	LockDate    *time.Time      `json:"lock_date,omitempty"`
	Lock        lockclock.State `json:"lock"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	Media       []media.Item    `json:"media,omitempty"`
	Members     []models.Member `json:"members,omitempty"`
	Entries     []Entry         `json:"entries,omitempty"`
}

func (c Capsule) CapsuleKind() models.Kind { return c.Kind }
func (c Capsule) Created() time.Time       { return c.CreatedAt }
func (c Capsule) Unlocks() *time.Time      { return c.LockDate }

// Locked reports whether content was withheld when the view was built.
func (c Capsule) Locked() bool { return c.Lock.Locked }

// BuildEntry evaluates an entry's own lock date.
func BuildEntry(e models.Entry, now time.Time) Entry {
	v := Entry{
		ID:        e.ID,
		CapsuleID: e.CapsuleID,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		LockDate:  e.LockDate,
		Lock:      lockclock.Evaluate(e.LockDate, now),
	}
	if !v.Lock.Locked {
		v.Content = e.Content
		v.Media = reclassify(e.Media)
	}
	return v
}

// BuildCapsule evaluates the capsule and each entry independently: an open
// capsule may hold sealed entries and the other way round.
func BuildCapsule(c models.Capsule, now time.Time) Capsule {
	v := Capsule{
		ID:        c.ID,
		Kind:      c.Kind,
		Title:     c.Title,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		LockDate:  c.LockDate,
		Lock:      lockclock.Evaluate(c.LockDate, now),
		Members:   c.Members,
	}
	if !v.Lock.Locked {
		v.Description = c.Description
		v.Content = c.Content
		v.Media = reclassify(c.Media)
	}
	if len(c.Entries) > 0 {
		v.Entries = make([]Entry, 0, len(c.Entries))
		for _, e := range c.Entries {
			v.Entries = append(v.Entries, BuildEntry(e, now))
		}
	}
	return v
}

// BuildCapsules builds every view against the same now.
func BuildCapsules(list []models.Capsule, now time.Time) []Capsule {
	out := make([]Capsule, 0, len(list))
	for _, c := range list {
		out = append(out, BuildCapsule(c, now))
	}
	return out
}

func reclassify(items []media.Item) []media.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]media.Item, 0, len(items))
	for _, it := range items {
		out = append(out, media.Classify(it.Ref()))
	}
	return out
}
