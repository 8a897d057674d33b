package models

import (
	"strings"
	"time"

	"timecapsule/pkg/media"
)

// Kind separates single-owner capsules from shared ones.
type Kind string

const (
	KindPersonal      Kind = "personal"
	KindCollaborative Kind = "collaborative"
)

// Valid reports whether k is a known capsule kind.
func (k Kind) Valid() bool {
	return k == KindPersonal || k == KindCollaborative
}

// Capsule is the stored form of a capsule. Entries are stored under their
// own keys and attached on read.
type Capsule struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	Media       []media.Item `json:"media,omitempty"`
	LockDate    *time.Time   `json:"lock_date,omitempty"`
	Members     []Member     `json:"members,omitempty"`
	Entries     []Entry      `json:"entries,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CreatedBy   string       `json:"created_by"`
}

// Entry is a lockable item appended to a collaborative capsule.
type Entry struct {
	ID        string       `json:"id"`
	CapsuleID string       `json:"capsule_id"`
	Content   string       `json:"content"`
	Media     []media.Item `json:"media,omitempty"`
	LockDate  *time.Time   `json:"lock_date,omitempty"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
}

func (c Capsule) CapsuleKind() Kind   { return c.Kind }
func (c Capsule) Created() time.Time  { return c.CreatedAt }
func (c Capsule) Unlocks() *time.Time { return c.LockDate }

// HasMember reports whether email belongs to the capsule, either as its
// creator or as a member.
func (c *Capsule) HasMember(email string) bool {
	email = NormalizeEmail(email)
	if NormalizeEmail(c.CreatedBy) == email {
		return true
	}
	for _, m := range c.Members {
		if NormalizeEmail(m.Email) == email {
			return true
		}
	}
	return false
}

// Validate checks the kind/member invariants of a capsule before it is
// written.
func (c *Capsule) Validate() error {
	if !c.Kind.Valid() {
		return invalid("type", "type must be personal or collaborative")
	}
	if strings.TrimSpace(c.Title) == "" {
		return invalid("title", "title is required")
	}
	if c.CreatedBy == "" {
		return invalid("created_by", "creator is required")
	}
	switch c.Kind {
	case KindPersonal:
		if len(c.Members) > 0 {
			return invalid("members", "personal capsules have no members")
		}
	case KindCollaborative:
		if len(c.Members) == 0 {
			return invalid("members", "collaborative capsules need at least one member")
		}
		found := false
		for _, m := range c.Members {
			if NormalizeEmail(m.Email) == NormalizeEmail(c.CreatedBy) {
				found = true
				break
			}
		}
		if !found {
			return invalid("members", "creator must be a member")
		}
	}
	return nil
}

// User is a registered account. Registration is what makes an email resolvable
// as a collaborator.
type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
