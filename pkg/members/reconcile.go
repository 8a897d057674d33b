package members

import (
	"fmt"
	"strings"

	"timecapsule/pkg/models"
)

// Lookup resolves a normalized email to a registered account.
type Lookup func(email string) (models.User, bool)

// Resolve partitions proposed members into registered and unregistered ones,
// keeping submission order. Duplicate emails collapse onto the first
// occurrence. A member without an email is never found. Found members are marked Resolved; an "Unknown" name is replaced
// by the registered one.
func Resolve(proposed []models.Member, lookup Lookup) models.Partition {
	p := models.Partition{Found: []models.Member{}, NotFound: []models.Member{}}
	seen := make(map[string]struct{}, len(proposed))
	for _, m := range proposed {
		key := models.NormalizeEmail(m.Email)
		if key == "" {
			m.Email = ""
			m.Resolved = false
			p.NotFound = append(p.NotFound, m)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		m.Email = key
		u, ok := lookup(key)
		if !ok {
			m.Resolved = false
			p.NotFound = append(p.NotFound, m)
			continue
		}
		if m.Name == "" || m.Name == UnknownName {
			m.Name = u.Name
		}
		m.Resolved = true
		p.Found = append(p.Found, m)
	}
	return p
}

// Fold builds the member set stored on a collaborative capsule: the creator
// first, followed by the found members. Not-found identities are excluded.
func Fold(creator models.User, found []models.Member) []models.Member {
	owner := models.NormalizeEmail(creator.Email)
	out := []models.Member{{Name: creator.Name, Email: owner, Resolved: true}}
	for _, m := range found {
		if models.NormalizeEmail(m.Email) == owner {
			continue
		}
		out = append(out, m)
	}
	return out
}

// PartialSuccess reports a capsule created without some proposed members.
// It is a warning, not an error.
type PartialSuccess struct {
	NotFound []models.Member
}

// Check returns a PartialSuccess when the partition has unresolved members.
func Check(p *models.Partition) *PartialSuccess {
	if p == nil || len(p.NotFound) == 0 {
		return nil
	}
	return &PartialSuccess{NotFound: p.NotFound}
}

// Warning lists the identities that were not added.
func (w *PartialSuccess) Warning() string {
	emails := make([]string, 0, len(w.NotFound))
	for _, m := range w.NotFound {
		if m.Email == "" {
			emails = append(emails, m.Name+" <>")
			continue
		}
		emails = append(emails, m.Email)
	}
	return fmt.Sprintf("Capsule created, but these members were not found and were not added: %s", strings.Join(emails, ", "))
}
