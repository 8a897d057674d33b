// Package members turns free-text collaborator input into member identities
// and folds the server's verification result back into a capsule.
package members

import (
	"regexp"
	"strings"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/models"
)

// UnknownName is used when a token carries only an email.
const UnknownName = "Unknown"

var namedPattern = regexp.MustCompile(`^(.*)<(.*)>`)

// Parse splits raw on commas. A token of the form "Name <email>" yields both
// parts; any other token is taken whole as the email. Empty tokens are
// dropped. Parse never fails.
func Parse(raw string) []models.Member {
	var out []models.Member
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, parseToken(tok))
	}
	return out
}

func parseToken(tok string) models.Member {
	m := namedPattern.FindStringSubmatch(tok)
	if m == nil {
		return models.Member{Name: UnknownName, Email: tok}
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		name = UnknownName
	}
	return models.Member{Name: name, Email: strings.TrimSpace(m[2])}
}

// ParseRequired is Parse with the empty-input check applied first. It returns
// apperr.ErrNoMembers when nothing usable remains.
func ParseRequired(raw string) ([]models.Member, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.ErrNoMembers
	}
	list := Parse(raw)
	if len(list) == 0 {
		return nil, apperr.ErrNoMembers
	}
	return list, nil
}

// Format renders members back into the "Name <email>" input form.
func Format(list []models.Member) string {
	parts := make([]string, 0, len(list))
	for _, m := range list {
		if m.Name == "" || m.Name == UnknownName {
			parts = append(parts, m.Email)
			continue
		}
		parts = append(parts, m.Name+" <"+m.Email+">")
	}
	return strings.Join(parts, ", ")
}
