package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"timecapsule/pkg/apperr"
)

func TestCapsuleValidate(t *testing.T) {
	cases := []struct {
		name string
		c    Capsule
		ok   bool
	}{
		{"personal", Capsule{Kind: KindPersonal, Title: "t", CreatedBy: "a@x.com"}, true},
		{"personal with members", Capsule{Kind: KindPersonal, Title: "t", CreatedBy: "a@x.com", Members: []Member{{Email: "a@x.com"}}}, false},
		{"collaborative", Capsule{Kind: KindCollaborative, Title: "t", CreatedBy: "a@x.com", Members: []Member{{Email: "A@X.com"}}}, true},
		{"collaborative without creator", Capsule{Kind: KindCollaborative, Title: "t", CreatedBy: "a@x.com", Members: []Member{{Email: "b@x.com"}}}, false},
		{"collaborative empty", Capsule{Kind: KindCollaborative, Title: "t", CreatedBy: "a@x.com"}, false},
		{"bad kind", Capsule{Kind: "shared", Title: "t", CreatedBy: "a@x.com"}, false},
		{"no title", Capsule{Kind: KindPersonal, Title: "  ", CreatedBy: "a@x.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestHasMember(t *testing.T) {
	c := Capsule{CreatedBy: "owner@x.com", Members: []Member{{Email: "Friend@X.com"}}}
	assert.True(t, c.HasMember("OWNER@x.com"))
	assert.True(t, c.HasMember(" friend@x.com "))
	assert.False(t, c.HasMember("stranger@x.com"))
}
