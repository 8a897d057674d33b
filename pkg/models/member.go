package models

import (
	"strings"

	"timecapsule/pkg/apperr"
)

// Member is a collaborator identity. Email is the case-insensitive key.
type Member struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Resolved bool   `json:"resolved,omitempty"`
}

// Partition is the verification outcome for a proposed member list.
type Partition struct {
	Found    []Member `json:"found"`
	NotFound []Member `json:"not_found"`
}

// NormalizeEmail lowercases and trims an email for use as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalid(field, msg string) error {
	return apperr.Validation(field, msg)
}
