package keys

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// conservative ID validation: letters, digits, dot, underscore, dash
	// and a reasonable upper bound to protect DB key shapes.
	idRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)
	// emails become key segments, so ":" and whitespace are refused.
	emailRegexp = regexp.MustCompile(`^[^\s:@]{1,128}@[^\s:@]{1,253}$`)
)

func ValidateID(id string) error {
	if id == "" {
		return errors.New("id empty")
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid id: %q", id)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email empty")
	}
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("invalid email: %q", email)
	}
	return nil
}
