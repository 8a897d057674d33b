package keys

import (
	"fmt"
	"strconv"
	"strings"
)

type EntryKeyParts struct {
	CapsuleID string
	CreatedNS int64
	EntryID   string
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

// ParseCapsuleKey returns the capsule id of a c:<id> key. Entry keys, which
// share the prefix, are rejected.
func ParseCapsuleKey(key string) (string, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] != "c" || parts[1] == "" {
		return "", fmt.Errorf("invalid capsule key: %q", key)
	}
	return parts[1], nil
}

func ParseEntryKey(key string) (*EntryKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "c" || parts[2] != "e" {
		return nil, fmt.Errorf("invalid entry key: %q", key)
	}
	ns, err := parsePaddedInt(parts[3], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid entry key timestamp: %w", err)
	}
	return &EntryKeyParts{CapsuleID: parts[1], CreatedNS: ns, EntryID: parts[4]}, nil
}

// ParseRelUserCapsule returns the capsule id from a membership marker.
func ParseRelUserCapsule(key string) (email, capsuleID string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "rel" || parts[1] != "u" || parts[3] != "c" {
		return "", "", fmt.Errorf("invalid membership key: %q", key)
	}
	return parts[2], parts[4], nil
}
