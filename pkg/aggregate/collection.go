package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"timecapsule/pkg/models"
)

// Partitioned is the list shape split by capsule kind.
type Partitioned[T Item] struct {
	Personal      []T `json:"personal"`
	Collaborative []T `json:"collaborative"`
}

// Collection decodes either a flat JSON array of capsules or a
// {"personal": [...], "collaborative": [...]} object into one ordered list.
// Partitioned input yields personal capsules first.
type Collection[T Item] struct {
	Items []T
}

func (c *Collection[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		c.Items = nil
		return nil
	}
	switch b[0] {
	case '[':
		var flat []T
		if err := json.Unmarshal(b, &flat); err != nil {
			return fmt.Errorf("decode capsule list: %w", err)
		}
		c.Items = flat
		return nil
	case '{':
		var p Partitioned[T]
		if err := json.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("decode partitioned capsule list: %w", err)
		}
		c.Items = append(append([]T{}, p.Personal...), p.Collaborative...)
		return nil
	}
	return fmt.Errorf("decode capsule list: unexpected JSON starting with %q", b[0])
}

// Partition splits items by kind.
func Partition[T Item](items []T) Partitioned[T] {
	p := Partitioned[T]{Personal: []T{}, Collaborative: []T{}}
	for _, it := range items {
		switch it.CapsuleKind() {
		case models.KindCollaborative:
			p.Collaborative = append(p.Collaborative, it)
		default:
			p.Personal = append(p.Personal, it)
		}
	}
	return p
}
