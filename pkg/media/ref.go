package media

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a media reference as received on the wire: a bare URL string or an
// object with an optional MIME type.
type Ref struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Kind Kind   `json:"kind,omitempty"`
}

// UnmarshalJSON accepts both "https://..." and {"url": "...", "type": "..."}.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Ref{URL: s}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("invalid media reference: %w", err)
	}
	*r = Ref(p)
	return nil
}

// UnmarshalJSON lets stored or fetched items go through the same boundary,
// so legacy string entries in a media array classify like new ones.
func (it *Item) UnmarshalJSON(b []byte) error {
	var r Ref
	if err := r.UnmarshalJSON(b); err != nil {
		return err
	}
	*it = Classify(r)
	return nil
}
