// Package media normalizes media references into a single classified form.
//
// Media arrives either as a bare URL string (legacy records) or as an object
// carrying an explicit MIME type. Both are decoded into a Ref at the JSON
// boundary and classified once into an Item; nothing downstream branches on
// the original representation.
package media

import (
	"path"
	"strings"
)

// Kind is the rendering family of a media item.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindAudio:
		return true
	}
	return false
}

// Item is a classified media reference.
type Item struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
	// Type is the declared MIME type, empty for legacy string media.
	Type string `json:"type,omitempty"`
}

// Ref returns the reference form of an already classified item.
func (it Item) Ref() Ref {
	return Ref{URL: it.URL, Type: it.Type, Kind: it.Kind}
}

type extRule struct {
	exts []string
	kind Kind
}

// extRules is evaluated in order; anything unmatched is an image.
var extRules = []extRule{
	{exts: []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}, kind: KindVideo},
	{exts: []string{".mp3", ".wav", ".ogg", ".aac"}, kind: KindAudio},
}

// Classify resolves the kind of a reference. It never fails: unknown types
// and extensions (documents included) fall back to KindImage.
func Classify(ref Ref) Item {
	it := Item{URL: ref.URL, Type: strings.TrimSpace(ref.Type)}
	switch {
	case ref.Kind.Valid():
		it.Kind = ref.Kind
	case it.Type != "":
		it.Kind = kindFromType(it.Type, it.URL)
	default:
		it.Kind = KindFromExtension(it.URL)
	}
	return it
}

// ClassifyIncoming classifies refs received from a client. Any kind the
// client sent is discarded so the declared type or the extension decides.
func ClassifyIncoming(refs []Ref) []Item {
	out := make([]Item, 0, len(refs))
	for _, r := range refs {
		r.Kind = ""
		out = append(out, Classify(r))
	}
	return out
}

func kindFromType(mimeType, url string) Kind {
	t := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(t, "video/"):
		return KindVideo
	case strings.HasPrefix(t, "audio/"):
		return KindAudio
	case strings.HasPrefix(t, "image/"):
		return KindImage
	}
	return KindFromExtension(url)
}

// KindFromExtension applies the extension rule table to a URL, ignoring any
// query string or fragment.
func KindFromExtension(url string) Kind {
	u := url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.ToLower(path.Ext(u))
	if ext == "" {
		return KindImage
	}
	for _, r := range extRules {
		for _, e := range r.exts {
			if ext == e {
				return r.kind
			}
		}
	}
	return KindImage
}
