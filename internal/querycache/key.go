package querycache

import (
	"net/url"
	"strings"
)

// Key identifies a cached read by entity kind and an ordered parameter tuple,
// for example {Kind: "tasks", Params: ["user-1", "2024-03-10"]}.
type Key struct {
	Kind   string
	Params []string
}

func NewKey(kind string, params ...string) Key {
	return Key{Kind: kind, Params: params}
}

// String returns the canonical form kind/param/param with each segment
// path-escaped, so distinct keys never share a string.
func (key Key) String() string {
	segments := make([]string, 0, len(key.Params)+1)
	segments = append(segments, url.PathEscape(key.Kind))
	for _, param := range key.Params {
		segments = append(segments, url.PathEscape(param))
	}
	return strings.Join(segments, "/")
}

// HasPrefix reports whether prefix selects key. An empty prefix kind selects
// every key; otherwise kinds must be equal and prefix params must lead key params.
func (key Key) HasPrefix(prefix Key) bool {
	if prefix.Kind == "" {
		return true
	}
	if key.Kind != prefix.Kind || len(prefix.Params) > len(key.Params) {
		return false
	}
	for i, param := range prefix.Params {
		if key.Params[i] != param {
			return false
		}
	}
	return true
}
