// Package searchspace: host-code snippets.
//
// Specifications embed strings of host-language code: set iterators, static
// predicates, integer universes, trigger actions. The core never parses them;
// it treats each snippet as a referentially transparent leaf identified by the
// hash of its content, so two textually equal snippets share compiled state.
package searchspace

import (
	"github.com/cespare/xxhash/v2"
)

// Snippet is an opaque host-code fragment. Snippets are immutable values;
// equality is content equality and the content hash is precomputed so the
// description can key shared state by it.
type Snippet struct {
	code string
	hash uint64
}

// NewSnippet wraps a host-code string. The empty string yields the zero
// Snippet, which IsZero reports.
func NewSnippet(code string) Snippet {
	if code == "" {
		return Snippet{}
	}
	return Snippet{code: code, hash: xxhash.Sum64String(code)}
}

// Code returns the raw host-code text.
func (s Snippet) Code() string { return s.code }

// Hash returns the content hash. Zero snippets hash to 0.
func (s Snippet) Hash() uint64 { return s.hash }

// IsZero reports whether the snippet is absent.
func (s Snippet) IsZero() bool { return s.code == "" }

// Equal reports content equality.
func (s Snippet) Equal(other Snippet) bool {
	return s.hash == other.hash && s.code == other.code
}

// String returns the snippet text, for diagnostics.
func (s Snippet) String() string { return s.code }
