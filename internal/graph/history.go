package graph

import (
	"regexp"
	"strings"
)

const (
	// Separator joins action codes in the encoded form of a history.
	Separator = "-"

	// RootMarker stands for the root in ledger and frontier files, where an
	// empty line would be invisible.
	RootMarker = "ROOT"

	// RootKey is the cache key of the root node. Sanitized keys never start
	// with '_', so no other history can produce it.
	RootKey = "_root"

	// EmptyKey is used for histories whose codes contain no safe character.
	EmptyKey = "_empty"
)

var (
	unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	foldRun   = regexp.MustCompile(`_{2,}`)
)

// History is the ordered sequence of action codes leading from the root to
// a node. The empty history is the root.
type History []string

// ParseHistory decodes the '-'-joined form. The empty string is the root.
func ParseHistory(s string) History {
	if s == "" {
		return History{}
	}
	return History(strings.Split(s, Separator))
}

// String returns the '-'-joined form; the root encodes as "".
func (h History) String() string {
	return strings.Join(h, Separator)
}

func (h History) IsRoot() bool { return len(h) == 0 }

// Depth is the number of actions taken from the root.
func (h History) Depth() int { return len(h) }

// Child returns a new history extended by code. The receiver is never
// aliased by the result.
func (h History) Child(code string) History {
	out := make(History, len(h)+1)
	copy(out, h)
	out[len(h)] = code
	return out
}

// Parent splits h into the parent history and the last action code.
// ok is false for the root.
func (h History) Parent() (parent History, last string, ok bool) {
	if len(h) == 0 {
		return nil, "", false
	}
	parent = make(History, len(h)-1)
	copy(parent, h[:len(h)-1])
	return parent, h[len(h)-1], true
}

// Equal compares element-wise.
func (h History) Equal(o History) bool {
	if len(h) != len(o) {
		return false
	}
	for i := range h {
		if h[i] != o[i] {
			return false
		}
	}
	return true
}

// Key maps a history to its filesystem-safe cache key.
func Key(h History) string {
	if h.IsRoot() {
		return RootKey
	}
	safe := unsafeRun.ReplaceAllString(h.String(), "_")
	safe = foldRun.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return EmptyKey
	}
	return safe
}

// EncodeLine renders h as one line of a ledger or frontier file.
func EncodeLine(h History) string {
	if h.IsRoot() {
		return RootMarker
	}
	return h.String()
}

// DecodeLine parses one line of a ledger or frontier file. Blank lines
// report ok=false.
func DecodeLine(line string) (h History, ok bool) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, false
	}
	if s == RootMarker {
		return History{}, true
	}
	return ParseHistory(s), true
}
