package graph

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var safeKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		h    History
		want string
	}{
		{"root", History{}, RootKey},
		{"single code", History{"R2.5"}, "R2.5"},
		{"joined codes", History{"R2.5", "F", "C"}, "R2.5-F-C"},
		{"unsafe folds to one separator", History{"R 2/5"}, "R_2_5"},
		{"repeated separators collapse", History{"a__%%b"}, "a_b"},
		{"leading and trailing stripped", History{"%%a%%"}, "a"},
		{"nothing safe", History{"%%%"}, EmptyKey},
		{"literal root code", History{"root"}, "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.h)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, safeKey, got)
			assert.Equal(t, got, Key(tt.h), "key must be deterministic")
		})
	}
}

func TestKey_RootIsReserved(t *testing.T) {
	for _, code := range []string{"root", "_root", "ROOT", "", "%", "_"} {
		assert.NotEqual(t, Key(History{}), Key(History{code}), "code %q", code)
	}
}

func TestParseHistory_RoundTrip(t *testing.T) {
	assert.True(t, ParseHistory("").IsRoot())

	h := ParseHistory("R2.5-F-R8-C")
	assert.Equal(t, History{"R2.5", "F", "R8", "C"}, h)
	assert.Equal(t, "R2.5-F-R8-C", h.String())
	assert.Equal(t, 4, h.Depth())
}

func TestHistory_ChildDoesNotAlias(t *testing.T) {
	base := make(History, 1, 8)
	base[0] = "R2.5"

	a := base.Child("F")
	b := base.Child("C")

	assert.Equal(t, History{"R2.5", "F"}, a)
	assert.Equal(t, History{"R2.5", "C"}, b)
	assert.Equal(t, History{"R2.5"}, base)
}

func TestHistory_Parent(t *testing.T) {
	parent, last, ok := ParseHistory("R2.5-F-C").Parent()
	require.True(t, ok)
	assert.Equal(t, History{"R2.5", "F"}, parent)
	assert.Equal(t, "C", last)

	parent, last, ok = ParseHistory("C").Parent()
	require.True(t, ok)
	assert.True(t, parent.IsRoot())
	assert.Equal(t, "C", last)

	_, _, ok = History{}.Parent()
	assert.False(t, ok)
}

func TestHistory_Equal(t *testing.T) {
	assert.True(t, History{}.Equal(nil))
	assert.True(t, History{"a", "b"}.Equal(History{"a", "b"}))
	assert.False(t, History{"a", "b"}.Equal(History{"a"}))
	assert.False(t, History{"a", "b"}.Equal(History{"a", "c"}))
}

func TestLineEncoding(t *testing.T) {
	assert.Equal(t, RootMarker, EncodeLine(History{}))
	assert.Equal(t, "R2.5-C", EncodeLine(History{"R2.5", "C"}))

	h, ok := DecodeLine("  ROOT \n")
	require.True(t, ok)
	assert.True(t, h.IsRoot())

	h, ok = DecodeLine("R2.5-C\n")
	require.True(t, ok)
	assert.Equal(t, History{"R2.5", "C"}, h)

	_, ok = DecodeLine("   \n")
	assert.False(t, ok)
}
