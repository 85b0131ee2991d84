package ledger

import (
	"strings"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/store"
	billy "github.com/go-git/go-billy/v5"
)

// WriteList replaces name with hs, one encoded history per line.
func WriteList(fs billy.Filesystem, name string, hs []graph.History) error {
	var b strings.Builder
	for _, h := range hs {
		b.WriteString(graph.EncodeLine(h))
		b.WriteByte('\n')
	}
	return store.WriteFile(fs, name, []byte(b.String()))
}
