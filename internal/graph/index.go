package graph

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// Index interns histories to dense uint32 ids so that node sets can be
// held in roaring bitmaps. Ids are assigned monotonically and never reused.
type Index struct {
	mu    sync.RWMutex
	ids   map[string]uint32 // History.String() -> id
	nodes []History         // id -> history
}

func NewIndex() *Index {
	return &Index{ids: make(map[string]uint32)}
}

// ID returns the id of h, assigning one on first sight.
func (ix *Index) ID(h History) uint32 {
	s := h.String()
	ix.mu.RLock()
	id, ok := ix.ids[s]
	ix.mu.RUnlock()
	if ok {
		return id
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if id, ok := ix.ids[s]; ok {
		return id
	}
	id = uint32(len(ix.nodes))
	ix.ids[s] = id
	ix.nodes = append(ix.nodes, append(History{}, h...))
	return id
}

// Lookup returns the id of h without assigning one.
func (ix *Index) Lookup(h History) (uint32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.ids[h.String()]
	return id, ok
}

// History returns the history interned under id.
func (ix *Index) History(id uint32) History {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if int(id) >= len(ix.nodes) {
		return nil
	}
	return ix.nodes[id]
}

// Len reports how many histories have been interned.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

// Set is a set of histories backed by a roaring bitmap over an Index.
// Several sets may share one Index.
type Set struct {
	mu sync.RWMutex
	ix *Index
	bm *roaring.Bitmap
}

// NewSet creates an empty set. A nil index gets a private one.
func NewSet(ix *Index) *Set {
	if ix == nil {
		ix = NewIndex()
	}
	return &Set{ix: ix, bm: roaring.New()}
}

// Add inserts h and reports whether it was newly added.
func (s *Set) Add(h History) bool {
	id := s.ix.ID(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bm.CheckedAdd(id)
}

func (s *Set) Contains(h History) bool {
	id, ok := s.ix.Lookup(h)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bm.Contains(id)
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.bm.GetCardinality())
}

// Histories returns the members ordered by depth, then encoded form.
func (s *Set) Histories() []History {
	s.mu.RLock()
	ids := s.bm.ToArray()
	s.mu.RUnlock()

	out := make([]History, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.ix.History(id))
	}
	SortHistories(out)
	return out
}

// SortHistories orders histories by depth, then by encoded form.
func SortHistories(hs []History) {
	sort.Slice(hs, func(i, j int) bool {
		if len(hs[i]) != len(hs[j]) {
			return len(hs[i]) < len(hs[j])
		}
		return hs[i].String() < hs[j].String()
	})
}
