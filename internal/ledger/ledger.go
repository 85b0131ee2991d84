// Package ledger keeps the append-only record of nodes whose children have
// been fully enumerated.
//
// The file is loaded once into an in-memory set; membership checks go to
// the set and the file is only ever appended to, one encoded history per
// line.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/agentic-research/spotreach/internal/graph"
	billy "github.com/go-git/go-billy/v5"
)

// Ledger is safe for concurrent use; appends are serialized.
type Ledger struct {
	fs   billy.Filesystem
	path string

	mu       sync.Mutex
	explored *graph.Set
}

// Open loads path from fs. A missing file is an empty ledger.
func Open(fs billy.Filesystem, name string, ix *graph.Index) (*Ledger, error) {
	l := &Ledger{fs: fs, path: name, explored: graph.NewSet(ix)}
	hs, err := ReadList(fs, name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, h := range hs {
		l.explored.Add(h)
	}
	return l, nil
}

// Path is the ledger file name within its filesystem.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Contains(h graph.History) bool {
	return l.explored.Contains(h)
}

// Len is the number of distinct explored nodes.
func (l *Ledger) Len() int { return l.explored.Len() }

// Explored returns the live explored set.
func (l *Ledger) Explored() *graph.Set { return l.explored }

// Mark records h as explored. The line is appended only the first time h
// enters the set, so the file never holds duplicates written by one
// ledger instance.
func (l *Ledger) Mark(h graph.History) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.explored.Contains(h) {
		return false, nil
	}
	if err := l.append(graph.EncodeLine(h)); err != nil {
		return false, err
	}
	l.explored.Add(h)
	return true, nil
}

func (l *Ledger) append(line string) error {
	if dir := path.Dir(l.path); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := l.fs.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Lock(); err != nil {
		return fmt.Errorf("lock ledger %s: %w", l.path, err)
	}
	defer func() { _ = f.Unlock() }()

	if _, err := f.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("append ledger %s: %w", l.path, err)
	}
	return nil
}

// ReadList reads a file of encoded histories, one per line, skipping blank
// lines. Order and duplicates are preserved.
func ReadList(fs billy.Filesystem, name string) ([]graph.History, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []graph.History
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if h, ok := graph.DecodeLine(sc.Text()); ok {
			out = append(out, h)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}
