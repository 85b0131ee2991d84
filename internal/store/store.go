// Package store persists spot documents, one file per node, keyed by the
// node's cache key.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/spot"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

var ErrNotFound = errors.New("spot not cached")

// ParseError reports a cached file that is not a well-formed document.
// Callers treat it as a cache miss and re-fetch.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse cached spot %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CollisionError reports two distinct histories mapping to one cache key.
type CollisionError struct {
	Key      string
	Want     graph.History
	Existing graph.History
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("cache key %q collision: %q is stored where %q was requested",
		e.Key, graph.EncodeLine(e.Existing), graph.EncodeLine(e.Want))
}

// envelope is the on-disk form. It records the exact history so that key
// collisions are detected instead of silently served.
type envelope struct {
	Actions   *string         `json:"actions"`
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	Spot      json.RawMessage `json:"spot"`
}

// Store is a directory of cached spot documents.
type Store struct {
	fs  billy.Filesystem
	now func() time.Time
}

// New wraps an existing filesystem; paths are relative to its root.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs, now: time.Now}
}

// Open returns a store rooted at dir on the host filesystem, creating dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return New(osfs.New(dir)), nil
}

// Filesystem exposes the backing filesystem (the ledger usually lives
// next to the documents).
func (s *Store) Filesystem() billy.Filesystem { return s.fs }

// Path is the file name of h's document.
func (s *Store) Path(h graph.History) string {
	return graph.Key(h) + ".json"
}

// Load reads h's document.
func (s *Store) Load(h graph.History) (*spot.Document, error) {
	p := s.Path(h)
	env, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if got := graph.ParseHistory(*env.Actions); !got.Equal(h) {
		return nil, &CollisionError{Key: graph.Key(h), Want: h, Existing: got}
	}
	doc, err := spot.Parse(env.Spot)
	if err != nil {
		return nil, &ParseError{Path: p, Err: err}
	}
	return doc, nil
}

// Exists reports whether a file is present for h, well-formed or not.
func (s *Store) Exists(h graph.History) bool {
	_, err := s.fs.Stat(s.Path(h))
	return err == nil
}

// Save writes h's document atomically. A well-formed document of another
// history at the same key is never replaced.
func (s *Store) Save(h graph.History, doc *spot.Document) error {
	p := s.Path(h)
	if env, err := s.read(p); err == nil {
		if got := graph.ParseHistory(*env.Actions); !got.Equal(h) {
			return &CollisionError{Key: graph.Key(h), Want: h, Existing: got}
		}
	}

	actions := h.String()
	data, err := json.MarshalIndent(envelope{
		Actions:   &actions,
		Key:       graph.Key(h),
		FetchedAt: s.now().UTC(),
		Spot:      doc.Raw(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return writeAtomic(s.fs, p, data)
}

func (s *Store) read(p string) (*envelope, error) {
	data, err := util.ReadFile(s.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ParseError{Path: p, Err: err}
	}
	if env.Actions == nil || len(env.Spot) == 0 {
		return nil, &ParseError{Path: p, Err: errors.New("missing actions or spot")}
	}
	return &env, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over name, so readers never observe a partial document.
func writeAtomic(fs billy.Filesystem, name string, data []byte) error {
	dir := path.Dir(name)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := fs.TempFile(dir, ".tmp-"+path.Base(name)+"-")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}

// WriteFile is writeAtomic for callers outside the store (frontier lists,
// reports) that share the same discipline.
func WriteFile(fs billy.Filesystem, name string, data []byte) error {
	return writeAtomic(fs, name, data)
}
