package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/spot"
	"github.com/agentic-research/spotreach/internal/store"
	"github.com/rs/zerolog"
)

// ErrOffline is returned on a cache miss when no remote is configured.
var ErrOffline = errors.New("spot not cached and fetcher is offline")

// Remote fetches a spot from the solver service.
type Remote interface {
	Fetch(ctx context.Context, h graph.History) (*spot.Document, error)
}

// Cache is the document store consulted before the remote.
type Cache interface {
	Load(h graph.History) (*spot.Document, error)
	Save(h graph.History, doc *spot.Document) error
}

// Origin tells where Get found a document.
type Origin int

const (
	OriginCache Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "cache"
}

// Fetcher resolves spots from the cache first and the remote on a miss,
// persisting remote documents before returning them.
type Fetcher struct {
	cache  Cache
	remote Remote
	log    zerolog.Logger
}

// NewFetcher builds a fetcher. A nil remote makes it offline.
func NewFetcher(cache Cache, remote Remote, log zerolog.Logger) *Fetcher {
	return &Fetcher{cache: cache, remote: remote, log: log}
}

// Get returns h's document. A malformed cached document is logged and
// treated as a miss; a key collision is returned as is.
func (f *Fetcher) Get(ctx context.Context, h graph.History) (*spot.Document, Origin, error) {
	doc, err := f.cache.Load(h)
	if err == nil {
		return doc, OriginCache, nil
	}

	var pe *store.ParseError
	switch {
	case errors.Is(err, store.ErrNotFound):
	case errors.As(err, &pe):
		f.log.Warn().Err(err).Str("actions", graph.EncodeLine(h)).Msg("cached spot unreadable, refetching")
	default:
		return nil, OriginCache, err
	}

	if f.remote == nil {
		return nil, OriginRemote, fmt.Errorf("%w: %q", ErrOffline, graph.EncodeLine(h))
	}
	doc, err = f.remote.Fetch(ctx, h)
	if err != nil {
		return nil, OriginRemote, err
	}
	if err := f.cache.Save(h, doc); err != nil {
		return nil, OriginRemote, fmt.Errorf("persist %q: %w", graph.EncodeLine(h), err)
	}
	return doc, OriginRemote, nil
}

// Cached returns h's document from the cache only, never the remote.
func (f *Fetcher) Cached(h graph.History) (*spot.Document, error) {
	return f.cache.Load(h)
}
