// Package crawl expands the spot tree breadth-first, one node at a time,
// recording every fully enumerated node in the explored ledger.
package crawl

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/spotreach/internal/fetch"
	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/ledger"
	"github.com/agentic-research/spotreach/internal/spot"
	"github.com/rs/zerolog"
)

// Source resolves a node's document. *fetch.Fetcher is the production
// implementation. Cached must not touch the network.
type Source interface {
	Get(ctx context.Context, h graph.History) (*spot.Document, fetch.Origin, error)
	Cached(h graph.History) (*spot.Document, error)
}

// Stats summarizes one Run.
type Stats struct {
	Processed int // nodes dequeued and not already explored
	Skipped   int // dequeued nodes already explored or already seen this run
	Descended int // explored nodes walked through from their cached document
	Loaded    int // documents served by the cache
	Fetched   int // documents fetched from the solver
	Missing   int // nodes the solver reported as nonexistent
	Appended  int // ledger lines written
	Failed    int // nodes left unexplored after an error
	Explored  int // ledger size when Run returned
	Queued    int // nodes still queued when Run returned
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("processed", s.Processed).
		Int("skipped", s.Skipped).
		Int("descended", s.Descended).
		Int("loaded", s.Loaded).
		Int("fetched", s.Fetched).
		Int("missing", s.Missing).
		Int("appended", s.Appended).
		Int("failed", s.Failed).
		Int("explored", s.Explored).
		Int("queued", s.Queued)
}

// Crawler drives the crawl.
type Crawler struct {
	Source Source
	Ledger *ledger.Ledger
	Log    zerolog.Logger

	// ProgressEvery logs a progress line every that many processed nodes;
	// 0 disables it.
	ProgressEvery int
	// MaxNodes stops the run after that many processed nodes; 0 means no
	// limit. Unprocessed nodes are reported in Stats.Queued and found again
	// by the next run.
	MaxNodes int
}

func NewCrawler(src Source, led *ledger.Ledger) *Crawler {
	return &Crawler{
		Source: src,
		Ledger: led,
		Log:    zerolog.Nop(),
	}
}

// Run crawls breadth-first from roots, or from the tree root when none are
// given. Nodes already in the ledger are not fetched again, but Run still
// descends through their cached documents, so a rerun reaches whatever an
// earlier interrupted or failed run left unexplored.
//
// Per-node failures are logged and counted; they never stop the crawl.
// Run returns early only on context cancellation or a ledger write error.
func (c *Crawler) Run(ctx context.Context, roots ...graph.History) (Stats, error) {
	if len(roots) == 0 {
		roots = []graph.History{{}}
	}
	queue := append([]graph.History(nil), roots...)

	var st Stats
	seen := graph.NewSet(nil)
	finish := func(err error) (Stats, error) {
		st.Explored = c.Ledger.Len()
		st.Queued = len(queue)
		return st, err
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if c.MaxNodes > 0 && st.Processed >= c.MaxNodes {
			c.Log.Info().Int("max_nodes", c.MaxNodes).Msg("node budget reached")
			break
		}

		h := queue[0]
		queue = queue[1:]
		enqueue := func(child graph.History) { queue = append(queue, child) }
		if !seen.Add(h) {
			st.Skipped++
			continue
		}
		if c.Ledger.Contains(h) {
			st.Skipped++
			if c.descend(h, enqueue) {
				st.Descended++
			}
			continue
		}

		if err := c.visit(ctx, h, &st, enqueue); err != nil {
			// h was not marked; report it as still queued.
			queue = append([]graph.History{h}, queue...)
			return finish(err)
		}

		if c.ProgressEvery > 0 && st.Processed%c.ProgressEvery == 0 {
			c.Log.Info().
				Int("processed", st.Processed).
				Int("queued", len(queue)).
				Int("explored", c.Ledger.Len()).
				Msg("crawl progress")
		}
	}
	return finish(nil)
}

// visit processes one unexplored node, handing its children to enqueue
// before marking it explored. A non-nil error aborts the run.
func (c *Crawler) visit(ctx context.Context, h graph.History, st *Stats, enqueue func(graph.History)) error {
	line := graph.EncodeLine(h)

	doc, origin, err := c.Source.Get(ctx, h)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		st.Processed++
		if errors.Is(err, fetch.ErrNotFound) {
			st.Missing++
			c.Log.Debug().Str("actions", line).Msg("spot does not exist; marking explored")
			return c.mark(h, st)
		}
		st.Failed++
		c.Log.Warn().Err(err).Str("actions", line).Msg("spot unavailable; leaving unexplored")
		return nil
	}
	st.Processed++

	switch origin {
	case fetch.OriginCache:
		st.Loaded++
	case fetch.OriginRemote:
		st.Fetched++
	}

	edges := spot.Edges(doc)
	children := expand(h, edges, enqueue)
	c.Log.Debug().
		Str("actions", line).
		Stringer("origin", origin).
		Int("edges", len(edges)).
		Int("children", children).
		Msg("expanded")

	return c.mark(h, st)
}

// descend walks through an explored node using only its cached document.
// Explored nodes without one (the solver reported them missing) are leaves
// and report false.
func (c *Crawler) descend(h graph.History, enqueue func(graph.History)) bool {
	doc, err := c.Source.Cached(h)
	if err != nil {
		return false
	}
	expand(h, spot.Edges(doc), enqueue)
	return true
}

// expand enqueues the continuing children of a non-terminal node and
// returns how many there were.
func expand(h graph.History, edges []spot.Edge, enqueue func(graph.History)) int {
	if spot.IsTerminal(edges) {
		return 0
	}
	n := 0
	for _, e := range edges {
		if e.Continues() {
			enqueue(h.Child(e.Code))
			n++
		}
	}
	return n
}

func (c *Crawler) mark(h graph.History, st *Stats) error {
	appended, err := c.Ledger.Mark(h)
	if err != nil {
		return fmt.Errorf("mark %q explored: %w", graph.EncodeLine(h), err)
	}
	if appended {
		st.Appended++
	}
	return nil
}
