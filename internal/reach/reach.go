// Package reach propagates path probability through the crawled tree.
//
// reach(root) is 1 and every explored child receives reach(parent) times
// the frequency of the edge leading to it. Mass is accumulated, not
// assigned, so a node reachable through more than one edge still receives
// all of it.
package reach

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/spot"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrRootMissing means propagation was asked for a tree whose root was
	// never explored. No reach value would be meaningful.
	ErrRootMissing = errors.New("root is not in the explored set")
	// ErrDegenerate means no frontier node is reachable.
	ErrDegenerate = errors.New("frontier has no probability mass")
)

// Documents loads cached spots. *store.Store satisfies it.
type Documents interface {
	Load(h graph.History) (*spot.Document, error)
}

// Membership answers whether a node was explored. *graph.Set and
// *ledger.Ledger satisfy it.
type Membership interface {
	Contains(h graph.History) bool
}

// Row is one node and its unconditional reach probability.
type Row struct {
	History     graph.History
	Probability float64
}

// Table holds reach values for every node the propagation arrived at.
type Table struct {
	ix    *graph.Index
	reach map[uint32]float64

	// Skipped counts the branches that ended early: continuing edges into
	// unexplored nodes, and reached nodes whose document could not be
	// loaded.
	Skipped int
}

func newTable() *Table {
	return &Table{ix: graph.NewIndex(), reach: make(map[uint32]float64)}
}

func (t *Table) add(h graph.History, p float64) {
	t.reach[t.ix.ID(h)] += p
}

// Get returns the reach of h and whether it was computed.
func (t *Table) Get(h graph.History) (float64, bool) {
	id, ok := t.ix.Lookup(h)
	if !ok {
		return 0, false
	}
	p, ok := t.reach[id]
	return p, ok
}

func (t *Table) Len() int { return len(t.reach) }

// Rows returns every reached node, most probable first; ties go by
// encoded history.
func (t *Table) Rows() []Row {
	rows := make([]Row, 0, len(t.reach))
	for id, p := range t.reach {
		rows = append(rows, Row{History: t.ix.History(id), Probability: p})
	}
	sortRows(rows)
	return rows
}

// Compute walks forward from the root over explored nodes.
//
// Nodes are processed in FIFO order. A child is always one action deeper
// than its parent, so every contribution to a node at depth d is made
// while depth d-1 is drained, before the node itself is dequeued.
func Compute(docs Documents, explored Membership) (*Table, error) {
	root := graph.History{}
	if !explored.Contains(root) {
		return nil, ErrRootMissing
	}

	t := newTable()
	visited := graph.NewSet(t.ix)
	t.add(root, 1)
	visited.Add(root)
	queue := []graph.History{root}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		doc, err := docs.Load(h)
		if err != nil {
			t.Skipped++
			continue
		}
		p, _ := t.Get(h)
		for _, e := range spot.Edges(doc) {
			if !e.Continues() {
				continue
			}
			child := h.Child(e.Code)
			if !explored.Contains(child) {
				t.Skipped++
				continue
			}
			t.add(child, p*e.Frequency)
			if visited.Add(child) {
				queue = append(queue, child)
			}
		}
	}
	return t, nil
}

// Entry is one frontier node of a conditional distribution.
type Entry struct {
	History       graph.History
	Unconditional float64
	Conditional   float64
}

// Distribution is a frontier normalized to sum to 1.
type Distribution struct {
	Rows []Entry
	// Mass is the total unconditional probability of the frontier.
	Mass float64
	// Unreached lists frontier nodes with no mass: the root, nodes whose
	// parent was never reached or has no document, and nodes whose last
	// action is absent or below Epsilon.
	Unreached []graph.History
}

// Conditional normalizes frontier over its reachable members. Duplicate
// frontier entries count once.
func Conditional(docs Documents, t *Table, frontier []graph.History) (*Distribution, error) {
	d := &Distribution{}
	seen := graph.NewSet(nil)
	var mass []float64

	for _, f := range frontier {
		if !seen.Add(f) {
			continue
		}
		p, ok := unconditional(docs, t, f)
		if !ok {
			d.Unreached = append(d.Unreached, f)
			continue
		}
		d.Rows = append(d.Rows, Entry{History: f, Unconditional: p})
		mass = append(mass, p)
	}

	if len(mass) > 0 {
		d.Mass = floats.Sum(mass)
	}
	if d.Mass <= 0 {
		return nil, fmt.Errorf("%w: %d frontier nodes, none reachable", ErrDegenerate, seen.Len())
	}
	for i := range d.Rows {
		d.Rows[i].Conditional = d.Rows[i].Unconditional / d.Mass
	}
	sort.SliceStable(d.Rows, func(i, j int) bool {
		a, b := d.Rows[i], d.Rows[j]
		if a.Conditional != b.Conditional {
			return a.Conditional > b.Conditional
		}
		return a.History.String() < b.History.String()
	})
	return d, nil
}

func unconditional(docs Documents, t *Table, f graph.History) (float64, bool) {
	parent, last, ok := f.Parent()
	if !ok {
		return 0, false
	}
	rp, ok := t.Get(parent)
	if !ok {
		return 0, false
	}
	doc, err := docs.Load(parent)
	if err != nil {
		return 0, false
	}
	freq := spot.Frequency(doc, last)
	if freq <= spot.Epsilon {
		return 0, false
	}
	return rp * freq, true
}

// PhaseFrontier lists, for every explored node, the children reached by
// an action that starts the next street. Nodes without a loadable
// document contribute nothing. The result is ordered by depth, then
// encoded form.
func PhaseFrontier(docs Documents, explored []graph.History) []graph.History {
	out := graph.NewSet(nil)
	for _, h := range explored {
		doc, err := docs.Load(h)
		if err != nil {
			continue
		}
		for _, code := range spot.PhaseCodes(doc) {
			out.Add(h.Child(code))
		}
	}
	return out.Histories()
}

// PositionGroup is the reach rows of the nodes where one seat acts.
type PositionGroup struct {
	Position string
	Mass     float64
	Rows     []Row
}

// ByPosition groups reached nodes by the seat acting there. Nodes without
// a loadable document fall under spot.UnknownPosition. Groups are ordered
// by position name.
func ByPosition(docs Documents, t *Table) []PositionGroup {
	groups := make(map[string]*PositionGroup)
	for _, r := range t.Rows() {
		pos := spot.UnknownPosition
		if doc, err := docs.Load(r.History); err == nil {
			pos = spot.ActivePosition(doc)
		}
		g, ok := groups[pos]
		if !ok {
			g = &PositionGroup{Position: pos}
			groups[pos] = g
		}
		g.Rows = append(g.Rows, r)
	}

	out := make([]PositionGroup, 0, len(groups))
	for _, g := range groups {
		ps := make([]float64, len(g.Rows))
		for i, r := range g.Rows {
			ps[i] = r.Probability
		}
		g.Mass = floats.Sum(ps)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Probability != rows[j].Probability {
			return rows[i].Probability > rows[j].Probability
		}
		return rows[i].History.String() < rows[j].History.String()
	})
}
