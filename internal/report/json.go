// Package report exports reach tables and conditional distributions as
// JSON documents, SQLite tables and terminal tables.
package report

import (
	"encoding/json"
	"io"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/reach"
)

// NodeReach is one row of a reach document.
type NodeReach struct {
	Actions     string  `json:"actions"`
	Depth       int     `json:"depth"`
	Probability float64 `json:"probability"`
}

// ReachDocument is the JSON form of a reach table.
type ReachDocument struct {
	Nodes   []NodeReach `json:"nodes"`
	Skipped int         `json:"skipped,omitempty"`
}

// NodeShare is one row of a distribution document.
type NodeShare struct {
	Actions       string  `json:"actions"`
	Unconditional float64 `json:"unconditional"`
	Conditional   float64 `json:"conditional"`
}

// DistributionDocument is the JSON form of a conditional distribution.
type DistributionDocument struct {
	Mass      float64     `json:"mass"`
	Nodes     []NodeShare `json:"nodes"`
	Unreached []string    `json:"unreached,omitempty"`
}

func NewReachDocument(t *reach.Table) ReachDocument {
	rows := t.Rows()
	doc := ReachDocument{Nodes: make([]NodeReach, len(rows)), Skipped: t.Skipped}
	for i, r := range rows {
		doc.Nodes[i] = NodeReach{
			Actions:     graph.EncodeLine(r.History),
			Depth:       r.History.Depth(),
			Probability: r.Probability,
		}
	}
	return doc
}

func NewDistributionDocument(d *reach.Distribution) DistributionDocument {
	doc := DistributionDocument{Mass: d.Mass, Nodes: make([]NodeShare, len(d.Rows))}
	for i, e := range d.Rows {
		doc.Nodes[i] = NodeShare{
			Actions:       graph.EncodeLine(e.History),
			Unconditional: e.Unconditional,
			Conditional:   e.Conditional,
		}
	}
	for _, h := range d.Unreached {
		doc.Unreached = append(doc.Unreached, graph.EncodeLine(h))
	}
	return doc
}

// WriteReachJSON writes t to w, most probable node first.
func WriteReachJSON(w io.Writer, t *reach.Table) error {
	return writeJSON(w, NewReachDocument(t))
}

// WriteDistributionJSON writes d to w, most probable node first.
func WriteDistributionJSON(w io.Writer, d *reach.Distribution) error {
	return writeJSON(w, NewDistributionDocument(d))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
