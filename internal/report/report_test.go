package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/agentic-research/spotreach/internal/spot"
	"github.com/agentic-research/spotreach/internal/store"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTable: root -> A (0.6, continues), C (0.3, next street),
// F (0.1, ends); A -> F (1, ends).
func sampleTable(t *testing.T) (*store.Store, *reach.Table) {
	t.Helper()
	st := store.New(memfs.New())
	docs := map[string]string{
		"ROOT": `{"action_solutions":[
			{"action":{"code":"A","position":"UTG"},"total_frequency":0.6},
			{"action":{"code":"C","position":"UTG","next_street":"FLOP"},"total_frequency":0.3},
			{"action":{"code":"F","position":"UTG","is_hand_end":true},"total_frequency":0.1}]}`,
		"A": `{"action_solutions":[{"action":{"code":"F","is_hand_end":true},"total_frequency":1}]}`,
	}
	explored := graph.NewSet(nil)
	for line, raw := range docs {
		h, _ := graph.DecodeLine(line)
		doc, err := spot.Parse([]byte(raw))
		require.NoError(t, err)
		require.NoError(t, st.Save(h, doc))
		explored.Add(h)
	}
	tbl, err := reach.Compute(st, explored)
	require.NoError(t, err)
	return st, tbl
}

func TestWriteReachJSON(t *testing.T) {
	_, tbl := sampleTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteReachJSON(&buf, tbl))

	var doc ReachDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, NodeReach{Actions: "ROOT", Depth: 0, Probability: 1}, doc.Nodes[0])
	assert.Equal(t, "A", doc.Nodes[1].Actions)
	assert.InDelta(t, 0.6, doc.Nodes[1].Probability, 1e-9)
}

func TestWriteDistributionJSON(t *testing.T) {
	st, tbl := sampleTable(t)
	d, err := reach.Conditional(st, tbl, []graph.History{{"C"}, {"A", "C"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDistributionJSON(&buf, d))

	var doc DistributionDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "C", doc.Nodes[0].Actions)
	assert.InDelta(t, 1.0, doc.Nodes[0].Conditional, 1e-9)
	assert.InDelta(t, 0.3, doc.Mass, 1e-9)
	assert.Equal(t, []string{"A-C"}, doc.Unreached)
}

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	st, tbl := sampleTable(t)
	dbPath := filepath.Join(t.TempDir(), "report.db")

	w, err := NewSQLiteWriter(dbPath)
	require.NoError(t, err)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return base }

	first, err := w.StartRun("Cash6m50zGeneral25Open", 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteReach(first, tbl))

	w.now = func() time.Time { return base.Add(time.Minute) }
	second, err := w.StartRun("Cash6m50zGeneral25Open", 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteReach(second, tbl))

	d, err := reach.Conditional(st, tbl, []graph.History{{"C"}})
	require.NoError(t, err)
	require.NoError(t, w.WriteDistribution(second, "flop", d))
	require.NoError(t, w.Close())

	runs, err := Runs(dbPath)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, base.Add(time.Minute), runs[0].Created)

	id, rows, err := LoadReach(dbPath, "")
	require.NoError(t, err)
	assert.Equal(t, second, id, "empty run id selects the newest run")
	require.Len(t, rows, 2)
	assert.True(t, rows[0].History.IsRoot())
	assert.Equal(t, graph.History{"A"}, rows[1].History)
	assert.InDelta(t, 0.6, rows[1].Probability, 1e-9)

	id, rows, err = LoadReach(dbPath, first)
	require.NoError(t, err)
	assert.Equal(t, first, id)
	assert.Len(t, rows, 2)
}

func TestLoadReach_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	w, err := NewSQLiteWriter(dbPath)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, _, err = LoadReach(dbPath, "")
	require.ErrorIs(t, err, ErrNoRuns)
}

func TestRenderTable(t *testing.T) {
	st, tbl := sampleTable(t)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, tbl.Rows(), 1))
	out := buf.String()
	assert.Contains(t, out, "ROOT")
	assert.Contains(t, out, "1.000000")
	assert.NotContains(t, out, "0.600000", "limit keeps only the top row")

	buf.Reset()
	d, err := reach.Conditional(st, tbl, []graph.History{{"C"}})
	require.NoError(t, err)
	require.NoError(t, RenderDistribution(&buf, d, 0))
	assert.Contains(t, buf.String(), "mass 0.300000 over 1 nodes, 0 unreached")

	buf.Reset()
	require.NoError(t, RenderPositions(&buf, reach.ByPosition(st, tbl)))
	assert.Contains(t, buf.String(), "UTG")
}
