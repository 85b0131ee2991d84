package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/report"
	"github.com/agentic-research/spotreach/internal/spot"
	"github.com/agentic-research/spotreach/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), errOut.String())
	return out.String()
}

func TestOfflinePipeline(t *testing.T) {
	t.Setenv("SPOTREACH_REFRESH_TOKEN", "")
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "spots")
	dbPath := filepath.Join(dir, "reach.db")

	st, err := store.Open(cacheDir)
	require.NoError(t, err)
	for line, raw := range map[string]string{
		"ROOT": `{"action_solutions":[
			{"action":{"code":"R2","position":"UTG"},"total_frequency":0.5},
			{"action":{"code":"F","position":"UTG","is_hand_end":true},"total_frequency":0.5}]}`,
		"R2": `{"action_solutions":[
			{"action":{"code":"C","position":"BB","next_street":true},"total_frequency":0.8},
			{"action":{"code":"F","position":"BB","is_hand_end":true},"total_frequency":0.2}]}`,
	} {
		h, _ := graph.DecodeLine(line)
		doc, err := spot.Parse([]byte(raw))
		require.NoError(t, err)
		require.NoError(t, st.Save(h, doc))
	}

	cfgPath := filepath.Join(dir, "spotreach.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
crawl {
  cache_dir = %q
}
output {
  database = %q
}
`, cacheDir, dbPath)), 0o644))
	base := []string{"--config", cfgPath, "--log-format", "json", "--log-level", "warn"}

	run(t, append(base, "crawl", "--offline")...)
	ledgerBytes, err := os.ReadFile(filepath.Join(cacheDir, "explored.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ROOT\nR2\n", string(ledgerBytes))

	run(t, append(base, "frontier")...)
	frontierBytes, err := os.ReadFile(filepath.Join(cacheDir, "frontier.txt"))
	require.NoError(t, err)
	assert.Equal(t, "R2-C\n", string(frontierBytes))

	out := run(t, append(base, "reach", "--json", "-")...)
	var doc report.ReachDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "R2", doc.Nodes[1].Actions)
	assert.InDelta(t, 0.5, doc.Nodes[1].Probability, 1e-9)

	out = run(t, append(base, "distribution")...)
	assert.Contains(t, out, "R2-C")
	assert.Contains(t, out, "mass 0.400000 over 1 nodes, 0 unreached")

	out = run(t, append(base, "inspect")...)
	assert.Contains(t, out, "2 nodes")
	assert.Contains(t, out, "ROOT")

	runs, err := report.Runs(dbPath)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "reach and distribution each store a run")
}

func TestNewLogger_RejectsUnknownValues(t *testing.T) {
	var buf bytes.Buffer
	_, err := newLogger(&buf, "loud", "json")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)

	l, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestOpenWorkspace_WarnsWhenExploredRootIsNotCached(t *testing.T) {
	t.Setenv("SPOTREACH_REFRESH_TOKEN", "")
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "spots")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "explored.txt"), []byte("ROOT\n"), 0o644))

	cfgPath := filepath.Join(dir, "spotreach.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("crawl {\n  cache_dir = %q\n}\n", cacheDir)), 0o644))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--config", cfgPath, "--log-format", "json", "--log-level", "warn", "frontier"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, errOut.String(), "root is explored but its spot is not cached")
	assert.Contains(t, errOut.String(), `"ledger":"explored.txt"`)
}
