package spot

import (
	"encoding/json"
	"testing"

	"github.com/agentic-research/spotreach/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, sols ...api.ActionSolution) *Document {
	t.Helper()
	raw, err := json.Marshal(api.SpotSolution{ActionSolutions: sols})
	require.NoError(t, err)
	d, err := Parse(raw)
	require.NoError(t, err)
	return d
}

func sol(code string, freq float64, nextStreet, handEnd bool) api.ActionSolution {
	return api.ActionSolution{
		Action:         api.Action{Code: code, Position: "UTG", NextStreet: nextStreet, IsHandEnd: handEnd},
		TotalFrequency: freq,
	}
}

func TestParse(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		d, err := Parse([]byte(`{"action_solutions": []}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"action_solutions": []}`, string(d.Raw()))
	})

	for name, raw := range map[string]string{
		"truncated": `{"action_solutions": [`,
		"array":     `[1, 2]`,
		"null":      `null`,
		"empty":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEdges_FiltersNoiseAndMalformed(t *testing.T) {
	d := mustDoc(t,
		sol("R2.5", 0.6, false, false),
		sol("F", 0.4, false, true),
		sol("R8", 1e-9, false, false), // at epsilon: noise
		sol("", 0.1, false, false),
		sol("A-B", 0.1, false, false),
		sol("R 3", 0.1, false, false),
	)

	edges := Edges(d)
	require.Len(t, edges, 2)
	assert.Equal(t, Edge{Code: "R2.5", Frequency: 0.6, Position: "UTG"}, edges[0])
	assert.Equal(t, Edge{Code: "F", Frequency: 0.4, Position: "UTG", EndsEpisode: true}, edges[1])
	assert.True(t, edges[0].Continues())
	assert.False(t, edges[1].Continues())
}

func TestEdges_LooseShapes(t *testing.T) {
	d, err := Parse([]byte(`{
		"action_solutions": [
			"not an object",
			{"action": "not an object", "total_frequency": 1},
			{"action": {"code": 7}, "total_frequency": 1},
			{"action": {"code": "C"}, "total_frequency": "0.25"},
			{"action": {"code": "X"}, "total_frequency": "nan"},
			{"action": {"code": "R4"}}
		]
	}`))
	require.NoError(t, err)

	edges := Edges(d)
	require.Len(t, edges, 1)
	assert.Equal(t, "C", edges[0].Code)
	assert.InDelta(t, 0.25, edges[0].Frequency, 1e-12)

	missing, err := Parse([]byte(`{"something_else": true}`))
	require.NoError(t, err)
	assert.Empty(t, Edges(missing))

	keyed, err := Parse([]byte(`{"action_solutions": {
		"x": {"action": {"code": "R2", "position": "BTN"}, "total_frequency": 0.5},
		"y": {"action": {"code": "F", "position": "BTN"}, "total_frequency": 0.5}
	}}`))
	require.NoError(t, err)
	assert.Empty(t, Edges(keyed), "action_solutions must be a list")
	assert.True(t, IsTerminal(Edges(keyed)))
	assert.Zero(t, Frequency(keyed, "R2"))
	assert.Equal(t, UnknownPosition, ActivePosition(keyed))
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		edges []Edge
		want  bool
	}{
		{"no edges", nil, true},
		{"all end or advance", []Edge{{Code: "F", EndsEpisode: true}, {Code: "C", AdvancesRound: true}}, true},
		{"one continues", []Edge{{Code: "F", EndsEpisode: true}, {Code: "R2.5"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTerminal(tt.edges))
		})
	}
}

func TestFrequency(t *testing.T) {
	d := mustDoc(t,
		sol("C", 0.3, true, false),
		sol("F", 0, false, true),
		sol("C", 0.9, false, false), // later duplicate ignored
	)
	assert.InDelta(t, 0.3, Frequency(d, "C"), 1e-12)
	assert.Equal(t, 0.0, Frequency(d, "F"))
	assert.Equal(t, 0.0, Frequency(d, "R2.5"))
}

func TestPhaseCodes(t *testing.T) {
	d := mustDoc(t,
		sol("C", 0.3, true, false),
		sol("X", 0.2, true, true), // ends the hand
		sol("R9", 0.0, true, false),
		sol("R2.5", 0.5, false, false),
	)
	assert.Equal(t, []string{"C"}, PhaseCodes(d))
}

func TestActivePosition(t *testing.T) {
	assert.Equal(t, "UTG", ActivePosition(mustDoc(t, sol("F", 1, false, true))))
	assert.Equal(t, UnknownPosition, ActivePosition(mustDoc(t)))

	d, err := Parse([]byte(`{"action_solutions": [{"action": {"code": "F"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownPosition, ActivePosition(d))
}
