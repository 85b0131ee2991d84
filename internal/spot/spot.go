package spot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/ohler55/ojg/jp"
)

// Epsilon is the frequency at or below which an action is solver noise.
const Epsilon = 1e-9

// UnknownPosition is reported when a spot does not name its acting seat.
const UnknownPosition = "UNKNOWN"

var ErrMalformed = errors.New("malformed spot document")

var (
	solutionsExpr  = jp.MustParseString("$.action_solutions")
	actionExpr     = jp.MustParseString("$.action")
	codeExpr       = jp.MustParseString("$.action.code")
	positionExpr   = jp.MustParseString("$.action.position")
	nextStreetExpr = jp.MustParseString("$.action.next_street")
	handEndExpr    = jp.MustParseString("$.action.is_hand_end")
	frequencyExpr  = jp.MustParseString("$.total_frequency")
)

// Document is one cached spot: the raw upstream bytes plus their parsed
// form. Documents are never mutated after Parse.
type Document struct {
	raw  json.RawMessage
	data map[string]any
}

// Parse decodes a spot document. The top level must be a JSON object.
func Parse(raw []byte) (*Document, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	return &Document{raw: append(json.RawMessage(nil), raw...), data: data}, nil
}

// Raw returns the upstream bytes the document was parsed from.
func (d *Document) Raw() json.RawMessage { return d.raw }

// Edge is one action out of a spot.
type Edge struct {
	Code      string
	Frequency float64
	Position  string
	// AdvancesRound marks an action that moves play to the next street;
	// the tree modeled here stops there.
	AdvancesRound bool
	// EndsEpisode marks an action that ends the hand.
	EndsEpisode bool
}

// Continues reports whether taking e leads to another spot of this tree.
func (e Edge) Continues() bool {
	return !e.AdvancesRound && !e.EndsEpisode
}

// Edges returns the viable edges of d: frequency above Epsilon and a
// well-formed code.
func Edges(d *Document) []Edge {
	var out []Edge
	for _, sol := range solutions(d) {
		e, ok := toEdge(sol)
		if !ok || e.Frequency <= Epsilon || !ValidCode(e.Code) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsTerminal reports whether no edge continues within the tree.
func IsTerminal(edges []Edge) bool {
	for _, e := range edges {
		if e.Continues() {
			return false
		}
	}
	return true
}

// Frequency returns the total frequency of the first action coded code,
// whatever its flags. Absent actions have frequency 0.
func Frequency(d *Document, code string) float64 {
	for _, sol := range solutions(d) {
		e, ok := toEdge(sol)
		if ok && e.Code == code {
			return e.Frequency
		}
	}
	return 0
}

// PhaseCodes returns the codes of viable actions that start the next
// street without ending the hand.
func PhaseCodes(d *Document) []string {
	var codes []string
	for _, e := range Edges(d) {
		if e.AdvancesRound && !e.EndsEpisode {
			codes = append(codes, e.Code)
		}
	}
	return codes
}

// ActivePosition returns the seat acting at d, taken from its first
// action solution.
func ActivePosition(d *Document) string {
	sols := solutions(d)
	if len(sols) == 0 {
		return UnknownPosition
	}
	if pos, ok := first(positionExpr, sols[0]).(string); ok && pos != "" {
		return pos
	}
	return UnknownPosition
}

// ValidCode reports whether code can be appended to a history.
func ValidCode(code string) bool {
	if code == "" || strings.Contains(code, graph.Separator) {
		return false
	}
	return strings.IndexFunc(code, unicode.IsSpace) < 0
}

// solutions returns the action_solutions list, or nil when it is absent or
// not a list.
func solutions(d *Document) []any {
	sols, _ := first(solutionsExpr, d.data).([]any)
	return sols
}

func toEdge(sol any) (Edge, bool) {
	if _, ok := sol.(map[string]any); !ok {
		return Edge{}, false
	}
	if _, ok := first(actionExpr, sol).(map[string]any); !ok {
		return Edge{}, false
	}
	code, _ := first(codeExpr, sol).(string)
	pos, _ := first(positionExpr, sol).(string)
	return Edge{
		Code:          code,
		Frequency:     toFloat(first(frequencyExpr, sol)),
		Position:      pos,
		AdvancesRound: truthy(first(nextStreetExpr, sol)),
		EndsEpisode:   truthy(first(handEndExpr, sol)),
	}, true
}

func first(x jp.Expr, data any) any {
	if res := x.Get(data); len(res) > 0 {
		return res[0]
	}
	return nil
}

// toFloat accepts JSON numbers and numeric strings; anything else is 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b != ""
	case nil:
		return false
	default:
		return true
	}
}
