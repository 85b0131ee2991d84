package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/pterm/pterm"
)

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'f', 6, 64)
}

// RenderTable prints the first limit rows (all when limit <= 0).
func RenderTable(w io.Writer, rows []reach.Row, limit int) error {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	data := pterm.TableData{{"#", "Actions", "Depth", "Reach"}}
	for i, r := range rows {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			graph.EncodeLine(r.History),
			strconv.Itoa(r.History.Depth()),
			formatProb(r.Probability),
		})
	}
	return render(w, data)
}

// RenderDistribution prints the first limit entries of d.
func RenderDistribution(w io.Writer, d *reach.Distribution, limit int) error {
	entries := d.Rows
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	data := pterm.TableData{{"#", "Actions", "Unconditional", "Conditional"}}
	for i, e := range entries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			graph.EncodeLine(e.History),
			formatProb(e.Unconditional),
			formatProb(e.Conditional),
		})
	}
	if err := render(w, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "mass %s over %d nodes, %d unreached\n",
		formatProb(d.Mass), len(d.Rows), len(d.Unreached))
	return err
}

// RenderPositions prints one summary row per acting seat.
func RenderPositions(w io.Writer, groups []reach.PositionGroup) error {
	data := pterm.TableData{{"Position", "Nodes", "Mass"}}
	for _, g := range groups {
		data = append(data, []string{g.Position, strconv.Itoa(len(g.Rows)), formatProb(g.Mass)})
	}
	return render(w, data)
}

func render(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
