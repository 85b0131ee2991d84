package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/agentic-research/spotreach/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	reachJSON       string
	reachByPosition bool
)

func init() {
	reachCmd.Flags().StringVar(&reachJSON, "json", "", "Write the reach table as JSON to this file (- for stdout)")
	reachCmd.Flags().BoolVar(&reachByPosition, "by-position", false, "Also summarize reach per acting position")
	rootCmd.AddCommand(reachCmd)
}

var reachCmd = &cobra.Command{
	Use:   "reach",
	Short: "Propagate reach probability over the explored tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		tbl, err := reach.Compute(ws.store, ws.ledger)
		if err != nil {
			return err
		}
		log.Info().
			Int("nodes", tbl.Len()).
			Int("skipped", tbl.Skipped).
			Msg("reach computed")

		if reachJSON != "" {
			if err := writeTo(cmd.OutOrStdout(), reachJSON, func(w io.Writer) error {
				return report.WriteReachJSON(w, tbl)
			}); err != nil {
				return err
			}
		}
		if cfg.Output.Database != "" {
			if err := saveReach(tbl, ws.ledger.Len()); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if reachJSON != "-" {
			if err := report.RenderTable(out, tbl.Rows(), cfg.Output.Top); err != nil {
				return err
			}
		}
		if reachByPosition {
			return report.RenderPositions(out, reach.ByPosition(ws.store, tbl))
		}
		return nil
	},
}

func saveReach(tbl *reach.Table, explored int) error {
	w, err := report.NewSQLiteWriter(cfg.Output.Database)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	runID, err := w.StartRun(cfg.Solver.GameType, explored)
	if err != nil {
		return err
	}
	if err := w.WriteReach(runID, tbl); err != nil {
		return err
	}
	log.Info().Str("run", runID).Str("db", cfg.Output.Database).Msg("reach stored")
	return nil
}

// writeTo writes to stdout for "-" and otherwise to path.
func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
