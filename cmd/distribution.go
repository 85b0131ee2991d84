package cmd

import (
	"io"
	"strings"

	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/agentic-research/spotreach/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var distJSON string

func init() {
	distributionCmd.Flags().StringVar(&distJSON, "json", "", "Write the distribution as JSON to this file (- for stdout)")
	rootCmd.AddCommand(distributionCmd)
}

var distributionCmd = &cobra.Command{
	Use:   "distribution [frontier-file]",
	Short: "Normalize reach over a frontier into a conditional distribution",
	Long: `Distribution reads a list of encoded histories, one per line, and
reports each node's unconditional probability and its share of the
frontier's total mass. Without an argument the list written by
"spotreach frontier" is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		frontier, name, err := readFrontier(ws, path)
		if err != nil {
			return err
		}

		tbl, err := reach.Compute(ws.store, ws.ledger)
		if err != nil {
			return err
		}
		d, err := reach.Conditional(ws.store, tbl, frontier)
		if err != nil {
			return err
		}
		log.Info().
			Int("frontier", len(frontier)).
			Int("reached", len(d.Rows)).
			Int("unreached", len(d.Unreached)).
			Float64("mass", d.Mass).
			Msg("distribution computed")

		if distJSON != "" {
			if err := writeTo(cmd.OutOrStdout(), distJSON, func(w io.Writer) error {
				return report.WriteDistributionJSON(w, d)
			}); err != nil {
				return err
			}
		}
		if cfg.Output.Database != "" {
			if err := saveDistribution(tbl, d, strings.TrimSuffix(name, ".txt"), ws.ledger.Len()); err != nil {
				return err
			}
		}
		if distJSON == "-" {
			return nil
		}
		return report.RenderDistribution(cmd.OutOrStdout(), d, cfg.Output.Top)
	},
}

func saveDistribution(tbl *reach.Table, d *reach.Distribution, frontier string, explored int) error {
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
	if err := w.WriteDistribution(runID, frontier, d); err != nil {
		return err
	}
	log.Info().Str("run", runID).Str("frontier", frontier).Msg("distribution stored")
	return nil
}
