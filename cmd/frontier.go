package cmd

import (
	"fmt"

	"github.com/agentic-research/spotreach/internal/ledger"
	"github.com/agentic-research/spotreach/internal/reach"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(frontierCmd)
}

var frontierCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Write the list of nodes where the next street begins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		hs := reach.PhaseFrontier(ws.store, ws.ledger.Explored().Histories())
		if err := ledger.WriteList(ws.store.Filesystem(), cfg.Output.Frontier, hs); err != nil {
			return fmt.Errorf("write frontier: %w", err)
		}
		log.Info().
			Int("nodes", len(hs)).
			Str("file", cfg.Output.Frontier).
			Msg("frontier written")
		return nil
	},
}
