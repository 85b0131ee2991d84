package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentic-research/spotreach/internal/crawl"
	"github.com/agentic-research/spotreach/internal/fetch"
	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	crawlOffline  bool
	crawlMaxNodes int
)

func init() {
	crawlCmd.Flags().BoolVar(&crawlOffline, "offline", false, "Serve only cached spots; never call the solver")
	crawlCmd.Flags().IntVar(&crawlMaxNodes, "max-nodes", -1, "Stop after this many nodes (overrides crawl.max_nodes)")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [actions...]",
	Short: "Expand the tree breadth-first, caching every spot",
	Long: `Crawl starts from the root, or from the given encoded histories
(e.g. "R2.5-F", "ROOT"), and expands every unexplored node once.
Interrupting is safe: the next run resumes from the explored ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}

		var remote fetch.Remote
		if !crawlOffline {
			client, err := fetch.NewClient(cfg.Fetch(), fetch.WithLogger(log.Logger))
			if err != nil {
				return fmt.Errorf("solver client: %w", err)
			}
			remote = client
		}

		c := crawl.NewCrawler(fetch.NewFetcher(ws.store, remote, log.Logger), ws.ledger)
		c.Log = log.Logger
		c.ProgressEvery = cfg.Crawl.ProgressEvery
		c.MaxNodes = cfg.Crawl.MaxNodes
		if crawlMaxNodes >= 0 {
			c.MaxNodes = crawlMaxNodes
		}

		var roots []graph.History
		for _, a := range args {
			h, ok := graph.DecodeLine(a)
			if !ok {
				return fmt.Errorf("empty history argument")
			}
			roots = append(roots, h)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := c.Run(ctx, roots...)
		log.Info().EmbedObject(st).Msg("crawl finished")
		if err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
		if st.Failed > 0 {
			log.Warn().Int("failed", st.Failed).Msg("some nodes stay unexplored; rerun to retry them")
		}
		return nil
	},
}
