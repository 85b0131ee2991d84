package cmd

import (
	"errors"
	"fmt"

	"github.com/agentic-research/spotreach/internal/report"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	inspectDB   string
	inspectRuns bool
)

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "Report database (default output.database)")
	inspectCmd.Flags().BoolVar(&inspectRuns, "runs", false, "List stored runs instead of printing one")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id]",
	Short: "Print a stored reach table (the newest run by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := inspectDB
		if db == "" {
			db = cfg.Output.Database
		}
		if db == "" {
			return errors.New("no report database: pass --db or set output.database")
		}
		out := cmd.OutOrStdout()

		if inspectRuns {
			runs, err := report.Runs(db)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Run", "Game type", "Created", "Explored"}}
			for _, r := range runs {
				data = append(data, []string{r.ID, r.GameType, r.Created.Format("2006-01-02 15:04:05"), fmt.Sprint(r.Explored)})
			}
			s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, s)
			return err
		}

		var runID string
		if len(args) == 1 {
			runID = args[0]
		}
		runID, rows, err := report.LoadReach(db, runID)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "run %s: %d nodes\n", runID, len(rows)); err != nil {
			return err
		}
		return report.RenderTable(out, rows, cfg.Output.Top)
	},
}
