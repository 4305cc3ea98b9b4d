package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"multi_downloader/internal/state"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous download runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return fatalError(err)
			}

			store, err := state.Open(settings.History.Path, nil)
			if err != nil {
				return fatalError(err)
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetString("run")
			out := cmd.OutOrStdout()

			if runID != "" {
				tasks, err := store.RunTasks(cmd.Context(), runID)
				if err != nil {
					return fatalError(err)
				}
				if len(tasks) == 0 {
					return usageError(fmt.Errorf("no tasks recorded for run %s", runID))
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tSTATUS\tATTEMPTS\tSIZE\tURL\tERROR")
				for _, t := range tasks {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
						t.Index, t.Status, t.Attempts, humanize.Bytes(uint64(t.Bytes)), t.URL, t.Error)
				}
				return tw.Flush()
			}

			runs, err := store.History(cmd.Context(), limit)
			if err != nil {
				return fatalError(err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tTYPE\tOK\tFAILED\tELAPSED\tDIR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID, humanize.Time(r.StartedAt), r.FileType,
					r.Succeeded, r.Failed, r.Elapsed.Round(time.Millisecond), r.OutputDir)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")
	cmd.Flags().String("run", "", "Show task outcomes for one run ID")
	return cmd
}
