package graphrank

import (
	"fmt"
	"text/tabwriter"

	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analysis runs",
	Long: `List the runs recorded in the DuckDB history file, newest first.
Requires history.path (or GRAPHRANK_HISTORY_PATH) to be set.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyKind  string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only list runs of this analysis (community, pagerank)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
}

func runHistory(cmd *cobra.Command, args []string) error {
	kind := types.AnalysisKind(historyKind)
	if kind != "" && !kind.Valid() {
		return fmt.Errorf("%w: unknown analysis %q", types.ErrConfiguration, historyKind)
	}

	a, err := newApp(cmd.ErrOrStderr(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.recorder == nil {
		return fmt.Errorf("%w: run history is disabled (set history.path or GRAPHRANK_HISTORY_PATH)", types.ErrConfiguration)
	}

	runs, err := a.recorder.Recent(cmd.Context(), kind, historyLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tANALYSIS\tEDGES\tNODES\tWRITTEN\tUNMATCHED\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed: " + run.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Kind,
			run.Edges, run.Nodes, run.Written, run.Unmatched, status)
	}
	return tw.Flush()
}
