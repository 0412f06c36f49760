package graphrank

import (
	"context"
	"fmt"
	"io"

	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/spf13/cobra"
)

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "Detect communities and write communityId to every Person",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, types.CommunityAnalysis)
	},
}

var pagerankCmd = &cobra.Command{
	Use:   "pagerank",
	Short: "Rank Persons by importance and write pagerank to each",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, types.PageRankAnalysis)
	},
}

func init() {
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(pagerankCmd)
}

func runAnalysis(cmd *cobra.Command, kind types.AnalysisKind) error {
	a, err := newApp(cmd.ErrOrStderr(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")

	report, err := a.client.Run(ctx, kind)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

// printReport writes the progress lines of a run. A failed run prints only
// the writes it applied.
func printReport(w io.Writer, report *types.RunReport) {
	if report.Error != "" {
		if report.Written > 0 {
			fmt.Fprintf(w, "Wrote %s for %d entities before the failure.\n", report.Kind.Attribute(), report.Written)
		}
		return
	}

	fmt.Fprintf(w, "Fetched %d edges.\n", report.Edges)
	fmt.Fprintf(w, "Analyzed %d nodes.\n", report.Nodes)

	switch report.Kind {
	case types.CommunityAnalysis:
		fmt.Fprintf(w, "Found %d communities (modularity %.4f).\n", report.Communities, report.Modularity)
	case types.PageRankAnalysis:
		if !report.Converged {
			fmt.Fprintf(w, "PageRank did not converge after %d iterations.\n", report.Iterations)
		}
	}

	fmt.Fprintf(w, "Wrote %s for %d entities", report.Kind.Attribute(), report.Written)
	if report.Unmatched > 0 {
		fmt.Fprintf(w, " (%d unmatched)", report.Unmatched)
	}
	fmt.Fprintln(w, ".")

	if len(report.TopEntities) > 0 {
		fmt.Fprintf(w, "Top %d by %s:\n", len(report.TopEntities), report.Kind.Attribute())
		for i, e := range report.TopEntities {
			fmt.Fprintf(w, "%3d. %-30s %.6f\n", i+1, e.ID, e.Score)
		}
	}
}
