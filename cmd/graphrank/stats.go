package graphrank

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count the Persons and relationships the analyses read",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.client.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s entities: %d\n", a.cfg.Schema.Label, stats.Entities)

	kinds := make([]string, 0, len(stats.RelationshipsByKind))
	for kind := range stats.RelationshipsByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "%s relationships: %d\n", kind, stats.RelationshipsByKind[kind])
	}
	return nil
}
