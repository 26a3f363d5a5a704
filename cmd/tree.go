package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/fieldcat/internal/snapshot"
	"github.com/zjrosen/fieldcat/internal/viz"
)

var treeDOT bool

var treeCmd = &cobra.Command{
	Use:   "tree <snapshot.json>",
	Short: "Render a stored catalog tree",
	Long: `Render the catalog tree stored in a snapshot file.

By default the tree prints as ASCII with one line per node, showing each
container's current field values. With --dot the output is a DOT digraph
keyed by stable node IDs, suitable for graphviz.

Examples:
  fieldcat tree survey.json
  fieldcat tree survey.json --dot | dot -Tsvg -o survey.svg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}

		// Schema recipes are code, not configuration: a CLI render has no
		// registry, so typed nodes come back with observed data only.
		codec := snapshot.NewCodec(nil)
		root, err := codec.Restore(data)
		if err != nil {
			return err
		}

		if treeDOT {
			return viz.WriteDOT(cmd.OutOrStdout(), root, "")
		}
		fmt.Fprint(cmd.OutOrStdout(), viz.Render(root))
		return nil
	},
}

func init() {
	treeCmd.Flags().BoolVar(&treeDOT, "dot", false, "emit a DOT digraph instead of ASCII")
	rootCmd.AddCommand(treeCmd)
}
