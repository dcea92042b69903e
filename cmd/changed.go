package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/services"
)

var changedCmd = &cobra.Command{
	Use:   "changed REF",
	Short: "List packages changed since a git revision",
	Long: `List the workspace packages with files changed between REF and the
working tree. A manifest whose only difference is a version or dependency
requirement does not count as a change.

Examples:
  cascade changed v1.4.0
  cascade changed origin/main`,
	Args: cobra.ExactArgs(1),
	RunE: runChanged,
}

func init() {
	rootCmd.AddCommand(changedCmd)
}

func runChanged(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := services.NewWorkspaceService(cfg, fs, options(logger)...)
	if err != nil {
		return err
	}

	names, err := svc.Changed(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
