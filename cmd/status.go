package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/services"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare local package versions with the registry",
	Long: `Show every workspace package with its local version, the highest version
on the registry and the planned version.

States:
  released     the local version is on the registry
  unreleased   the local version was never published
  missing      the registry has never seen the package
  private      the manifest opts out of publishing

Examples:
  cascade status                  # Table of all packages
  cascade status --unreleased     # Only packages needing a release
  cascade status -o json          # Machine readable output`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusOutput     OutputFlags
	statusUnreleased bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	addOutputFlags(statusCmd, &statusOutput)
	statusCmd.Flags().BoolVar(&statusUnreleased, "unreleased", false, "Only show missing and unreleased packages")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := statusOutput.Validate(); err != nil {
		return err
	}
	cfg, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := services.NewWorkspaceService(cfg, fs, options(logger)...)
	if err != nil {
		return err
	}

	rows, err := svc.Status(cmd.Context())
	if err != nil {
		return err
	}
	if statusUnreleased {
		var kept []services.PackageStatus
		for _, r := range rows {
			if r.State == services.StateMissing || r.State == services.StateUnreleased {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	out := cmd.OutOrStdout()
	switch {
	case statusOutput.Quiet:
		for _, r := range rows {
			fmt.Fprintln(out, r.Name)
		}
		return nil
	case statusOutput.Format == "table":
		printStatus(out, rows)
		return nil
	default:
		return writeStructured(out, statusOutput.Format, rows)
	}
}
