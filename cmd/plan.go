package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/services"
)

var planCmd = &cobra.Command{
	Use:   "plan [packages...]",
	Short: "Decide which packages to release and at which versions",
	Long: `Compute a release plan and store it in the plan file.

Named packages are released, together with every package that depends on a
package receiving a breaking or feature release. Existing entries of the plan
are kept unless --new is given, so hand edits survive a replan.

Examples:
  cascade plan core macros         # Release core and macros
  cascade plan --all               # Release every publishable package
  cascade plan --since v1.4.0      # Release packages changed since v1.4.0
  cascade plan core --pre alpha.1  # Plan 2.0.0-alpha.1 instead of 2.0.0
  cascade plan --patch core        # Move core one patch past its planned version`,
	RunE: runPlan,
}

var (
	planAll         bool
	planSince       string
	planFresh       bool
	planPatch       []string
	planDescription string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planAll, "all", false, "Release every publishable package")
	planCmd.Flags().StringVar(&planSince, "since", "", "Release packages changed since this git revision")
	planCmd.Flags().String("pre", "", "Prerelease suffix for every planned version")
	planCmd.Flags().BoolVar(&planFresh, "new", false, "Ignore the existing plan")
	planCmd.Flags().StringSliceVar(&planPatch, "patch", nil, "Patch bump these entries of the existing plan")
	planCmd.Flags().StringVar(&planDescription, "description", "", "Description stored with the plan")
	planCmd.MarkFlagsMutuallyExclusive("all", "since")
	planCmd.MarkFlagsMutuallyExclusive("all", "patch")
	planCmd.MarkFlagsMutuallyExclusive("since", "patch")
}

func runPlan(cmd *cobra.Command, args []string) error {
	switch {
	case planAll && len(args) > 0:
		return fmt.Errorf("cannot name packages together with --all")
	case len(planPatch) > 0 && len(args) > 0:
		return fmt.Errorf("cannot name packages together with --patch")
	case !planAll && planSince == "" && len(planPatch) == 0 && len(args) == 0:
		return fmt.Errorf("nothing to plan: name packages or use --all or --since")
	}

	cfg, logger, err := setup(cmd, map[string]string{"pre": "plan.pre"})
	if err != nil {
		return err
	}
	svc, err := services.NewPlanService(cfg, fs, options(logger)...)
	if err != nil {
		return err
	}

	p, err := svc.Plan(cmd.Context(), services.PlanOptions{
		Packages:    args,
		All:         planAll,
		Since:       planSince,
		Fresh:       planFresh,
		Description: planDescription,
		Patch:       planPatch,
	})
	if err != nil {
		return err
	}
	printPlan(cmd.OutOrStdout(), p, cfg.PlanPath())
	return nil
}
