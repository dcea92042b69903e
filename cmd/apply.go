package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/services"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Rewrite manifests to the plan and publish",
	Long: `Rewrite every planned package's manifest to its new version and
dependency requirements, then optionally publish in dependency order.

Packages are published in batches. A batch only starts once every package its
members depend on was handled in an earlier batch. Failures are reported and
the run continues with the remaining packages unless --skip-dependents is set.

Publishing reads the registry token from CASCADE_REGISTRY_TOKEN (see
registry.token_env).

Examples:
  cascade apply                          # Rewrite manifests only
  cascade apply --print                  # List versions still to publish
  cascade apply --dry-run                # Rewrite and verify without uploading
  cascade apply --publish                # Rewrite and publish
  cascade apply --publish --batch-size 5 --batch-delay 30s`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

var (
	applyPublish bool
	applyDryRun  bool
	applyPrint   bool
	applyReport  string
)

var applyBindings = map[string]string{
	"max-concurrent":   "apply.max_concurrent",
	"batch-size":       "apply.batch_size",
	"batch-delay":      "apply.batch_delay",
	"parallel-batches": "apply.parallel_batches",
	"poll-interval":    "apply.poll_interval",
	"poll-timeout":     "apply.poll_timeout",
	"skip-dependents":  "apply.skip_dependents",
}

func init() {
	rootCmd.AddCommand(applyCmd)

	flags := applyCmd.Flags()
	flags.BoolVar(&applyPublish, "publish", false, "Publish after rewriting manifests")
	flags.BoolVar(&applyDryRun, "dry-run", false, "Verify packages with the registry without uploading")
	flags.BoolVar(&applyPrint, "print", false, "Print name@version of every planned release not yet published")
	flags.StringVar(&applyReport, "report", "", "Write a run report (.json or .yaml)")

	flags.Int("max-concurrent", 4, "Publishes in flight within one batch")
	flags.Int("batch-size", 10, "Packages per batch (0 for unbounded)")
	flags.Duration("batch-delay", 0, "Pause between batches")
	flags.Int("parallel-batches", 1, "Consecutive batches started together")
	flags.Duration("poll-interval", 0, "Registry poll interval after each publish")
	flags.Duration("poll-timeout", 0, "How long to wait for a published version to appear (0 disables)")
	flags.Bool("skip-dependents", false, "Skip packages whose dependencies failed")

	AddFlagValidation(applyCmd, "max-concurrent", ValidatePositive)
	AddFlagValidation(applyCmd, "parallel-batches", ValidatePositive)
	AddFlagValidation(applyCmd, "batch-delay", ValidateDuration)
	AddFlagValidation(applyCmd, "poll-interval", ValidateDuration)
	AddFlagValidation(applyCmd, "poll-timeout", ValidateDuration)
	applyCmd.MarkFlagsMutuallyExclusive("print", "publish")
	applyCmd.MarkFlagsMutuallyExclusive("print", "dry-run")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, applyBindings)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	svc, err := services.NewApplyService(cfg, fs,
		options(logger, services.WithReporter(&progress{out: out}))...)
	if err != nil {
		return err
	}

	if applyPrint {
		pending, err := svc.Pending(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range pending {
			fmt.Fprintln(out, e.ID())
		}
		return nil
	}

	summary, err := svc.Apply(cmd.Context(), services.ApplyOptions{
		Publish:    applyPublish,
		DryRun:     applyDryRun,
		ReportPath: applyReport,
	})
	if summary != nil {
		printSummary(out, summary)
	}
	if err != nil {
		return err
	}
	if !summary.OK() {
		return fmt.Errorf("apply failed: %w", summary.Err())
	}
	return nil
}
