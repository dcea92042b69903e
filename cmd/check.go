package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/services"
	"github.com/conneroisu/cascade/internal/watcher"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Lint the workspace and validate the plan",
	Long: `Check that every publishable package carries the metadata the registry
requires, that nothing publishable depends on an unpublishable package and
that the stored plan still matches the workspace.

Examples:
  cascade check           # Check once, exit non-zero on problems
  cascade check --watch   # Re-check whenever a manifest or the plan changes`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkWatch bool

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "Re-check on every manifest or plan change")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := services.NewWorkspaceService(cfg, fs, options(logger)...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed, err := checkOnce(cmd.Context(), svc, out)
	if err != nil {
		return err
	}
	if !checkWatch {
		if failed {
			return fmt.Errorf("check failed")
		}
		return nil
	}
	return watchCheck(cmd.Context(), svc, cfg.PlanPath(), out, logger)
}

func checkOnce(ctx context.Context, svc *services.WorkspaceService, out io.Writer) (bool, error) {
	findings, err := svc.Check(ctx)
	if err != nil {
		return false, err
	}
	printFindings(out, findings)
	return services.Failed(findings), nil
}

func watchCheck(ctx context.Context, svc *services.WorkspaceService, planPath string, out io.Writer, logger logging.Logger) error {
	pkgs, err := svc.Packages(ctx)
	if err != nil {
		return err
	}
	files := []string{planPath}
	for _, p := range pkgs {
		files = append(files, p.ManifestPath)
	}

	fw, err := watcher.NewFileWatcher(300*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NamesFilter("Cargo.toml", filepath.Base(planPath)))
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		fmt.Fprintln(out, faintStyle.Render(fmt.Sprintf("%d file(s) changed, checking again", len(events))))
		if _, err := checkOnce(ctx, svc, out); err != nil {
			fmt.Fprintln(out, errStyle.Render("check: ")+err.Error())
		}
		return nil
	})
	if err := fw.AddFiles(files...); err != nil {
		return err
	}

	fw.Start(ctx)
	fmt.Fprintln(out, titleStyle.Render("Watching for changes... (Press Ctrl+C to stop)"))
	<-ctx.Done()
	return nil
}
