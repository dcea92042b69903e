package services

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/plan"
	"github.com/conneroisu/cascade/internal/publish"
	"github.com/conneroisu/cascade/internal/registry"
	"github.com/conneroisu/cascade/internal/report"
	"github.com/conneroisu/cascade/internal/schedule"
	"github.com/conneroisu/cascade/internal/types"
)

// ApplyService rewrites manifests to match the stored plan and publishes
// the planned releases.
type ApplyService struct {
	*runtime
}

// NewApplyService creates an apply service.
func NewApplyService(cfg *config.Config, fs afero.Fs, opts ...Option) (*ApplyService, error) {
	rt, err := newRuntime(cfg, fs, opts...)
	if err != nil {
		return nil, err
	}
	return &ApplyService{runtime: rt}, nil
}

// ApplyOptions control an apply run. Concurrency, batching and polling come
// from the apply section of the configuration.
type ApplyOptions struct {
	// Publish uploads after rewriting. Without it only manifests change.
	Publish bool
	// DryRun runs the publish command in validation mode.
	DryRun bool
	// ReportPath overrides report.path.
	ReportPath string
}

// workspaceRewriter is implemented by editors that also maintain the root
// manifest's shared dependency table.
type workspaceRewriter interface {
	RewriteWorkspace(ctx context.Context, path string) error
}

// Apply runs the plan. Errors that stop the run before anything is
// published are returned; per-package failures are only recorded in the
// summary. A report write failure is returned together with the summary.
func (s *ApplyService) Apply(ctx context.Context, opts ApplyOptions) (*publish.Summary, error) {
	started := s.now()
	op := logging.StartOperation(s.logger, "apply")

	p, err := s.store().Load()
	if err != nil {
		return nil, err
	}
	ws, graph, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(p, graph); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodePlanMalformed,
			"plan does not match the workspace, run `cascade plan` again").WithFile(s.store().Path())
	}

	uploading := opts.Publish || opts.DryRun
	token := s.getenv(s.config.Registry.TokenEnv)
	if opts.Publish && !opts.DryRun && token == "" {
		return nil, errors.NewValidationError(errors.ErrCodeMissingCredential,
			s.config.Registry.TokenEnv+" must be set to publish")
	}

	publishing := publishingEntries(p)
	var snap registry.Snapshot
	if uploading {
		if snap, err = s.snapshot(ctx, plan.Names(publishing)); err != nil {
			return nil, err
		}
	}

	editor := s.manifestEditor(p)
	if rw, ok := editor.(workspaceRewriter); ok {
		if err := rw.RewriteWorkspace(ctx, ws.ManifestPath); err != nil {
			return nil, err
		}
	}

	var prior []publish.Outcome
	failed := make(map[string]bool)
	for _, entry := range p.Entries {
		pkg, _ := graph.Package(entry.Name)
		if err := editor.Apply(ctx, pkg, entry); err != nil {
			s.logger.Error(ctx, err, "Manifest rewrite failed", "package", entry.Name)
			prior = append(prior, publish.Outcome{
				Name:    entry.Name,
				Version: entry.To,
				Status:  publish.StatusFailed,
				Batch:   -1,
				Err:     errors.WrapPublish(err, errors.ErrCodeManifestRewrite, "rewriting manifest", entry.Name),
			})
			failed[entry.Name] = true
		}
	}

	var sched schedule.Schedule
	if uploading {
		var ready []types.ReleaseEntry
		for _, e := range publishing {
			if !failed[e.Name] {
				ready = append(ready, e)
			}
		}
		if ready, err = plan.Sorted(graph, ready); err != nil {
			return nil, err
		}
		if sched, err = schedule.Build(ready, graph.Dependencies, s.config.Apply.BatchSize); err != nil {
			return nil, err
		}
	}

	ac := s.config.Apply
	exec := publish.NewExecutor(s.registry,
		publish.NewPoller(s.registry, ac.PollInterval, ac.PollTimeout, s.logger),
		publish.Options{
			MaxConcurrent:          ac.MaxConcurrent,
			BatchDelay:             ac.BatchDelay,
			ParallelBatches:        ac.ParallelBatches,
			DryRun:                 opts.DryRun,
			SkipDependentsOfFailed: ac.SkipDependents,
			Token:                  token,
		},
		publish.WithSnapshot(snap),
		publish.WithDependencies(graph.Dependencies),
		publish.WithReporter(s.reporter),
		publish.WithLogger(s.logger),
	)
	summary := exec.Run(ctx, sched, prior...)
	op.End(ctx)
	if m := exec.Metrics(); m.GetPublishCount() > 0 {
		s.logger.Info(ctx, "Publish metrics",
			"attempts", m.GetPublishCount(),
			"success_rate", m.GetSuccessRate(),
			"avg_duration", m.GetAverageDuration())
	}

	if err := s.writeReport(ctx, summary, started, p, opts); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *ApplyService) writeReport(ctx context.Context, summary *publish.Summary, started time.Time, p *types.Plan, opts ApplyOptions) error {
	sinks := report.Multi(nil)
	path := opts.ReportPath
	if path == "" {
		path = s.config.Report.Path
	}
	if path != "" {
		sinks = append(sinks, report.NewFileSink(s.fs, path))
	}
	sinks = append(sinks, s.sinks...)
	if len(sinks) == 0 {
		return nil
	}

	rep := report.New(summary, started)
	rep.Description = p.Options.Description
	if err := sinks.Write(ctx, rep); err != nil {
		s.logger.Error(ctx, err, "Writing run report failed", "run_id", rep.RunID)
		return err
	}
	s.logger.Info(ctx, "Run report written", "run_id", rep.RunID)
	return nil
}

// Pending lists the entries of the stored plan whose target version the
// registry does not have yet, in plan order.
func (s *ApplyService) Pending(ctx context.Context) ([]types.ReleaseEntry, error) {
	p, err := s.store().Load()
	if err != nil {
		return nil, err
	}
	publishing := publishingEntries(p)
	snap, err := s.snapshot(ctx, plan.Names(publishing))
	if err != nil {
		return nil, err
	}
	var out []types.ReleaseEntry
	for _, e := range publishing {
		if !snap.Has(e.Name, e.To) {
			out = append(out, e)
		}
	}
	return out, nil
}

func publishingEntries(p *types.Plan) []types.ReleaseEntry {
	var out []types.ReleaseEntry
	for _, e := range p.Entries {
		if e.Publish {
			out = append(out, e)
		}
	}
	return out
}
