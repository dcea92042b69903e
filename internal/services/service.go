// Package services implements the operations behind the cascade commands.
// Each service loads the workspace and the plan, wires the collaborators
// chosen by the configuration and hands the work to the planner, the
// scheduler or the publish executor.
package services

import (
	"context"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/cargo"
	"github.com/conneroisu/cascade/internal/classify"
	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/git"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/planstore"
	"github.com/conneroisu/cascade/internal/publish"
	"github.com/conneroisu/cascade/internal/registry"
	"github.com/conneroisu/cascade/internal/report"
	"github.com/conneroisu/cascade/internal/types"
	"github.com/conneroisu/cascade/internal/workspace"
)

// runtime holds the collaborators shared by all services.
type runtime struct {
	config     *config.Config
	fs         afero.Fs
	logger     logging.Logger
	registry   interfaces.Registry
	classifier interfaces.CompatibilityClassifier
	changes    interfaces.ChangeDetector
	editor     interfaces.ManifestEditor
	reporter   publish.Reporter
	sinks      []report.Sink
	getenv     func(string) string
	now        func() time.Time
}

// Option overrides a collaborator. Unset collaborators are built from the
// configuration.
type Option func(*runtime)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *runtime) { r.logger = l }
}

// WithRegistry replaces the sparse index and publish command.
func WithRegistry(reg interfaces.Registry) Option {
	return func(r *runtime) { r.registry = reg }
}

// WithClassifier replaces the configured compatibility classifier.
func WithClassifier(c interfaces.CompatibilityClassifier) Option {
	return func(r *runtime) { r.classifier = c }
}

// WithChangeDetector replaces git based change detection.
func WithChangeDetector(d interfaces.ChangeDetector) Option {
	return func(r *runtime) { r.changes = d }
}

// WithEditor replaces the manifest editor.
func WithEditor(e interfaces.ManifestEditor) Option {
	return func(r *runtime) { r.editor = e }
}

// WithReporter receives publish progress.
func WithReporter(rep publish.Reporter) Option {
	return func(r *runtime) { r.reporter = rep }
}

// WithSinks adds report destinations next to the configured ones.
func WithSinks(sinks ...report.Sink) Option {
	return func(r *runtime) { r.sinks = append(r.sinks, sinks...) }
}

// WithGetenv replaces os.Getenv for credential lookup.
func WithGetenv(fn func(string) string) Option {
	return func(r *runtime) { r.getenv = fn }
}

// WithNow replaces the clock used for report timestamps.
func WithNow(fn func() time.Time) Option {
	return func(r *runtime) { r.now = fn }
}

func newRuntime(cfg *config.Config, fs afero.Fs, opts ...Option) (*runtime, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "configuration is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	r := &runtime{
		config: cfg,
		fs:     fs,
		getenv: os.Getenv,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}

	if r.registry == nil {
		rc := cfg.Registry
		r.registry = registry.NewClient(
			registry.NewSparseIndex(rc.IndexURL, rc.Timeout, rc.UserAgent),
			registry.NewCommandPublisher(registry.CommandConfig{
				Command:    rc.PublishCommand,
				DryRunArgs: rc.DryRunArgs,
				TokenEnv:   rc.CommandTokenEnv,
				Dir:        cfg.Workspace.Root,
				Allowed:    rc.AllowedCommands,
			}, r.logger),
		)
	}

	if r.classifier == nil {
		var inner interfaces.CompatibilityClassifier = classify.Conservative{}
		if len(cfg.Plan.ClassifierCommand) > 0 {
			inner = classify.NewCommand(cfg.Plan.ClassifierCommand, cfg.Workspace.Root, r.logger)
		}
		r.classifier = classify.NewMemo(inner)
	}

	if cfg.Report.Object.Enabled() {
		sink, err := report.NewObjectSink(cfg.Report.Object)
		if err != nil {
			return nil, err
		}
		r.sinks = append(r.sinks, sink)
	}
	return r, nil
}

func (r *runtime) store() *planstore.Store {
	return planstore.New(r.fs, r.config.PlanPath())
}

// loadWorkspace reads the workspace manifests and builds the graph.
func (r *runtime) loadWorkspace(ctx context.Context) (*cargo.Workspace, *workspace.Graph, error) {
	ws, err := cargo.LoadWorkspace(ctx, r.fs, r.config.Workspace.Root, r.logger)
	if err != nil {
		return nil, nil, err
	}
	graph, err := workspace.NewGraph(ws.Packages)
	if err != nil {
		return nil, nil, err
	}
	return ws, graph, nil
}

func (r *runtime) changeDetector(ws *cargo.Workspace) interfaces.ChangeDetector {
	if r.changes != nil {
		return r.changes
	}
	return git.NewDetector(r.fs, ws.Root, ws.Packages, nil, r.logger)
}

func (r *runtime) manifestEditor(p *types.Plan) interfaces.ManifestEditor {
	if r.editor != nil {
		return r.editor
	}
	return cargo.NewEditor(r.fs, p, r.logger)
}

func (r *runtime) snapshot(ctx context.Context, names []string) (registry.Snapshot, error) {
	return registry.Fetch(ctx, r.registry, names, r.config.Apply.SnapshotConcurrency)
}
