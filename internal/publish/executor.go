// Package publish releases scheduled packages to the registry batch by
// batch with bounded concurrency.
package publish

import (
	"context"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/registry"
	"github.com/conneroisu/cascade/internal/schedule"
	"github.com/conneroisu/cascade/internal/types"
)

// Options control a publish run.
type Options struct {
	// MaxConcurrent bounds publishes in flight within one batch.
	MaxConcurrent int
	// BatchDelay is slept between batches, or between groups of batches.
	BatchDelay time.Duration
	// ParallelBatches starts this many consecutive batches together. A later
	// batch of a group may then run before an earlier one has finished.
	ParallelBatches int
	// DryRun asks the registry to validate without uploading.
	DryRun bool
	// SkipDependentsOfFailed skips every package with a failed dependency
	// instead of attempting it.
	SkipDependentsOfFailed bool
	// Token is handed to the registry on every publish.
	Token string
}

// cancelledDetail marks entries skipped because the run was cancelled.
const cancelledDetail = "run cancelled"

// Reporter receives progress as the run advances. PackageDone is called from
// worker goroutines and must be safe for concurrent use.
type Reporter interface {
	BatchStarted(index, total int, batch schedule.Batch)
	PackageDone(o Outcome)
}

type nopReporter struct{}

func (nopReporter) BatchStarted(int, int, schedule.Batch) {}
func (nopReporter) PackageDone(Outcome)                   {}

// Executor runs a release schedule.
type Executor struct {
	registry interfaces.Registry
	poller   *Poller
	snapshot registry.Snapshot
	deps     schedule.DependencyFunc
	logger   logging.Logger
	metrics  *Metrics
	reporter Reporter
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSnapshot skips entries whose target version the snapshot already has.
func WithSnapshot(s registry.Snapshot) ExecutorOption {
	return func(e *Executor) { e.snapshot = s }
}

// WithDependencies supplies the graph used by SkipDependentsOfFailed.
func WithDependencies(deps schedule.DependencyFunc) ExecutorOption {
	return func(e *Executor) { e.deps = deps }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithMetrics records outcomes into m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l.WithComponent("publish")
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(reg interfaces.Registry, poller *Poller, opts Options, options ...ExecutorOption) *Executor {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	e := &Executor{
		registry: reg,
		poller:   poller,
		deps:     func(string) []string { return nil },
		logger:   logging.NewNopLogger(),
		metrics:  NewMetrics(),
		reporter: nopReporter{},
		opts:     opts,
		sleep:    sleepContext,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Metrics returns the executor's metrics.
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Run publishes the schedule. Failures are recorded and never stop the run:
// later batches are still dispatched unless SkipDependentsOfFailed is set, in
// which case only the affected dependents are skipped. prior carries
// outcomes decided before the run, such as failed manifest edits; their
// failures count towards the summary and towards skipping dependents.
//
// The set of failed packages is owned by this goroutine and only updated
// between batches (or groups of batches).
func (e *Executor) Run(ctx context.Context, sched schedule.Schedule, prior ...Outcome) *Summary {
	start := time.Now()
	summary := &Summary{DryRun: e.opts.DryRun, Batches: sched.Names()}
	failed := make(map[string]string)

	for _, o := range prior {
		summary.add(o)
		e.metrics.Record(o)
		if o.Status == StatusFailed {
			failed[o.Name] = o.Name
		}
	}

	groups := schedule.Groups(sched, e.opts.ParallelBatches)
	index := 0
	for gi, group := range groups {
		if gi > 0 && e.opts.BatchDelay > 0 {
			e.logger.Debug(ctx, "Waiting between batches", "delay", e.opts.BatchDelay.String())
			if err := e.sleep(ctx, e.opts.BatchDelay); err != nil {
				summary.Cancelled = err
			}
		}
		if summary.Cancelled == nil && ctx.Err() != nil {
			summary.Cancelled = ctx.Err()
		}
		if summary.Cancelled != nil {
			for _, b := range sched.Batches[index:] {
				for _, entry := range b.Entries {
					summary.add(Outcome{Name: entry.Name, Version: entry.To, Status: StatusSkipped, Detail: cancelledDetail})
				}
			}
			break
		}

		results := make([][]Outcome, len(group))
		blocked := e.blockedBy(group, failed)
		if len(group) == 1 {
			results[0] = e.runBatch(ctx, index, len(sched.Batches), group[0], blocked)
		} else {
			var wg conc.WaitGroup
			for i, b := range group {
				wg.Go(func() {
					results[i] = e.runBatch(ctx, index+i, len(sched.Batches), b, blocked)
				})
			}
			wg.Wait()
		}

		for _, outcomes := range results {
			for _, o := range outcomes {
				summary.add(o)
				if o.Detail == cancelledDetail && summary.Cancelled == nil {
					summary.Cancelled = ctx.Err()
				}
				if o.Status == StatusFailed {
					failed[o.Name] = o.Name
				} else if root, ok := blocked[o.Name]; ok {
					failed[o.Name] = root
				}
			}
		}
		index += len(group)
	}

	summary.Duration = time.Since(start)
	e.logger.Info(ctx, "Publish run finished",
		"published", summary.Published,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration.String())
	return summary
}

// blockedBy maps each entry of the group that has a failed dependency to
// the package whose failure blocks it. It is empty unless
// SkipDependentsOfFailed is set.
func (e *Executor) blockedBy(group []schedule.Batch, failed map[string]string) map[string]string {
	blocked := make(map[string]string)
	if !e.opts.SkipDependentsOfFailed || len(failed) == 0 {
		return blocked
	}
	for _, b := range group {
		for _, entry := range b.Entries {
			for _, d := range e.deps(entry.Name) {
				if root, ok := failed[d]; ok {
					blocked[entry.Name] = root
					break
				}
			}
		}
	}
	return blocked
}

func (e *Executor) runBatch(ctx context.Context, index, total int, batch schedule.Batch, blocked map[string]string) []Outcome {
	e.reporter.BatchStarted(index, total, batch)
	e.logger.Info(ctx, "Starting batch",
		"batch", index+1, "of", total, "packages", strings.Join(batch.Names(), ","))

	outcomes := make([]Outcome, len(batch.Entries))
	p := pool.New().WithMaxGoroutines(e.opts.MaxConcurrent)
	for i, entry := range batch.Entries {
		if root, ok := blocked[entry.Name]; ok {
			outcomes[i] = Outcome{
				Name:    entry.Name,
				Version: entry.To,
				Status:  StatusSkipped,
				Batch:   index,
				Detail:  "dependency " + root + " failed",
			}
			e.finish(ctx, outcomes[i])
			continue
		}
		p.Go(func() {
			outcomes[i] = e.publishOne(ctx, index, entry)
			e.finish(ctx, outcomes[i])
		})
	}
	p.Wait()
	return outcomes
}

func (e *Executor) finish(ctx context.Context, o Outcome) {
	e.metrics.Record(o)
	e.reporter.PackageDone(o)
	switch o.Status {
	case StatusFailed:
		e.logger.Error(ctx, o.Err, "Publish failed", "package", o.Name, "version", o.Version)
	case StatusSkipped:
		e.logger.Info(ctx, "Skipped package", "package", o.Name, "version", o.Version, "reason", o.Detail)
	default:
		e.logger.Info(ctx, "Published package",
			"package", o.Name, "version", o.Version, "duration", o.Duration.String(), "dry_run", o.DryRun)
	}
}

// publishOne publishes a single entry. Cancellation is only observed before
// the upload starts; once dispatched, the upload and its visibility poll run
// to completion.
func (e *Executor) publishOne(ctx context.Context, index int, entry types.ReleaseEntry) Outcome {
	o := Outcome{Name: entry.Name, Version: entry.To, Batch: index, DryRun: e.opts.DryRun}

	if ctx.Err() != nil {
		o.Status = StatusSkipped
		o.Detail = cancelledDetail
		return o
	}
	ctx = context.WithoutCancel(ctx)

	if e.snapshot.Has(entry.Name, entry.To) {
		o.Status = StatusSkipped
		o.Detail = "already published"
		return o
	}

	op := logging.StartOperation(e.logger.With("package", entry.Name), "publish")
	err := e.registry.Publish(ctx, entry.Name, types.PublishOptions{DryRun: e.opts.DryRun, Token: e.opts.Token})
	o.Duration = op.Elapsed()
	if err != nil {
		o.Status = StatusFailed
		o.Err = errors.ErrPublishFailed(entry.Name, err).WithContext("version", entry.To)
		return o
	}
	o.Status = StatusPublished

	if !e.opts.DryRun && e.poller != nil {
		o.Visible = e.poller.WaitForVersion(ctx, entry.Name, entry.To)
	}
	o.Duration = op.End(ctx)
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
