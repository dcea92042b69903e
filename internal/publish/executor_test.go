package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/registry"
	"github.com/conneroisu/cascade/internal/schedule"
	"github.com/conneroisu/cascade/internal/testutils"
	"github.com/conneroisu/cascade/internal/types"
)

var testDeps = map[string][]string{
	"b": {"a"},
	"c": {"a"},
	"d": {"b"},
}

func depFunc(name string) []string { return testDeps[name] }

func entry(name string) types.ReleaseEntry {
	return types.ReleaseEntry{Name: name, From: "1.0.0", To: "2.0.0", Bump: types.BumpMajor, Publish: true}
}

func batches(groups ...[]string) schedule.Schedule {
	var s schedule.Schedule
	for _, g := range groups {
		var b schedule.Batch
		for _, name := range g {
			b.Entries = append(b.Entries, entry(name))
		}
		s.Batches = append(s.Batches, b)
	}
	return s
}

func fastPoller(reg *testutils.Registry) *Poller {
	return NewPoller(reg, 2*time.Millisecond, 40*time.Millisecond, nil)
}

func stage(reg *testutils.Registry, s schedule.Schedule) {
	for _, b := range s.Batches {
		reg.StageEntries(b.Entries)
	}
}

func outcomeMap(s *Summary) map[string]Outcome {
	out := make(map[string]Outcome, len(s.Outcomes))
	for _, o := range s.Outcomes {
		out[o.Name] = o
	}
	return out
}

type recordingReporter struct {
	mu      sync.Mutex
	batches []int
	done    []string
}

func (r *recordingReporter) BatchStarted(index, total int, batch schedule.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, index)
}

func (r *recordingReporter) PackageDone(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, o.Name)
}

func TestRunPublishesInBatchOrder(t *testing.T) {
	reg := testutils.NewRegistry()
	sched := batches([]string{"a"}, []string{"b", "c"}, []string{"d"})
	stage(reg, sched)
	reporter := &recordingReporter{}

	exec := NewExecutor(reg, fastPoller(reg), Options{MaxConcurrent: 4}, WithReporter(reporter))
	summary := exec.Run(context.Background(), sched)

	require.True(t, summary.OK())
	assert.NoError(t, summary.Err())
	assert.Equal(t, 4, summary.Published)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, summary.Batches)

	published := reg.Published()
	require.Len(t, published, 4)
	assert.Equal(t, "a", published[0])
	assert.ElementsMatch(t, []string{"b", "c"}, published[1:3])
	assert.Equal(t, "d", published[3])

	for _, o := range summary.Outcomes {
		assert.True(t, o.Visible, o.Name)
	}
	assert.Equal(t, []int{0, 1, 2}, reporter.batches)
	assert.Len(t, reporter.done, 4)
	assert.Equal(t, int64(4), exec.Metrics().GetSuccessCount())
}

func TestRunContinuesAfterFailure(t *testing.T) {
	reg := testutils.NewRegistry().FailPublish("a", errors.New("server error 500"))
	sched := batches([]string{"a"}, []string{"b", "c"})
	stage(reg, sched)

	summary := NewExecutor(reg, fastPoller(reg), Options{MaxConcurrent: 2}).Run(context.Background(), sched)

	assert.False(t, summary.OK())
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Published)
	assert.Equal(t, []string{"a"}, summary.FailedNames())
	assert.ElementsMatch(t, []string{"b", "c"}, reg.Published())

	err := summary.Err()
	require.Error(t, err)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodePublishFailed))
	assert.Contains(t, err.Error(), "server error 500")
	assert.Equal(t, "a", outcomeMap(summary)["a"].Name)
	assert.NotEmpty(t, outcomeMap(summary)["a"].ErrorText())
}

func TestRunSkipsDependentsOfFailedInStrictMode(t *testing.T) {
	reg := testutils.NewRegistry().FailPublish("a", errors.New("boom"))
	sched := batches([]string{"a", "e"}, []string{"b", "c"}, []string{"d"})
	stage(reg, sched)

	exec := NewExecutor(reg, fastPoller(reg),
		Options{MaxConcurrent: 2, SkipDependentsOfFailed: true},
		WithDependencies(depFunc))
	summary := exec.Run(context.Background(), sched)

	outcomes := outcomeMap(summary)
	assert.Equal(t, StatusFailed, outcomes["a"].Status)
	assert.Equal(t, StatusPublished, outcomes["e"].Status)
	assert.Equal(t, StatusSkipped, outcomes["b"].Status)
	assert.Equal(t, "dependency a failed", outcomes["b"].Detail)
	assert.Equal(t, StatusSkipped, outcomes["c"].Status)
	assert.Equal(t, StatusSkipped, outcomes["d"].Status)
	assert.Equal(t, "dependency a failed", outcomes["d"].Detail)
	assert.Equal(t, []string{"e"}, reg.Published())
	assert.Equal(t, 3, summary.Skipped)
}

func TestRunPollTimeoutDoesNotFail(t *testing.T) {
	reg := testutils.NewRegistry().HideAfterPublish("a")
	sched := batches([]string{"a"}, []string{"b", "c"})
	stage(reg, sched)

	summary := NewExecutor(reg, fastPoller(reg), Options{MaxConcurrent: 2}).Run(context.Background(), sched)

	require.True(t, summary.OK())
	outcomes := outcomeMap(summary)
	assert.False(t, outcomes["a"].Visible)
	assert.True(t, outcomes["b"].Visible)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, reg.Published())
	assert.Greater(t, reg.Queries("a"), 1)
}

func TestRunBoundsConcurrency(t *testing.T) {
	reg := testutils.NewRegistry()
	reg.PublishDelay = 15 * time.Millisecond
	sched := batches([]string{"p1", "p2", "p3", "p4", "p5", "p6"})

	summary := NewExecutor(reg, nil, Options{MaxConcurrent: 2}).Run(context.Background(), sched)

	assert.Equal(t, 6, summary.Published)
	assert.LessOrEqual(t, reg.MaxInFlight(), 2)
	assert.GreaterOrEqual(t, reg.MaxInFlight(), 1)
}

func TestRunSleepsBetweenBatches(t *testing.T) {
	tests := []struct {
		name     string
		parallel int
		expected int
	}{
		{"sequential", 0, 2},
		{"groups of two", 2, 1},
		{"one group", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testutils.NewRegistry()
			sched := batches([]string{"a"}, []string{"b", "c"}, []string{"d"})

			exec := NewExecutor(reg, nil, Options{MaxConcurrent: 2, BatchDelay: time.Hour, ParallelBatches: tt.parallel})
			var slept []time.Duration
			exec.sleep = func(ctx context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}

			summary := exec.Run(context.Background(), sched)
			assert.Equal(t, 4, summary.Published)
			assert.Len(t, slept, tt.expected)
			for _, d := range slept {
				assert.Equal(t, time.Hour, d)
			}
		})
	}
}

func TestRunDryRun(t *testing.T) {
	reg := testutils.NewRegistry()
	sched := batches([]string{"a"}, []string{"b"})

	summary := NewExecutor(reg, fastPoller(reg), Options{DryRun: true}).Run(context.Background(), sched)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Published)
	assert.Empty(t, reg.Published())
	assert.Equal(t, []string{"a", "b"}, reg.DryRuns())
	assert.Zero(t, reg.Queries("a"), "dry runs are not polled")
	assert.True(t, outcomeMap(summary)["a"].DryRun)
}

func TestRunSkipsAlreadyPublished(t *testing.T) {
	reg := testutils.NewRegistry()
	sched := batches([]string{"a", "b"})
	snap := registry.Snapshot{"a": {{Version: "2.0.0"}}}

	summary := NewExecutor(reg, nil, Options{MaxConcurrent: 2}, WithSnapshot(snap)).Run(context.Background(), sched)

	outcomes := outcomeMap(summary)
	assert.Equal(t, StatusSkipped, outcomes["a"].Status)
	assert.Equal(t, "already published", outcomes["a"].Detail)
	assert.Equal(t, []string{"b"}, reg.Published())
	assert.True(t, summary.OK())
}

func TestRunCancelled(t *testing.T) {
	reg := testutils.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewExecutor(reg, nil, Options{}).Run(ctx, batches([]string{"a"}, []string{"b"}))

	assert.False(t, summary.OK())
	assert.ErrorIs(t, summary.Cancelled, context.Canceled)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, reg.Published())
	assert.ErrorIs(t, summary.Err(), context.Canceled)
}

func TestRunCancelledMidBatchFinishesDispatchedPublishes(t *testing.T) {
	reg := testutils.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]error)
	reg.OnPublish = func(pctx context.Context, name string) {
		if name == "a" {
			cancel()
		}
		mu.Lock()
		defer mu.Unlock()
		seen[name] = pctx.Err()
	}
	sched := batches([]string{"a", "b"}, []string{"c"})
	stage(reg, sched)

	summary := NewExecutor(reg, fastPoller(reg), Options{MaxConcurrent: 1}).Run(ctx, sched)

	outcomes := outcomeMap(summary)
	assert.Equal(t, StatusPublished, outcomes["a"].Status)
	assert.True(t, outcomes["a"].Visible)
	for _, name := range []string{"b", "c"} {
		assert.Equal(t, StatusSkipped, outcomes[name].Status, name)
		assert.Equal(t, "run cancelled", outcomes[name].Detail, name)
	}
	assert.Zero(t, summary.Failed)
	assert.ErrorIs(t, summary.Cancelled, context.Canceled)
	assert.Equal(t, []string{"a"}, reg.Published())

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, seen, "a")
	assert.NoError(t, seen["a"], "a dispatched publish must not see the cancellation")
	assert.NotContains(t, seen, "b")
}

func TestRunPriorFailuresBlockDependents(t *testing.T) {
	reg := testutils.NewRegistry()
	prior := Outcome{Name: "a", Version: "2.0.0", Status: StatusFailed, Err: errors.New("manifest rewrite failed")}

	exec := NewExecutor(reg, nil, Options{SkipDependentsOfFailed: true}, WithDependencies(depFunc))
	summary := exec.Run(context.Background(), batches([]string{"b", "e"}), prior)

	outcomes := outcomeMap(summary)
	assert.Equal(t, StatusFailed, outcomes["a"].Status)
	assert.Equal(t, StatusSkipped, outcomes["b"].Status)
	assert.Equal(t, StatusPublished, outcomes["e"].Status)
	assert.Equal(t, 1, summary.Failed)
}
