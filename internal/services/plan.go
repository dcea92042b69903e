package services

import (
	"context"

	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/plan"
	"github.com/conneroisu/cascade/internal/types"
)

// PlanService computes and stores release plans.
type PlanService struct {
	*runtime
}

// NewPlanService creates a plan service.
func NewPlanService(cfg *config.Config, fs afero.Fs, opts ...Option) (*PlanService, error) {
	rt, err := newRuntime(cfg, fs, opts...)
	if err != nil {
		return nil, err
	}
	return &PlanService{runtime: rt}, nil
}

// PlanOptions selects what to plan.
type PlanOptions struct {
	Packages    []string
	All         bool
	Since       string
	Pre         string
	Fresh       bool
	Description string
	// Patch moves the named entries of the stored plan one patch release
	// forward instead of planning from scratch.
	Patch []string
}

// Plan loads the workspace and the stored plan, takes a registry snapshot,
// runs the planner and saves the result.
func (s *PlanService) Plan(ctx context.Context, opts PlanOptions) (*types.Plan, error) {
	op := logging.StartOperation(s.logger, "plan")
	store := s.store()

	if len(opts.Patch) > 0 {
		p, err := store.Load()
		if err != nil {
			return nil, err
		}
		if err := plan.PatchBump(p, opts.Patch); err != nil {
			return nil, err
		}
		if err := store.Save(p); err != nil {
			return nil, err
		}
		op.End(ctx)
		return p, nil
	}

	ws, graph, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	prior, err := store.LoadOrEmpty()
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, graph.Names())
	if err != nil {
		return nil, err
	}

	pre := opts.Pre
	if pre == "" {
		pre = s.config.Plan.Pre
	}

	planner := plan.NewPlanner(graph, snap, s.changeDetector(ws), s.classifier,
		plan.WithSeed(s.config.Plan.Seed),
		plan.WithLogger(s.logger))
	result, err := planner.Plan(ctx, prior, plan.Request{
		Packages:    opts.Packages,
		All:         opts.All,
		Since:       opts.Since,
		Pre:         pre,
		Fresh:       opts.Fresh,
		Description: opts.Description,
	})
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	if err := store.Save(result); err != nil {
		return nil, err
	}

	published := 0
	for _, e := range result.Entries {
		if e.Publish {
			published++
		}
	}
	s.logger.Info(ctx, "Plan written", "path", store.Path(), "entries", len(result.Entries), "publish", published)
	op.End(ctx)
	return result, nil
}
