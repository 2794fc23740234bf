package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/portfolio"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
)

// RunInput is everything the coordinator needs for one run
type RunInput struct {
	AsOf      time.Time
	Universe  []contracts.Instrument
	Catalysts []contracts.Instrument // Short-Term only
	Factors   map[string]*contracts.FactorBundle
}

// Coordinator runs the pipelines Short → Medium → Long, each excluding the
// finalized picks of every higher-priority pipeline
// ⭐ SSOT: 전략 간 중복 제거는 여기서만
type Coordinator struct {
	pipelines []Pipeline
	metrics   *metrics.Registry
	logger    *logger.Logger
}

// NewCoordinator wires the three default pipelines from cfg
func NewCoordinator(cfg *strategyconfig.Config, reg *metrics.Registry, log *logger.Logger) *Coordinator {
	calc := portfolio.NewTargetCalculator(cfg.Targets)
	return NewCoordinatorWith([]Pipeline{
		NewShortPipeline(cfg, calc, log),
		NewMediumPipeline(cfg, calc, log),
		NewLongPipeline(cfg, calc, calc, log),
	}, reg, log)
}

// NewCoordinatorWith runs the given pipelines in slice order
func NewCoordinatorWith(pipelines []Pipeline, reg *metrics.Registry, log *logger.Logger) *Coordinator {
	return &Coordinator{pipelines: pipelines, metrics: reg, logger: log}
}

// Run executes every pipeline. A failing pipeline yields an empty result with
// Error set and never stops the others; only context cancellation aborts.
func (c *Coordinator) Run(ctx context.Context, in RunInput) (*contracts.PortfolioSet, error) {
	set := &contracts.PortfolioSet{AsOf: in.AsOf}
	claimed := make(map[string]struct{})

	for _, p := range c.pipelines {
		strategy := p.Strategy()

		pool := in.Universe
		if strategy == contracts.StrategyShort {
			pool = contracts.MergeInstruments(in.Universe, in.Catalysts)
		}
		remaining := contracts.ExcludeIDs(pool, claimed)

		start := time.Now()
		res, err := c.runIsolated(ctx, p, PipelineInput{
			AsOf:     in.AsOf,
			Pool:     remaining,
			Factors:  in.Factors,
			Excluded: len(pool) - len(remaining),
		})
		c.metrics.ObserveStage("select_"+strategy.Label(), time.Since(start))

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("selection canceled at %s: %w", strategy, ctxErr)
			}
			c.logger.WithError(err).WithField("strategy", strategy).Error("Strategy pipeline failed")
			res = &contracts.SelectionResult{
				Strategy:   strategy,
				Candidates: []contracts.Candidate{},
				PoolSize:   len(remaining),
				Excluded:   len(pool) - len(remaining),
				Error:      err.Error(),
			}
		}

		for _, id := range res.IDs() {
			claimed[id] = struct{}{}
		}
		c.record(res)

		switch strategy {
		case contracts.StrategyShort:
			set.Short = res
		case contracts.StrategyMedium:
			set.Medium = res
		case contracts.StrategyLong:
			set.Long = res
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"as_of":    in.AsOf.Format("2006-01-02"),
		"universe": len(in.Universe),
		"catalyst": len(in.Catalysts),
		"selected": set.Size(),
	}).Info("Selection completed")

	return set, nil
}

// runIsolated converts a pipeline panic into an error for that strategy only
func (c *Coordinator) runIsolated(ctx context.Context, p Pipeline, in PipelineInput) (res *contracts.SelectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s pipeline panic: %v", p.Strategy(), r)
		}
	}()
	return p.Select(ctx, in)
}

func (c *Coordinator) record(res *contracts.SelectionResult) {
	label := res.Strategy.Label()
	c.metrics.SetSelected(label, len(res.Candidates))
	if res.GateLevel > 0 {
		c.metrics.RecordGate(label, res.GateLevel)
	}
	c.metrics.AddDropped(label, string(contracts.KindMissingFactorData), len(res.Dropped))
	for _, f := range res.Flagged {
		c.metrics.AddDropped(label, string(f.Kind), 1)
	}
}
