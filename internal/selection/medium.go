package selection

import (
	"context"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// MediumPipeline gates on trend persistence, then ranks survivors by score
type MediumPipeline struct {
	picks  int
	levels []contracts.GateLevel
	gate   *GateEvaluator
	scorer *Scorer
	pricer Pricer
	logger *logger.Logger
}

// NewMediumPipeline creates the Medium-Term pipeline
func NewMediumPipeline(cfg *strategyconfig.Config, pricer Pricer, log *logger.Logger) *MediumPipeline {
	return &MediumPipeline{
		picks:  cfg.Selection.Picks,
		levels: cfg.LevelsFor(contracts.StrategyMedium),
		gate:   NewGateEvaluator(cfg.Selection.GateTarget, log),
		scorer: NewScorer(contracts.StrategyMedium, cfg.WeightsFor(contracts.StrategyMedium), cfg.Scoring, log),
		pricer: pricer,
		logger: log,
	}
}

func (p *MediumPipeline) Strategy() contracts.Strategy {
	return contracts.StrategyMedium
}

// Select gates, scores the pass-set and ranks by composite score only
func (p *MediumPipeline) Select(ctx context.Context, in PipelineInput) (*contracts.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newResult(contracts.StrategyMedium, in)

	required := uniqueFactors(p.scorer.Factors(), []contracts.FactorName{contracts.FactorPrice})
	entries, dropped := BuildPool(in.Pool, in.Factors, required)
	result.Dropped = dropped

	outcome := p.gate.Evaluate(contracts.StrategyMedium, p.levels, entries)
	result.GateLevel = outcome.Level
	result.GateTrace = outcome.Trace

	scores := p.scorer.Score(outcome.Passed)
	items := make([]ranked, len(outcome.Passed))
	for i, e := range outcome.Passed {
		items[i] = ranked{Entry: e, keys: []float64{scores[i]}}
	}
	sortRanked(items)

	result.Candidates, result.Flagged = finalize(contracts.StrategyMedium, items, outcome.Level, p.picks, p.pricer, false)

	p.logger.WithFields(map[string]interface{}{
		"strategy":   contracts.StrategyMedium,
		"pool":       len(in.Pool),
		"excluded":   in.Excluded,
		"dropped":    len(dropped),
		"gate_level": outcome.Level,
		"passed":     len(outcome.Passed),
		"selected":   len(result.Candidates),
	}).Info("Strategy selection completed")

	return result, nil
}
