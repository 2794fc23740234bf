package selection

import (
	"context"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// ShortPipeline scores the whole pool (universe ∪ catalysts) without gating
type ShortPipeline struct {
	picks  int
	scorer *Scorer
	pricer Pricer
	logger *logger.Logger
}

// NewShortPipeline creates the Short-Term pipeline
func NewShortPipeline(cfg *strategyconfig.Config, pricer Pricer, log *logger.Logger) *ShortPipeline {
	return &ShortPipeline{
		picks:  cfg.Selection.Picks,
		scorer: NewScorer(contracts.StrategyShort, cfg.WeightsFor(contracts.StrategyShort), cfg.Scoring, log),
		pricer: pricer,
		logger: log,
	}
}

func (p *ShortPipeline) Strategy() contracts.Strategy {
	return contracts.StrategyShort
}

// Select ranks by composite score descending
func (p *ShortPipeline) Select(ctx context.Context, in PipelineInput) (*contracts.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newResult(contracts.StrategyShort, in)

	required := uniqueFactors(p.scorer.Factors(), []contracts.FactorName{contracts.FactorPrice})
	entries, dropped := BuildPool(in.Pool, in.Factors, required)
	result.Dropped = dropped

	scores := p.scorer.Score(entries)
	items := make([]ranked, len(entries))
	for i, e := range entries {
		items[i] = ranked{Entry: e, keys: []float64{scores[i]}}
	}
	sortRanked(items)

	result.Candidates, result.Flagged = finalize(contracts.StrategyShort, items, 0, p.picks, p.pricer, false)

	p.logger.WithFields(map[string]interface{}{
		"strategy": contracts.StrategyShort,
		"pool":     len(in.Pool),
		"scored":   len(entries),
		"dropped":  len(dropped),
		"selected": len(result.Candidates),
	}).Info("Strategy selection completed")

	return result, nil
}
