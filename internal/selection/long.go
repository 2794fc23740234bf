package selection

import (
	"context"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// longFactors are required for valuation and the three sort keys
var longFactors = []contracts.FactorName{
	contracts.FactorPrice,
	contracts.FactorEPS,
	contracts.FactorGrowthRate,
	contracts.FactorDeepValue,
	contracts.FactorFundamental,
}

// LongPipeline gates on balance-sheet quality (Altman hard reject per level)
// and ranks by (SafetyMargin, DeepValue, Fundamental)
type LongPipeline struct {
	picks  int
	levels []contracts.GateLevel
	gate   *GateEvaluator
	valuer Valuer
	pricer Pricer
	logger *logger.Logger
}

// NewLongPipeline creates the Long-Term pipeline
func NewLongPipeline(cfg *strategyconfig.Config, valuer Valuer, pricer Pricer, log *logger.Logger) *LongPipeline {
	return &LongPipeline{
		picks:  cfg.Selection.Picks,
		levels: cfg.LevelsFor(contracts.StrategyLong),
		gate:   NewGateEvaluator(cfg.Selection.GateTarget, log),
		valuer: valuer,
		pricer: pricer,
		logger: log,
	}
}

func (p *LongPipeline) Strategy() contracts.Strategy {
	return contracts.StrategyLong
}

// Select values every instrument, gates and sorts by the three-key tuple
func (p *LongPipeline) Select(ctx context.Context, in PipelineInput) (*contracts.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newResult(contracts.StrategyLong, in)

	entries, dropped := BuildPool(in.Pool, in.Factors, longFactors)
	result.Dropped = dropped

	// 내재가치 ≤ 0 또는 가격 ≤ 0 → 목표가 정의 불가, 플래그 후 제외
	valued := make([]Entry, 0, len(entries))
	for _, e := range entries {
		v, err := p.valuer.Value(e.Factors)
		if err != nil {
			result.Flagged = append(result.Flagged, contracts.Flagged{
				InstrumentID: e.ID(),
				Kind:         contracts.KindTargetPriceUndefined,
				Detail:       err.Error(),
			})
			continue
		}
		e.Factors = e.Factors.
			With(contracts.FactorIntrinsicValue, v.IntrinsicValue).
			With(contracts.FactorSafetyMargin, v.SafetyMargin)
		valued = append(valued, e)
	}

	outcome := p.gate.Evaluate(contracts.StrategyLong, p.levels, valued)
	result.GateLevel = outcome.Level
	result.GateTrace = outcome.Trace

	items := make([]ranked, len(outcome.Passed))
	for i, e := range outcome.Passed {
		mos, _ := e.Factors.Get(contracts.FactorSafetyMargin)
		dv, _ := e.Factors.Get(contracts.FactorDeepValue)
		fund, _ := e.Factors.Get(contracts.FactorFundamental)
		items[i] = ranked{Entry: e, keys: []float64{mos, dv, fund}}
	}
	sortRanked(items)

	candidates, flagged := finalize(contracts.StrategyLong, items, outcome.Level, p.picks, p.pricer, true)
	result.Candidates = candidates
	result.Flagged = append(result.Flagged, flagged...)

	p.logger.WithFields(map[string]interface{}{
		"strategy":   contracts.StrategyLong,
		"pool":       len(in.Pool),
		"excluded":   in.Excluded,
		"dropped":    len(dropped),
		"flagged":    len(result.Flagged),
		"gate_level": outcome.Level,
		"passed":     len(outcome.Passed),
		"selected":   len(result.Candidates),
	}).Info("Strategy selection completed")

	return result, nil
}
