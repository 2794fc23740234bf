package selection

import (
	"context"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/portfolio"
)

// PipelineInput is the already-deduplicated pool of one strategy
type PipelineInput struct {
	AsOf     time.Time
	Pool     []contracts.Instrument
	Factors  map[string]*contracts.FactorBundle
	Excluded int // instruments removed because a higher-priority strategy claimed them
}

// Pipeline selects the ranked picks of one strategy
type Pipeline interface {
	Strategy() contracts.Strategy
	Select(ctx context.Context, in PipelineInput) (*contracts.SelectionResult, error)
}

// Pricer derives target prices for finalized picks
type Pricer interface {
	Target(s contracts.Strategy, b *contracts.FactorBundle) (portfolio.Quote, error)
}

// Valuer derives the Long-Term valuation of a bundle
type Valuer interface {
	Value(b *contracts.FactorBundle) (portfolio.Valuation, error)
}

// finalize walks the ranked list and keeps the first picks instruments with
// a defined target. Instruments with an undefined target are flagged and the
// next-ranked instrument takes the slot.
func finalize(
	strategy contracts.Strategy,
	items []ranked,
	gateLevel int,
	picks int,
	pricer Pricer,
	keepKeys bool,
) ([]contracts.Candidate, []contracts.Flagged) {
	candidates := make([]contracts.Candidate, 0, picks)
	var flagged []contracts.Flagged

	for _, it := range items {
		if len(candidates) == picks {
			break
		}

		q, err := pricer.Target(strategy, it.Factors)
		if err != nil {
			kind := contracts.KindOf(err)
			if kind == "" {
				kind = contracts.KindTargetPriceUndefined
			}
			flagged = append(flagged, contracts.Flagged{InstrumentID: it.ID(), Kind: kind, Detail: err.Error()})
			continue
		}

		c := contracts.Candidate{
			Instrument:     it.Instrument,
			Strategy:       strategy,
			Rank:           len(candidates) + 1,
			CompositeScore: it.keys[0],
			GateLevel:      gateLevel,
			CurrentPrice:   q.Current,
			TargetPrice:    q.Target,
			IntrinsicValue: q.IntrinsicValue,
			Factors:        it.Factors,
		}
		if keepKeys {
			c.SortKeys = append([]float64(nil), it.keys...)
		}
		candidates = append(candidates, c)
	}

	return candidates, flagged
}

func newResult(strategy contracts.Strategy, in PipelineInput) *contracts.SelectionResult {
	return &contracts.SelectionResult{
		Strategy:   strategy,
		Candidates: []contracts.Candidate{},
		PoolSize:   len(in.Pool),
		Excluded:   in.Excluded,
	}
}
