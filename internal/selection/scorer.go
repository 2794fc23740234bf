package selection

import (
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// Scorer computes the weighted composite score of one strategy
// ⭐ SSOT: 복합 점수 계산은 여기서만
type Scorer struct {
	strategy contracts.Strategy
	weights  []strategyconfig.Weight
	method   string
	clip     float64
	logger   *logger.Logger
}

// NewScorer creates a scorer for strategy with the given weights
func NewScorer(strategy contracts.Strategy, weights []strategyconfig.Weight, scoring strategyconfig.Scoring, log *logger.Logger) *Scorer {
	return &Scorer{
		strategy: strategy,
		weights:  weights,
		method:   scoring.Normalization,
		clip:     scoring.ZScoreClip,
		logger:   log,
	}
}

// Factors lists the scoring factors in weight order
func (s *Scorer) Factors() []contracts.FactorName {
	names := make([]contracts.FactorName, len(s.weights))
	for i, w := range s.weights {
		names[i] = w.Factor
	}
	return names
}

// Score returns 100 × Σ wᵢ·normᵢ for every entry, each factor normalized
// against the given pool. Entries must carry every scoring factor.
func (s *Scorer) Score(pool []Entry) []float64 {
	scores := make([]float64, len(pool))
	if len(pool) == 0 {
		return scores
	}

	raw := make([]float64, len(pool))
	for _, w := range s.weights {
		for i, e := range pool {
			raw[i], _ = e.Factors.Get(w.Factor)
		}
		norm := Normalize(s.method, s.clip, raw)
		for i := range pool {
			scores[i] += w.Weight * norm[i]
		}
	}

	for i := range scores {
		scores[i] *= 100
	}

	s.logger.WithFields(map[string]interface{}{
		"strategy":      s.strategy,
		"pool":          len(pool),
		"normalization": s.method,
	}).Debug("Composite scores computed")

	return scores
}
