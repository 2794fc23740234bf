package narrative

import (
	"math"

	"github.com/wonny/trifund/internal/contracts"
)

// Conviction weights; display only, never a ranking key
const (
	convQuantRisk   = 0.35
	convNarrative   = 0.25
	convFundamental = 0.20
	convSentiment   = 0.10
	convDeepValue   = 0.10
)

// Conviction blends quant, narrative, fundamental, sentiment and value into
// one 0-100 figure. Every component is clipped to [0, 100]; missing = 50.
func Conviction(c *contracts.Candidate) float64 {
	component := func(f contracts.FactorName) float64 {
		if v, ok := c.Factors.Get(f); ok {
			return clip100(v)
		}
		return neutralScore
	}

	sentiment := neutralScore
	if s, ok := c.Factors.Get(contracts.FactorSentiment); ok {
		sentiment = clip100((s + 1) / 2 * 100)
	}

	return convQuantRisk*component(contracts.FactorQuantRisk) +
		convNarrative*clip100(narrativeOrNeutral(c)) +
		convFundamental*component(contracts.FactorFundamental) +
		convSentiment*sentiment +
		convDeepValue*component(contracts.FactorDeepValue)
}

// ApplyConviction sets ConvictionScore on every candidate
func ApplyConviction(set *contracts.PortfolioSet) {
	for _, r := range set.Results() {
		for i := range r.Candidates {
			v := math.Round(Conviction(&r.Candidates[i])*100) / 100
			r.Candidates[i].ConvictionScore = &v
		}
	}
}

func clip100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
