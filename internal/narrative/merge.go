package narrative

import (
	"sort"

	"github.com/wonny/trifund/internal/contracts"
)

// neutralScore stands in for a missing narrative in the Short-Term re-sort
const neutralScore = 50.0

// Merge writes narrative fields onto every candidate of its own strategy and
// re-sorts Short-Term by (CompositeScore, NarrativeScore) descending. The
// re-sort only permutes the already-selected picks; Medium and Long keep
// their order. Composite scores are never modified.
func Merge(set *contracts.PortfolioSet, report DispatchReport) {
	for _, r := range set.Results() {
		for i := range r.Candidates {
			c := &r.Candidates[i]
			if n, ok := report.Results[Key{r.Strategy, c.Instrument.ID}]; ok {
				c.Narrative = n
			}
		}
	}

	if set.Short == nil || len(set.Short.Candidates) < 2 {
		return
	}

	picks := set.Short.Candidates
	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].CompositeScore != picks[j].CompositeScore {
			return picks[i].CompositeScore > picks[j].CompositeScore
		}
		return narrativeOrNeutral(&picks[i]) > narrativeOrNeutral(&picks[j])
	})
	for i := range picks {
		picks[i].Rank = i + 1
	}
}

func narrativeOrNeutral(c *contracts.Candidate) float64 {
	if s, ok := c.NarrativeScore(); ok {
		return s
	}
	return neutralScore
}
