package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/trifund/internal/contracts"
)

const systemPrompt = `You are an equity research analyst. Assess one stock for the stated
investment horizon only. Reply with a single JSON object and nothing else:
{"catalysts": [string], "threats": [string], "ai_impact": "opportunity"|"threat"|"neutral", "narrative_score": number 0-100}`

var horizonText = map[contracts.Strategy]string{
	contracts.StrategyShort:  "short-term (days to weeks): catalysts, squeezes, momentum events",
	contracts.StrategyMedium: "medium-term (months): trend persistence and institutional support",
	contracts.StrategyLong:   "long-term (years): balance-sheet quality and intrinsic value",
}

// buildPrompt renders one request. Only the request's own strategy and
// factor context are included.
func buildPrompt(req contracts.NarrativeRequest) string {
	var b strings.Builder

	name := req.InstrumentID
	if req.Name != "" {
		name = fmt.Sprintf("%s (%s)", req.Name, req.InstrumentID)
	}

	fmt.Fprintf(&b, "Stock: %s\n", name)
	fmt.Fprintf(&b, "Horizon: %s\n", horizonText[req.Strategy])
	if !req.AsOf.IsZero() {
		fmt.Fprintf(&b, "As of: %s\n", req.AsOf.Format("2006-01-02"))
	}

	if len(req.Factors) > 0 {
		names := make([]string, 0, len(req.Factors))
		for f := range req.Factors {
			names = append(names, string(f))
		}
		sort.Strings(names)

		b.WriteString("Factors:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s: %.4g\n", n, req.Factors[contracts.FactorName(n)])
		}
	}

	b.WriteString("\nList the main catalysts and threats, judge whether AI is an opportunity or a threat for this business, and score the overall narrative from 0 (very negative) to 100 (very positive).")
	return b.String()
}
