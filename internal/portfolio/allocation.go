package portfolio

import (
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// NeutralSignal replaces a missing quality signal
const NeutralSignal = 50.0

// Allocator sizes each candidate from its strategy's base rate
// ⭐ SSOT: 배분 비율 계산은 여기서만
type Allocator struct {
	cfg    strategyconfig.Allocation
	logger *logger.Logger
}

// NewAllocator creates an allocator from the allocation section
func NewAllocator(cfg strategyconfig.Allocation, log *logger.Logger) *Allocator {
	return &Allocator{cfg: cfg, logger: log}
}

func (a *Allocator) rule(s contracts.Strategy) strategyconfig.AllocationRule {
	switch s {
	case contracts.StrategyShort:
		return a.cfg.Short
	case contracts.StrategyMedium:
		return a.cfg.Medium
	}
	return a.cfg.Long
}

// BaseRate returns the strategy base rate in percent. A Kelly block, when
// present, replaces base_pct with the fractional Kelly stake.
func (a *Allocator) BaseRate(s contracts.Strategy) float64 {
	r := a.rule(s)
	if r.Kelly == nil {
		return r.BasePct
	}
	k := r.Kelly
	return clamp(KellyFraction(k.WinRate, k.Payoff, k.Fraction)*100, 0, k.CapPct)
}

// Signal extracts the quality signal of c for its strategy; missing = 50
func (a *Allocator) Signal(c *contracts.Candidate) float64 {
	r := a.rule(c.Strategy)

	if r.Signal == strategyconfig.SignalNarrative {
		if score, ok := c.NarrativeScore(); ok {
			return score
		}
		return NeutralSignal
	}

	if v, ok := c.Factors.Get(contracts.FactorName(r.Signal)); ok {
		return v
	}
	return NeutralSignal
}

// Allocate returns the allocation percent of c
func (a *Allocator) Allocate(c *contracts.Candidate) float64 {
	return Bounded(a.BaseRate(c.Strategy), a.Signal(c))
}

// Apply sizes every candidate of the set in place
func (a *Allocator) Apply(set *contracts.PortfolioSet) {
	for _, r := range set.Results() {
		total := 0.0
		for i := range r.Candidates {
			c := &r.Candidates[i]
			c.AllocationPct = a.Allocate(c)
			total += c.AllocationPct
		}

		a.logger.WithFields(map[string]interface{}{
			"strategy":   r.Strategy,
			"base_pct":   a.BaseRate(r.Strategy),
			"candidates": len(r.Candidates),
			"total_pct":  Round2(total),
		}).Debug("Allocation applied")
	}
}

// Bounded = base × (0.5 + signal/100), clamped to [0, 2×base]
func Bounded(base, signal float64) float64 {
	if base <= 0 {
		return 0
	}
	return Round2(clamp(base*(0.5+signal/100), 0, 2*base))
}

// KellyFraction = fraction × (p·b − q) / b; never negative
func KellyFraction(winRate, payoff, fraction float64) float64 {
	if payoff <= 0 {
		return 0
	}
	f := (winRate*payoff - (1 - winRate)) / payoff
	if f < 0 {
		return 0
	}
	return f * fraction
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
