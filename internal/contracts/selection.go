package contracts

import (
	"fmt"
	"time"
)

// Candidate is a ranked, priced and sized instrument of one strategy
// ⭐ SSOT: 전략 파이프라인 → 출력 간 후보 전달
type Candidate struct {
	Instrument Instrument `json:"instrument"`
	Strategy   Strategy   `json:"strategy"`
	Rank       int        `json:"rank"` // 1-based

	// CompositeScore is the weighted score (SHORT, MEDIUM). For LONG it holds
	// the margin of safety, the first key of SortKeys.
	CompositeScore float64   `json:"composite_score"`
	SortKeys       []float64 `json:"sort_keys,omitempty"`

	// GateLevel is the level that admitted the pass-set; 0 for SHORT (ungated)
	GateLevel int `json:"gate_level"`

	CurrentPrice   float64  `json:"current_price"`
	TargetPrice    float64  `json:"target_price"`
	IntrinsicValue *float64 `json:"intrinsic_value,omitempty"`
	AllocationPct  float64  `json:"allocation_pct"`

	Narrative       *Narrative `json:"narrative,omitempty"`
	ConvictionScore *float64   `json:"conviction_score,omitempty"`

	Factors *FactorBundle `json:"factors,omitempty"`
}

// NarrativeScore returns the merged narrative score, if any
func (c *Candidate) NarrativeScore() (float64, bool) {
	if c.Narrative == nil {
		return 0, false
	}
	return c.Narrative.Score, true
}

// Dropped is an instrument removed from one strategy's pool
type Dropped struct {
	InstrumentID string       `json:"instrument_id"`
	Kind         ErrorKind    `json:"kind"`
	Missing      []FactorName `json:"missing,omitempty"`
}

// Flagged is a ranked instrument withheld from output (e.g. undefined target)
type Flagged struct {
	InstrumentID string    `json:"instrument_id"`
	Kind         ErrorKind `json:"kind"`
	Detail       string    `json:"detail,omitempty"`
}

// SelectionResult is one strategy's output
type SelectionResult struct {
	Strategy   Strategy     `json:"strategy"`
	Candidates []Candidate  `json:"candidates"`
	GateLevel  int          `json:"gate_level"`
	GateTrace  []LevelTrace `json:"gate_trace,omitempty"`
	PoolSize   int          `json:"pool_size"`
	Excluded   int          `json:"excluded"` // claimed by a higher-priority strategy
	Dropped    []Dropped    `json:"dropped,omitempty"`
	Flagged    []Flagged    `json:"flagged,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// IDs returns the selected instrument IDs in rank order
func (r *SelectionResult) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.Instrument.ID
	}
	return ids
}

// Failed reports whether the pipeline ended with an error
func (r *SelectionResult) Failed() bool {
	return r != nil && r.Error != ""
}

// PortfolioSet is the published output of one run
type PortfolioSet struct {
	RunID           string           `json:"run_id"`
	AsOf            time.Time        `json:"as_of"`
	GeneratedAt     time.Time        `json:"generated_at"`
	ConfigHash      string           `json:"config_hash"`
	Short           *SelectionResult `json:"short"`
	Medium          *SelectionResult `json:"medium"`
	Long            *SelectionResult `json:"long"`
	NarrativeStatus NarrativeStatus  `json:"narrative_status"`
}

// Result returns the SelectionResult of strategy s
func (p *PortfolioSet) Result(s Strategy) *SelectionResult {
	switch s {
	case StrategyShort:
		return p.Short
	case StrategyMedium:
		return p.Medium
	case StrategyLong:
		return p.Long
	}
	return nil
}

// Results returns the non-nil results in priority order
func (p *PortfolioSet) Results() []*SelectionResult {
	out := make([]*SelectionResult, 0, 3)
	for _, s := range Strategies() {
		if r := p.Result(s); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Size is the total number of selected instruments
func (p *PortfolioSet) Size() int {
	n := 0
	for _, r := range p.Results() {
		n += len(r.Candidates)
	}
	return n
}

// Validate checks that the three selections are pairwise disjoint and that
// no strategy exceeds maxPerStrategy candidates.
func (p *PortfolioSet) Validate(maxPerStrategy int) error {
	owner := make(map[string]Strategy)

	for _, r := range p.Results() {
		if len(r.Candidates) > maxPerStrategy {
			return fmt.Errorf("%s has %d candidates, max %d", r.Strategy, len(r.Candidates), maxPerStrategy)
		}
		for _, c := range r.Candidates {
			if prev, dup := owner[c.Instrument.ID]; dup {
				return fmt.Errorf("instrument %s selected by both %s and %s", c.Instrument.ID, prev, r.Strategy)
			}
			owner[c.Instrument.ID] = r.Strategy
		}
	}

	return nil
}
