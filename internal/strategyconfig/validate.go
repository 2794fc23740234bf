package strategyconfig

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/trifund/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

const weightEpsilon = 1e-6

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Selection ===
	if cfg.Selection.Picks < 1 {
		return ValidationError{"selection.picks", "must be >= 1"}
	}
	if cfg.Selection.GateTarget < 1 {
		return ValidationError{"selection.gate_target", "must be >= 1"}
	}

	// === Scoring ===
	switch cfg.Scoring.Normalization {
	case NormPercentile, NormZScore:
	default:
		return ValidationError{"scoring.normalization", "must be percentile or zscore"}
	}
	if cfg.Scoring.Normalization == NormZScore && cfg.Scoring.ZScoreClip <= 0 {
		return ValidationError{"scoring.zscore_clip", "must be > 0 for zscore"}
	}
	if err := validateWeights(cfg.Scoring.Short, "scoring.short"); err != nil {
		return err
	}
	if err := validateWeights(cfg.Scoring.Medium, "scoring.medium"); err != nil {
		return err
	}

	// === Gates ===
	if err := validateSchedule(cfg.Gates.Medium, "gates.medium"); err != nil {
		return err
	}
	if err := validateSchedule(cfg.Gates.Long, "gates.long"); err != nil {
		return err
	}

	// === Targets ===
	if cfg.Targets.ShortMultiplier <= 0 {
		return ValidationError{"targets.short_multiplier", "must be > 0"}
	}
	if cfg.Targets.MediumMultiplier <= 0 {
		return ValidationError{"targets.medium_multiplier", "must be > 0"}
	}
	if cfg.Targets.BaseMultiple <= 0 {
		return ValidationError{"targets.base_multiple", "must be > 0"}
	}
	if cfg.Targets.GrowthMultiple < 0 {
		return ValidationError{"targets.growth_multiple", "must be >= 0"}
	}

	// === Allocation ===
	for _, s := range contracts.Strategies() {
		field := "allocation." + s.Label()
		if err := validateAllocation(cfg.AllocationFor(s), field); err != nil {
			return err
		}
	}

	// === Narrative ===
	for _, s := range contracts.Strategies() {
		for i, f := range cfg.NarrativeContextFor(s) {
			if !f.Known() {
				return ValidationError{fmt.Sprintf("narrative.context.%s[%d]", s.Label(), i), fmt.Sprintf("unknown factor %q", f)}
			}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 마지막 레벨이 accept-all이 아니면 빈 결과 가능
	for name, levels := range map[string][]Level{"medium": cfg.Gates.Medium, "long": cfg.Gates.Long} {
		if n := len(levels); n > 0 && len(levels[n-1].Predicates) > 0 {
			warnings = append(warnings, Warning{
				Code:    "NO_ACCEPT_ALL",
				Message: fmt.Sprintf("gates.%s: last level has predicates, strategy may return fewer picks", name),
			})
		}
	}

	if cfg.Selection.GateTarget < cfg.Selection.Picks {
		warnings = append(warnings, Warning{
			Code:    "LOW_GATE_TARGET",
			Message: fmt.Sprintf("gate_target=%d < picks=%d: gates stop before enough names pass", cfg.Selection.GateTarget, cfg.Selection.Picks),
		})
	}

	// Kelly edge <= 0 이면 해당 전략 배분이 0으로 수렴
	for _, st := range contracts.Strategies() {
		k := cfg.AllocationFor(st).Kelly
		if k == nil {
			continue
		}
		if k.WinRate*k.Payoff-(1-k.WinRate) <= 0 {
			warnings = append(warnings, Warning{
				Code:    "NEGATIVE_EDGE",
				Message: fmt.Sprintf("allocation.%s.kelly: no positive edge, base rate becomes 0", st.Label()),
			})
		}
	}

	return warnings
}

// === Helper Functions ===

func validateWeights(weights []Weight, field string) error {
	if len(weights) == 0 {
		return ValidationError{field, "must not be empty"}
	}

	seen := make(map[contracts.FactorName]bool)
	values := make([]float64, 0, len(weights))
	for i, w := range weights {
		if !w.Factor.Known() {
			return ValidationError{fmt.Sprintf("%s[%d].factor", field, i), fmt.Sprintf("unknown factor %q", w.Factor)}
		}
		if seen[w.Factor] {
			return ValidationError{fmt.Sprintf("%s[%d].factor", field, i), "duplicate factor"}
		}
		if w.Weight < 0 {
			return ValidationError{fmt.Sprintf("%s[%d].weight", field, i), "must be >= 0"}
		}
		seen[w.Factor] = true
		values = append(values, w.Weight)
	}

	if err := validateWeightsSum(values, 1.0, weightEpsilon); err != nil {
		return ValidationError{field, err.Error()}
	}
	return nil
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

// validateSchedule: rank 1..n 연속, 각 레벨은 이전 레벨보다 느슨해야 함
func validateSchedule(levels []Level, field string) error {
	if len(levels) == 0 {
		return ValidationError{field, "must have at least one level"}
	}

	for i, l := range levels {
		lf := fmt.Sprintf("%s[%d]", field, i)
		if l.Rank != i+1 {
			return ValidationError{lf + ".rank", fmt.Sprintf("must be %d", i+1)}
		}

		for j, p := range l.Predicates {
			pf := fmt.Sprintf("%s.predicates[%d]", lf, j)
			if !p.Factor.Known() {
				return ValidationError{pf + ".factor", fmt.Sprintf("unknown factor %q", p.Factor)}
			}
			if !p.Op.Valid() {
				return ValidationError{pf + ".op", fmt.Sprintf("unsupported comparator %q", p.Op)}
			}
			if p.Ref != "" && !p.Ref.Known() {
				return ValidationError{pf + ".ref", fmt.Sprintf("unknown factor %q", p.Ref)}
			}
		}

		if i == 0 {
			continue
		}
		if err := checkRelaxes(levels[i-1], l); err != nil {
			return ValidationError{lf, err.Error()}
		}
	}

	return nil
}

// checkRelaxes verifies next is implied by prev: every predicate of next has
// a counterpart in prev on the same operand and direction that is at least
// as strict. This keeps pass(prev) a subset of pass(next) for any pool.
func checkRelaxes(prev, next Level) error {
	for _, np := range next.Predicates {
		found := false
		for _, pp := range prev.Predicates {
			if pp.Factor != np.Factor || pp.Ref != np.Ref || pp.Op.Lower() != np.Op.Lower() {
				continue
			}
			if atLeastAsStrict(pp, np) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s%s is not implied by level %d", np.Factor, np.Op, prev.Rank)
		}
	}
	return nil
}

func atLeastAsStrict(prev, next Predicate) bool {
	if prev.Ref != "" {
		return prev.Op == next.Op || (prev.Op == contracts.OpGT && next.Op == contracts.OpGE) ||
			(prev.Op == contracts.OpLT && next.Op == contracts.OpLE)
	}

	if prev.Threshold == next.Threshold {
		strictPrev := prev.Op == contracts.OpGT || prev.Op == contracts.OpLT
		strictNext := next.Op == contracts.OpGT || next.Op == contracts.OpLT
		return strictPrev || !strictNext
	}
	if prev.Op.Lower() {
		return prev.Threshold > next.Threshold
	}
	return prev.Threshold < next.Threshold
}

func validateAllocation(r AllocationRule, field string) error {
	if r.BasePct < 0 || r.BasePct > 100 {
		return ValidationError{field + ".base_pct", "must be in range [0, 100]"}
	}
	if r.Signal != SignalNarrative && !contracts.FactorName(r.Signal).Known() {
		return ValidationError{field + ".signal", fmt.Sprintf("unknown signal %q", r.Signal)}
	}

	if k := r.Kelly; k != nil {
		if k.WinRate <= 0 || k.WinRate >= 1 {
			return ValidationError{field + ".kelly.win_rate", "must be in (0, 1)"}
		}
		if k.Payoff <= 0 {
			return ValidationError{field + ".kelly.payoff", "must be > 0"}
		}
		if k.Fraction <= 0 || k.Fraction > 1 {
			return ValidationError{field + ".kelly.fraction", "must be in (0, 1]"}
		}
		if k.CapPct <= 0 || k.CapPct > 100 {
			return ValidationError{field + ".kelly.cap_pct", "must be in (0, 100]"}
		}
	}
	return nil
}
