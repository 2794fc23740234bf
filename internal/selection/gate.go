package selection

import (
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
)

// GateOutcome is the result of progressive gate relaxation
type GateOutcome struct {
	Passed []Entry
	Level  int // rank of the admitting level; 0 when nothing passed
	Trace  []contracts.LevelTrace
}

// GateEvaluator walks gate levels strictest first and stops at the first
// level admitting at least target instruments
// ⭐ SSOT: 게이트 완화 로직은 여기서만
type GateEvaluator struct {
	target int
	logger *logger.Logger
}

// NewGateEvaluator creates an evaluator with the given target count
func NewGateEvaluator(target int, log *logger.Logger) *GateEvaluator {
	if target < 1 {
		target = 1
	}
	return &GateEvaluator{target: target, logger: log}
}

// Evaluate applies levels in order. When every level underflows, the pass-set
// of the least strict non-empty level evaluated is returned.
func (g *GateEvaluator) Evaluate(strategy contracts.Strategy, levels []contracts.GateLevel, pool []Entry) GateOutcome {
	var out GateOutcome
	var fallback []Entry
	fallbackLevel := 0

	for _, lvl := range levels {
		passed, hardRejected := PassSet(lvl, pool)
		out.Trace = append(out.Trace, contracts.LevelTrace{
			Rank:         lvl.Rank,
			Passed:       len(passed),
			HardRejected: hardRejected,
		})

		if len(hardRejected) > 0 {
			// 예상된 동작: 에러가 아님
			g.logger.WithFields(map[string]interface{}{
				"strategy":      strategy,
				"gate_level":    lvl.Rank,
				"hard_rejected": len(hardRejected),
			}).Debug("Hard reject at level")
		}

		if len(passed) >= g.target {
			out.Passed = passed
			out.Level = lvl.Rank
			return out
		}

		if len(passed) > 0 {
			fallback = passed
			fallbackLevel = lvl.Rank
		}

		g.logger.WithFields(map[string]interface{}{
			"strategy":   strategy,
			"gate_level": lvl.Rank,
			"passed":     len(passed),
			"target":     g.target,
		}).Debug("Gate underflow, relaxing")
	}

	out.Passed = fallback
	out.Level = fallbackLevel
	if fallbackLevel > 0 {
		g.logger.WithFields(map[string]interface{}{
			"strategy":   strategy,
			"gate_level": fallbackLevel,
			"passed":     len(fallback),
		}).Warn("All gate levels underflowed, using least strict non-empty level")
	}

	return out
}

// PassSet evaluates one level independently of every other level. An
// instrument failing a hard-reject predicate is reported separately.
func PassSet(lvl contracts.GateLevel, pool []Entry) ([]Entry, []string) {
	passed := make([]Entry, 0, len(pool))
	var hardRejected []string

	for _, e := range pool {
		ok := true
		for _, p := range lvl.Predicates {
			if p.Eval(e.Factors) {
				continue
			}
			ok = false
			if p.HardReject {
				hardRejected = append(hardRejected, e.ID())
				break
			}
		}
		if ok {
			passed = append(passed, e)
		}
	}

	return passed, hardRejected
}
