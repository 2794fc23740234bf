package quality

import (
	"sort"
	"time"

	"github.com/wonny/trifund/internal/contracts"
)

// QualityGate measures factor coverage of a run before selection
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinCoverage float64 `yaml:"min_coverage"` // 0.80
}

// Snapshot is the coverage report of one run date
type Snapshot struct {
	Date         time.Time                        `json:"date"`
	TotalStocks  int                              `json:"total_stocks"`
	Eligible     map[contracts.Strategy]int       `json:"eligible"`
	Coverage     map[contracts.FactorName]float64 `json:"coverage"`
	QualityScore float64                          `json:"quality_score"`
	Passed       bool                             `json:"passed"`
	Weakest      []contracts.FactorName           `json:"weakest,omitempty"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check computes, for the given universe, the share of instruments carrying
// each required factor and the number eligible per strategy.
// ⭐ SSOT: S0 → 선정 품질 검증
func (g *QualityGate) Check(date time.Time, ids []string, bundles map[string]*contracts.FactorBundle, required map[contracts.Strategy][]contracts.FactorName) *Snapshot {
	snapshot := &Snapshot{
		Date:        date,
		TotalStocks: len(ids),
		Eligible:    make(map[contracts.Strategy]int, len(required)),
		Coverage:    make(map[contracts.FactorName]float64),
	}

	// 1. 필요한 팩터 집합
	factorSet := make(map[contracts.FactorName]struct{})
	for _, names := range required {
		for _, f := range names {
			factorSet[f] = struct{}{}
		}
	}

	// 2. 팩터별 커버리지 및 전략별 적격 종목 수
	counts := make(map[contracts.FactorName]int, len(factorSet))
	for _, id := range ids {
		b := bundles[id]
		for f := range factorSet {
			if _, ok := b.Get(f); ok {
				counts[f]++
			}
		}
		for s, names := range required {
			if len(b.Missing(names...)) == 0 {
				snapshot.Eligible[s]++
			}
		}
	}

	if len(ids) == 0 {
		return snapshot
	}

	// 3. 품질 점수 = 필요 팩터 커버리지 평균
	sum := 0.0
	for f := range factorSet {
		cov := float64(counts[f]) / float64(len(ids))
		snapshot.Coverage[f] = cov
		sum += cov
		if cov < g.config.MinCoverage {
			snapshot.Weakest = append(snapshot.Weakest, f)
		}
	}
	if len(factorSet) > 0 {
		snapshot.QualityScore = sum / float64(len(factorSet))
	}
	snapshot.Passed = snapshot.QualityScore >= g.config.MinCoverage

	sort.Slice(snapshot.Weakest, func(i, j int) bool { return snapshot.Weakest[i] < snapshot.Weakest[j] })

	return snapshot
}
