package contracts

import (
	"math"
	"time"
)

// FactorName identifies one raw factor in a bundle
type FactorName string

// Factors supplied by the external snapshot store
const (
	FactorPrice                  FactorName = "price"
	FactorRelativeVolume         FactorName = "relative_volume"
	FactorMomentum1M             FactorName = "momentum_1m"
	FactorShortInterest          FactorName = "short_interest"
	FactorATR14                  FactorName = "atr_14"
	FactorHurst                  FactorName = "hurst_exponent"
	FactorSMA200                 FactorName = "sma_200"
	FactorInstitutionalOwnership FactorName = "institutional_ownership" // fraction, 0.20 = 20%
	FactorRelativeStrength       FactorName = "relative_strength"       // vs benchmark
	FactorQuantRisk              FactorName = "quant_risk_score"        // 0-100
	FactorPiotroski              FactorName = "piotroski_f_score"       // 0-9
	FactorAltmanZ                FactorName = "altman_z_score"
	FactorEPS                    FactorName = "eps"
	FactorGrowthRate             FactorName = "expected_growth_pct" // percent, 8 = 8%
	FactorDeepValue              FactorName = "deep_value_score"    // 0-100
	FactorFundamental            FactorName = "fundamental_score"   // 0-100
	FactorSentiment              FactorName = "sentiment"           // -1..1
)

// Derived inside the engine, never read from the store
const (
	FactorSafetyMargin   FactorName = "safety_margin" // fraction
	FactorIntrinsicValue FactorName = "intrinsic_value"
)

// FactorBundle is the read-only factor snapshot of one instrument for one run
// ⭐ SSOT: 외부 팩터 스냅샷은 이 구조체로만 전달
type FactorBundle struct {
	InstrumentID string                 `json:"instrument_id"`
	AsOf         time.Time              `json:"as_of"`
	Values       map[FactorName]float64 `json:"values"`
}

// Get returns the factor value. NaN and ±Inf count as missing.
func (b *FactorBundle) Get(name FactorName) (float64, bool) {
	if b == nil || b.Values == nil {
		return 0, false
	}
	v, ok := b.Values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Missing lists the names that Get would not return
func (b *FactorBundle) Missing(names ...FactorName) []FactorName {
	var missing []FactorName
	for _, n := range names {
		if _, ok := b.Get(n); !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// With returns a copy of the bundle carrying an extra (derived) value
func (b *FactorBundle) With(name FactorName, v float64) *FactorBundle {
	values := make(map[FactorName]float64, len(b.Values)+1)
	for k, val := range b.Values {
		values[k] = val
	}
	values[name] = v

	return &FactorBundle{InstrumentID: b.InstrumentID, AsOf: b.AsOf, Values: values}
}

// Subset copies only the named factors (narrative context, API output)
func (b *FactorBundle) Subset(names ...FactorName) map[FactorName]float64 {
	out := make(map[FactorName]float64, len(names))
	for _, n := range names {
		if v, ok := b.Get(n); ok {
			out[n] = v
		}
	}
	return out
}

var knownFactors = map[FactorName]struct{}{
	FactorPrice: {}, FactorRelativeVolume: {}, FactorMomentum1M: {}, FactorShortInterest: {},
	FactorATR14: {}, FactorHurst: {}, FactorSMA200: {}, FactorInstitutionalOwnership: {},
	FactorRelativeStrength: {}, FactorQuantRisk: {}, FactorPiotroski: {}, FactorAltmanZ: {},
	FactorEPS: {}, FactorGrowthRate: {}, FactorDeepValue: {}, FactorFundamental: {},
	FactorSentiment: {}, FactorSafetyMargin: {}, FactorIntrinsicValue: {},
}

// Known reports whether f is a factor the engine understands
func (f FactorName) Known() bool {
	_, ok := knownFactors[f]
	return ok
}
