package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
)

// TargetCalculator derives target prices and Graham valuations
// ⭐ SSOT: 목표가/내재가치 계산은 여기서만
type TargetCalculator struct {
	cfg strategyconfig.Targets
}

// NewTargetCalculator creates a calculator from the targets section
func NewTargetCalculator(cfg strategyconfig.Targets) *TargetCalculator {
	return &TargetCalculator{cfg: cfg}
}

// Valuation is the Long-Term intrinsic value and margin of safety
type Valuation struct {
	IntrinsicValue float64
	SafetyMargin   float64 // fraction of intrinsic value
}

// Quote is the priced view of one candidate
type Quote struct {
	Current        float64
	Target         float64
	IntrinsicValue *float64
}

// IntrinsicValue = EPS × (base + growthMultiple × g), g in percent
func (t *TargetCalculator) IntrinsicValue(eps, growthPct float64) float64 {
	return eps * (t.cfg.BaseMultiple + t.cfg.GrowthMultiple*growthPct)
}

// Value computes the valuation of b. It fails with ErrTargetPriceUndefined
// when intrinsic value or price is not positive (safety margin >= 1).
func (t *TargetCalculator) Value(b *contracts.FactorBundle) (Valuation, error) {
	price, okP := b.Get(contracts.FactorPrice)
	eps, okE := b.Get(contracts.FactorEPS)
	g, okG := b.Get(contracts.FactorGrowthRate)
	if !okP || !okE || !okG {
		return Valuation{}, contracts.NewSelectionError(contracts.KindMissingFactorData, contracts.StrategyLong, b.InstrumentID, nil)
	}

	iv := t.IntrinsicValue(eps, g)
	if iv <= 0 || price <= 0 {
		return Valuation{}, contracts.NewSelectionError(contracts.KindTargetPriceUndefined, contracts.StrategyLong, b.InstrumentID,
			fmt.Errorf("%w: intrinsic value %.4f, price %.4f", contracts.ErrTargetPriceUndefined, iv, price))
	}

	return Valuation{IntrinsicValue: iv, SafetyMargin: (iv - price) / iv}, nil
}

// Target prices one candidate of strategy s
func (t *TargetCalculator) Target(s contracts.Strategy, b *contracts.FactorBundle) (Quote, error) {
	price, ok := b.Get(contracts.FactorPrice)
	if !ok {
		return Quote{}, contracts.NewSelectionError(contracts.KindMissingFactorData, s, b.InstrumentID, nil)
	}
	if price <= 0 {
		return Quote{}, contracts.NewSelectionError(contracts.KindTargetPriceUndefined, s, b.InstrumentID,
			fmt.Errorf("%w: price %.4f", contracts.ErrTargetPriceUndefined, price))
	}

	switch s {
	case contracts.StrategyShort:
		return Quote{Current: price, Target: Round2(price * t.cfg.ShortMultiplier)}, nil

	case contracts.StrategyMedium:
		return Quote{Current: price, Target: Round2(price * t.cfg.MediumMultiplier)}, nil

	case contracts.StrategyLong:
		mos, ok := b.Get(contracts.FactorSafetyMargin)
		if !ok {
			v, err := t.Value(b)
			if err != nil {
				return Quote{}, err
			}
			mos = v.SafetyMargin
		}
		target, err := TargetFromSafetyMargin(price, mos)
		if err != nil {
			return Quote{}, contracts.NewSelectionError(contracts.KindTargetPriceUndefined, s, b.InstrumentID, err)
		}
		iv := target
		return Quote{Current: price, Target: target, IntrinsicValue: &iv}, nil
	}

	return Quote{}, fmt.Errorf("unknown strategy %q", s)
}

// TargetFromSafetyMargin = price / (1 - mos), rounded to cents
func TargetFromSafetyMargin(price, mos float64) (float64, error) {
	if mos >= 1 || price <= 0 {
		return 0, fmt.Errorf("%w: safety margin %.4f, price %.4f", contracts.ErrTargetPriceUndefined, mos, price)
	}
	return Round2(price / (1 - mos)), nil
}

// Round2 rounds half away from zero to two decimals
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
