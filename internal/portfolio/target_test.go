package portfolio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
)

func newCalc() *TargetCalculator {
	return NewTargetCalculator(strategyconfig.Default().Targets)
}

func bundle(id string, values map[contracts.FactorName]float64) *contracts.FactorBundle {
	return &contracts.FactorBundle{InstrumentID: id, Values: values}
}

func TestIntrinsicValue(t *testing.T) {
	calc := newCalc()

	// EPS × (8.5 + 2g)
	assert.InDelta(t, 122.5, calc.IntrinsicValue(5, 8), 1e-9)
	assert.InDelta(t, 42.5, calc.IntrinsicValue(5, 0), 1e-9)
}

func TestTarget_PerStrategy(t *testing.T) {
	calc := newCalc()
	b := bundle("AAPL", map[contracts.FactorName]float64{
		contracts.FactorPrice:      100,
		contracts.FactorEPS:        5,
		contracts.FactorGrowthRate: 8,
	})

	short, err := calc.Target(contracts.StrategyShort, b)
	require.NoError(t, err)
	assert.Equal(t, 175.0, short.Target)
	assert.Nil(t, short.IntrinsicValue)

	medium, err := calc.Target(contracts.StrategyMedium, b)
	require.NoError(t, err)
	assert.Equal(t, 165.0, medium.Target)

	long, err := calc.Target(contracts.StrategyLong, b)
	require.NoError(t, err)
	assert.Equal(t, 122.5, long.Target, "long target equals intrinsic value")
	require.NotNil(t, long.IntrinsicValue)
	assert.Equal(t, 122.5, *long.IntrinsicValue)
}

func TestTargetFromSafetyMargin(t *testing.T) {
	// 8€, MoS 92% → 100€
	target, err := TargetFromSafetyMargin(8, 0.92)
	require.NoError(t, err)
	assert.Equal(t, 100.0, target)

	_, err = TargetFromSafetyMargin(8, 1)
	assert.True(t, errors.Is(err, contracts.ErrTargetPriceUndefined))

	_, err = TargetFromSafetyMargin(0, 0.5)
	assert.True(t, errors.Is(err, contracts.ErrTargetPriceUndefined))
}

func TestValue_Undefined(t *testing.T) {
	calc := newCalc()

	tests := []struct {
		name   string
		values map[contracts.FactorName]float64
		kind   contracts.ErrorKind
	}{
		{
			name:   "negative eps",
			values: map[contracts.FactorName]float64{contracts.FactorPrice: 10, contracts.FactorEPS: -1, contracts.FactorGrowthRate: 5},
			kind:   contracts.KindTargetPriceUndefined,
		},
		{
			name:   "zero price",
			values: map[contracts.FactorName]float64{contracts.FactorPrice: 0, contracts.FactorEPS: 2, contracts.FactorGrowthRate: 5},
			kind:   contracts.KindTargetPriceUndefined,
		},
		{
			name:   "growth missing",
			values: map[contracts.FactorName]float64{contracts.FactorPrice: 10, contracts.FactorEPS: 2},
			kind:   contracts.KindMissingFactorData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Value(bundle("X", tt.values))
			require.Error(t, err)
			assert.Equal(t, tt.kind, contracts.KindOf(err))
		})
	}
}

func TestValue_SafetyMargin(t *testing.T) {
	v, err := newCalc().Value(bundle("X", map[contracts.FactorName]float64{
		contracts.FactorPrice:      100,
		contracts.FactorEPS:        5,
		contracts.FactorGrowthRate: 8,
	}))
	require.NoError(t, err)
	assert.InDelta(t, 22.5/122.5, v.SafetyMargin, 1e-12)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005000001))
	assert.Equal(t, 2.5, Round2(2.4999999))
	assert.Equal(t, -1.24, Round2(-1.2351))
}
