package strategyconfig

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
)

func TestLoad(t *testing.T) {
	path := "../../config/strategy/trifund.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "trifund", cfg.Meta.StrategyID)
	assert.Len(t, cfg.Gates.Long, 4)
	assert.True(t, cfg.Gates.Long[1].Predicates[1].HardReject)

	// YAML과 Default()는 동일해야 함
	fileHash, err := Hash(cfg)
	require.NoError(t, err)
	defaultHash, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, defaultHash, fileHash)
	assert.Len(t, fileHash, 64)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
	assert.Empty(t, Warn(Default()))
}

func TestDefault_WeightsSumToOne(t *testing.T) {
	cfg := Default()
	for _, s := range []contracts.Strategy{contracts.StrategyShort, contracts.StrategyMedium} {
		sum := 0.0
		for _, w := range cfg.WeightsFor(s) {
			sum += w.Weight
		}
		assert.InDelta(t, 1.0, sum, weightEpsilon, "strategy %s", s)
	}
	assert.Nil(t, cfg.WeightsFor(contracts.StrategyLong))
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("meta:\n  strategy_id: x\n  unknown_key: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_key")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"zero picks", func(c *Config) { c.Selection.Picks = 0 }, "selection.picks"},
		{"bad normalization", func(c *Config) { c.Scoring.Normalization = "minmax" }, "scoring.normalization"},
		{"weights do not sum", func(c *Config) { c.Scoring.Short[0].Weight = 0.31 }, "scoring.short"},
		{"unknown weight factor", func(c *Config) { c.Scoring.Medium[0].Factor = "beta" }, "scoring.medium[0].factor"},
		{"duplicate weight factor", func(c *Config) { c.Scoring.Medium[1].Factor = contracts.FactorHurst }, "scoring.medium[1].factor"},
		{"rank gap", func(c *Config) { c.Gates.Medium[2].Rank = 4 }, "gates.medium[2].rank"},
		{"bad comparator", func(c *Config) { c.Gates.Long[0].Predicates[0].Op = "==" }, "gates.long[0].predicates[0].op"},
		{
			"non-monotonic threshold",
			func(c *Config) { c.Gates.Long[2].Predicates[2].Threshold = 60 },
			"gates.long[2]",
		},
		{
			"level adds a predicate",
			func(c *Config) {
				c.Gates.Medium[2].Predicates = append(c.Gates.Medium[2].Predicates,
					Predicate{Factor: contracts.FactorQuantRisk, Op: contracts.OpGT, Threshold: 10})
			},
			"gates.medium[2]",
		},
		{"negative base rate", func(c *Config) { c.Allocation.Long.BasePct = -1 }, "allocation.long.base_pct"},
		{"unknown signal", func(c *Config) { c.Allocation.Medium.Signal = "vibes" }, "allocation.medium.signal"},
		{
			"kelly win rate",
			func(c *Config) { c.Allocation.Short.Kelly = &Kelly{WinRate: 1.2, Payoff: 2, Fraction: 0.5, CapPct: 20} },
			"allocation.short.kelly.win_rate",
		},
		{"unknown narrative factor", func(c *Config) { c.Narrative.Context.Long = []contracts.FactorName{"x"} }, "narrative.context.long[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidate_EqualThresholdLooserOperator(t *testing.T) {
	cfg := Default()
	// >0.52 → >=0.52 는 완화
	cfg.Gates.Medium[2].Predicates[0] = Predicate{Factor: contracts.FactorHurst, Op: contracts.OpGE, Threshold: 0.52}
	assert.NoError(t, Validate(cfg))

	// >=0.48 → >0.48 는 강화
	cfg.Gates.Medium[1].Predicates[0] = Predicate{Factor: contracts.FactorHurst, Op: contracts.OpGE, Threshold: 0.52}
	cfg.Gates.Medium[0].Predicates[0] = Predicate{Factor: contracts.FactorHurst, Op: contracts.OpGE, Threshold: 0.52}
	cfg.Gates.Medium[2].Predicates[0] = Predicate{Factor: contracts.FactorHurst, Op: contracts.OpGT, Threshold: 0.52}
	assert.Error(t, Validate(cfg))
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Gates.Long = cfg.Gates.Long[:3]
	cfg.Selection.GateTarget = 3
	cfg.Allocation.Long.Kelly = &Kelly{WinRate: 0.3, Payoff: 1, Fraction: 0.5, CapPct: 20}

	codes := make(map[string]bool)
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	assert.True(t, codes["NO_ACCEPT_ALL"])
	assert.True(t, codes["LOW_GATE_TARGET"])
	assert.True(t, codes["NEGATIVE_EDGE"])
}

func TestLevelsFor(t *testing.T) {
	cfg := Default()

	long := cfg.LevelsFor(contracts.StrategyLong)
	require.Len(t, long, 4)
	assert.True(t, long[3].AcceptAll())
	assert.Equal(t, "L3(piotroski_f_score>=5, altman_z_score>=1.81, deep_value_score>30)", long[2].String())

	medium := cfg.LevelsFor(contracts.StrategyMedium)
	assert.Equal(t, contracts.FactorSMA200, medium[0].Predicates[1].Ref)
	assert.Nil(t, cfg.LevelsFor(contracts.StrategyShort))
}

func TestHash_ChangesWithConfig(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)

	cfg := Default()
	cfg.Targets.ShortMultiplier = 1.8
	b, err := Hash(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.False(t, math.IsNaN(cfg.Targets.ShortMultiplier))
}

func TestNewSnapshot(t *testing.T) {
	snap, err := NewSnapshot(Default(), []byte("meta: {}"))
	require.NoError(t, err)
	assert.Equal(t, "trifund", snap.StrategyID)
	assert.Equal(t, "meta: {}", snap.ConfigYAML)
	assert.Len(t, snap.ConfigHash, 64)
}
