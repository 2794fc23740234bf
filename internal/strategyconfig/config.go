package strategyconfig

import (
	"time"

	"github.com/wonny/trifund/internal/contracts"
)

// Config는 3전략 선정 엔진의 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Selection  Selection  `yaml:"selection" json:"selection"`
	Scoring    Scoring    `yaml:"scoring" json:"scoring"`
	Gates      Gates      `yaml:"gates" json:"gates"`
	Targets    Targets    `yaml:"targets" json:"targets"`
	Allocation Allocation `yaml:"allocation" json:"allocation"`
	Narrative  Narrative  `yaml:"narrative" json:"narrative"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Selection holds the per-strategy output size and the gate target count
type Selection struct {
	Picks      int `yaml:"picks" json:"picks"`             // max candidates per strategy
	GateTarget int `yaml:"gate_target" json:"gate_target"` // stop relaxing once a level passes this many
}

// Normalization modes
const (
	NormPercentile = "percentile"
	NormZScore     = "zscore"
)

// Scoring: 전략별 복합 점수 가중치
type Scoring struct {
	Normalization string   `yaml:"normalization" json:"normalization"`
	ZScoreClip    float64  `yaml:"zscore_clip" json:"zscore_clip"`
	Short         []Weight `yaml:"short" json:"short"`
	Medium        []Weight `yaml:"medium" json:"medium"`
}

// Weight is one (factor, weight) pair; a list keeps the hash order stable
type Weight struct {
	Factor contracts.FactorName `yaml:"factor" json:"factor"`
	Weight float64              `yaml:"weight" json:"weight"`
}

// Gates: 단계별 완화 게이트 스케줄 (1 = 가장 엄격)
type Gates struct {
	Medium []Level `yaml:"medium" json:"medium"`
	Long   []Level `yaml:"long" json:"long"`
}

type Level struct {
	Rank       int         `yaml:"rank" json:"rank"`
	Predicates []Predicate `yaml:"predicates" json:"predicates,omitempty"`
}

type Predicate struct {
	Factor     contracts.FactorName `yaml:"factor" json:"factor"`
	Op         contracts.Comparator `yaml:"op" json:"op"`
	Threshold  float64              `yaml:"threshold" json:"threshold"`
	Ref        contracts.FactorName `yaml:"ref" json:"ref"` // compare against another factor
	HardReject bool                 `yaml:"hard_reject" json:"hard_reject"`
}

// Targets: 목표가 배수
type Targets struct {
	ShortMultiplier  float64 `yaml:"short_multiplier" json:"short_multiplier"`
	MediumMultiplier float64 `yaml:"medium_multiplier" json:"medium_multiplier"`
	BaseMultiple     float64 `yaml:"base_multiple" json:"base_multiple"` // Graham no-growth P/E (8.5)
	GrowthMultiple   float64 `yaml:"growth_multiple" json:"growth_multiple"`
}

// SignalNarrative selects the narrative score as the allocation signal
const SignalNarrative = "narrative_score"

// Allocation: Kelly 기반 배분
type Allocation struct {
	Short  AllocationRule `yaml:"short" json:"short"`
	Medium AllocationRule `yaml:"medium" json:"medium"`
	Long   AllocationRule `yaml:"long" json:"long"`
}

type AllocationRule struct {
	BasePct float64 `yaml:"base_pct" json:"base_pct"`
	Signal  string  `yaml:"signal" json:"signal"` // factor name or narrative_score
	Kelly   *Kelly  `yaml:"kelly,omitempty" json:"kelly,omitempty"`
}

// Kelly derives base_pct from win rate and payoff when set
type Kelly struct {
	WinRate  float64 `yaml:"win_rate" json:"win_rate"`
	Payoff   float64 `yaml:"payoff" json:"payoff"`     // avg win / avg loss
	Fraction float64 `yaml:"fraction" json:"fraction"` // 0.5 = half Kelly
	CapPct   float64 `yaml:"cap_pct" json:"cap_pct"`
}

// Narrative: 외부 AI 내러티브 설정
type Narrative struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Factor context sent with each request, per strategy
	Context NarrativeContext `yaml:"context" json:"context"`
}

type NarrativeContext struct {
	Short  []contracts.FactorName `yaml:"short" json:"short"`
	Medium []contracts.FactorName `yaml:"medium" json:"medium"`
	Long   []contracts.FactorName `yaml:"long" json:"long"`
}

// Snapshot ties a run to the exact configuration it used (audit)
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml,omitempty"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// WeightsFor returns the composite weights of s (nil for LONG)
func (c *Config) WeightsFor(s contracts.Strategy) []Weight {
	switch s {
	case contracts.StrategyShort:
		return c.Scoring.Short
	case contracts.StrategyMedium:
		return c.Scoring.Medium
	}
	return nil
}

// LevelsFor converts the gate schedule of s into immutable gate levels
func (c *Config) LevelsFor(s contracts.Strategy) []contracts.GateLevel {
	var src []Level
	switch s {
	case contracts.StrategyMedium:
		src = c.Gates.Medium
	case contracts.StrategyLong:
		src = c.Gates.Long
	default:
		return nil
	}

	levels := make([]contracts.GateLevel, len(src))
	for i, lvl := range src {
		preds := make([]contracts.Predicate, len(lvl.Predicates))
		for j, p := range lvl.Predicates {
			preds[j] = contracts.Predicate{
				Factor:     p.Factor,
				Op:         p.Op,
				Threshold:  p.Threshold,
				Ref:        p.Ref,
				HardReject: p.HardReject,
			}
		}
		levels[i] = contracts.GateLevel{Rank: lvl.Rank, Predicates: preds}
	}
	return levels
}

// AllocationFor returns the sizing rule of s
func (c *Config) AllocationFor(s contracts.Strategy) AllocationRule {
	switch s {
	case contracts.StrategyShort:
		return c.Allocation.Short
	case contracts.StrategyMedium:
		return c.Allocation.Medium
	}
	return c.Allocation.Long
}

// NarrativeContextFor returns the factor names sent with requests of s
func (c *Config) NarrativeContextFor(s contracts.Strategy) []contracts.FactorName {
	switch s {
	case contracts.StrategyShort:
		return c.Narrative.Context.Short
	case contracts.StrategyMedium:
		return c.Narrative.Context.Medium
	}
	return c.Narrative.Context.Long
}

func lvl(rank int, preds ...Predicate) Level {
	return Level{Rank: rank, Predicates: preds}
}

func gt(f contracts.FactorName, v float64) Predicate {
	return Predicate{Factor: f, Op: contracts.OpGT, Threshold: v}
}

func ge(f contracts.FactorName, v float64) Predicate {
	return Predicate{Factor: f, Op: contracts.OpGE, Threshold: v}
}

// Default mirrors config/strategy/trifund.yaml
// ⭐ SSOT: YAML 미지정 시 기본값
func Default() *Config {
	altman := func(v float64) Predicate {
		p := ge(contracts.FactorAltmanZ, v)
		p.HardReject = true
		return p
	}
	aboveSMA := Predicate{Factor: contracts.FactorPrice, Op: contracts.OpGT, Ref: contracts.FactorSMA200}

	return &Config{
		Meta: Meta{StrategyID: "trifund", Version: "1.0"},
		Selection: Selection{
			Picks:      5,
			GateTarget: 5,
		},
		Scoring: Scoring{
			Normalization: NormPercentile,
			ZScoreClip:    3,
			Short: []Weight{
				{contracts.FactorRelativeVolume, 0.30},
				{contracts.FactorMomentum1M, 0.25},
				{contracts.FactorShortInterest, 0.25},
				{contracts.FactorATR14, 0.20},
			},
			Medium: []Weight{
				{contracts.FactorHurst, 0.35},
				{contracts.FactorInstitutionalOwnership, 0.30},
				{contracts.FactorRelativeStrength, 0.20},
				{contracts.FactorQuantRisk, 0.15},
			},
		},
		Gates: Gates{
			Medium: []Level{
				lvl(1, gt(contracts.FactorHurst, 0.52), aboveSMA, gt(contracts.FactorInstitutionalOwnership, 0.20)),
				lvl(2, gt(contracts.FactorHurst, 0.52), aboveSMA),
				lvl(3, gt(contracts.FactorHurst, 0.48)),
				lvl(4),
			},
			Long: []Level{
				lvl(1, ge(contracts.FactorPiotroski, 7), altman(2.99), gt(contracts.FactorSafetyMargin, 0.10), gt(contracts.FactorDeepValue, 55)),
				lvl(2, ge(contracts.FactorPiotroski, 6), altman(2.50), gt(contracts.FactorDeepValue, 40)),
				lvl(3, ge(contracts.FactorPiotroski, 5), altman(1.81), gt(contracts.FactorDeepValue, 30)),
				lvl(4),
			},
		},
		Targets: Targets{
			ShortMultiplier:  1.75,
			MediumMultiplier: 1.65,
			BaseMultiple:     8.5,
			GrowthMultiple:   2,
		},
		Allocation: Allocation{
			Short:  AllocationRule{BasePct: 10, Signal: SignalNarrative},
			Medium: AllocationRule{BasePct: 12, Signal: string(contracts.FactorQuantRisk)},
			Long:   AllocationRule{BasePct: 15, Signal: string(contracts.FactorDeepValue)},
		},
		Narrative: Narrative{
			Enabled: true,
			Context: NarrativeContext{
				Short:  []contracts.FactorName{contracts.FactorRelativeVolume, contracts.FactorMomentum1M, contracts.FactorShortInterest, contracts.FactorSentiment},
				Medium: []contracts.FactorName{contracts.FactorHurst, contracts.FactorRelativeStrength, contracts.FactorQuantRisk},
				Long:   []contracts.FactorName{contracts.FactorPiotroski, contracts.FactorAltmanZ, contracts.FactorDeepValue, contracts.FactorFundamental},
			},
		},
	}
}
