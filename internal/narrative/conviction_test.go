package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
)

func TestConviction(t *testing.T) {
	tests := []struct {
		name      string
		values    map[contracts.FactorName]float64
		narrative *contracts.Narrative
		want      float64
	}{
		{
			name:   "everything missing is neutral",
			values: map[contracts.FactorName]float64{},
			want:   50,
		},
		{
			name: "full inputs",
			values: map[contracts.FactorName]float64{
				contracts.FactorQuantRisk:   80,
				contracts.FactorFundamental: 60,
				contracts.FactorSentiment:   0.5, // → 75
				contracts.FactorDeepValue:   40,
			},
			narrative: &contracts.Narrative{Score: 70},
			// 0.35*80 + 0.25*70 + 0.20*60 + 0.10*75 + 0.10*40
			want: 69,
		},
		{
			name: "components clipped",
			values: map[contracts.FactorName]float64{
				contracts.FactorQuantRisk:   150,
				contracts.FactorFundamental: -20,
				contracts.FactorSentiment:   3,
				contracts.FactorDeepValue:   100,
			},
			narrative: &contracts.Narrative{Score: 100},
			want:      80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("X", contracts.StrategyLong, 1, 0, tt.values)
			c.Narrative = tt.narrative
			assert.InDelta(t, tt.want, Conviction(&c), 1e-9)
		})
	}
}

func TestApplyConviction(t *testing.T) {
	set := sampleSet()
	ApplyConviction(set)

	for _, r := range set.Results() {
		for _, c := range r.Candidates {
			require.NotNil(t, c.ConvictionScore)
			assert.GreaterOrEqual(t, *c.ConvictionScore, 0.0)
			assert.LessOrEqual(t, *c.ConvictionScore, 100.0)
		}
	}
	// conviction never reorders picks
	assert.Equal(t, []string{"S1", "S2", "S3"}, set.Short.IDs())
}
