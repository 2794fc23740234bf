package selection

import (
	"fmt"
	"math/rand"

	"github.com/wonny/trifund/internal/contracts"
)

type factors = map[contracts.FactorName]float64

func inst(id string) contracts.Instrument {
	return contracts.Instrument{ID: id, Index: contracts.IndexSP500}
}

func entry(id string, values factors) Entry {
	return Entry{
		Instrument: inst(id),
		Factors:    &contracts.FactorBundle{InstrumentID: id, Values: values},
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID()
	}
	return out
}

// completeFactors returns a bundle satisfying every strategy's required set
func completeFactors(rng *rand.Rand) factors {
	return factors{
		contracts.FactorPrice:                  10 + rng.Float64()*190,
		contracts.FactorRelativeVolume:         rng.Float64() * 4,
		contracts.FactorMomentum1M:             rng.Float64()*0.4 - 0.2,
		contracts.FactorShortInterest:          rng.Float64() * 0.3,
		contracts.FactorATR14:                  rng.Float64() * 10,
		contracts.FactorHurst:                  0.4 + rng.Float64()*0.25,
		contracts.FactorSMA200:                 10 + rng.Float64()*190,
		contracts.FactorInstitutionalOwnership: rng.Float64(),
		contracts.FactorRelativeStrength:       rng.Float64()*2 - 1,
		contracts.FactorQuantRisk:              rng.Float64() * 100,
		contracts.FactorPiotroski:              float64(rng.Intn(10)),
		contracts.FactorAltmanZ:                rng.Float64() * 5,
		contracts.FactorEPS:                    0.5 + rng.Float64()*10,
		contracts.FactorGrowthRate:             rng.Float64() * 15,
		contracts.FactorDeepValue:              rng.Float64() * 100,
		contracts.FactorFundamental:            rng.Float64() * 100,
		contracts.FactorSentiment:              rng.Float64()*2 - 1,
	}
}

// syntheticUniverse builds n instruments with complete random bundles
func syntheticUniverse(seed int64, n int) ([]contracts.Instrument, map[string]*contracts.FactorBundle) {
	rng := rand.New(rand.NewSource(seed))
	universe := make([]contracts.Instrument, n)
	bundles := make(map[string]*contracts.FactorBundle, n)

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("T%03d", i)
		universe[i] = inst(id)
		bundles[id] = &contracts.FactorBundle{InstrumentID: id, Values: completeFactors(rng)}
	}
	return universe, bundles
}
