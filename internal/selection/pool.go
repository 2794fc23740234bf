package selection

import (
	"sort"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
)

// Entry is one pooled instrument with its factor bundle
type Entry struct {
	Instrument contracts.Instrument
	Factors    *contracts.FactorBundle
}

// ID shortcut
func (e Entry) ID() string {
	return e.Instrument.ID
}

// BuildPool attaches bundles and removes every instrument that lacks one of
// the required factors. Removed instruments are reported, never scored.
func BuildPool(
	pool []contracts.Instrument,
	factors map[string]*contracts.FactorBundle,
	required []contracts.FactorName,
) ([]Entry, []contracts.Dropped) {
	entries := make([]Entry, 0, len(pool))
	var dropped []contracts.Dropped

	for _, inst := range pool {
		b := factors[inst.ID]
		if b == nil {
			dropped = append(dropped, contracts.Dropped{
				InstrumentID: inst.ID,
				Kind:         contracts.KindMissingFactorData,
				Missing:      required,
			})
			continue
		}
		if missing := b.Missing(required...); len(missing) > 0 {
			dropped = append(dropped, contracts.Dropped{
				InstrumentID: inst.ID,
				Kind:         contracts.KindMissingFactorData,
				Missing:      missing,
			})
			continue
		}
		entries = append(entries, Entry{Instrument: inst, Factors: b})
	}

	return entries, dropped
}

// ranked is an Entry with its descending sort keys
type ranked struct {
	Entry
	keys []float64
}

// sortRanked orders by keys descending, then instrument ID ascending
func sortRanked(items []ranked) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].keys, items[j].keys
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return items[i].ID() < items[j].ID()
	})
}

func uniqueFactors(lists ...[]contracts.FactorName) []contracts.FactorName {
	seen := make(map[contracts.FactorName]bool)
	var out []contracts.FactorName
	for _, l := range lists {
		for _, f := range l {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// RequiredFactors lists, per strategy, the factors an instrument must carry
// to enter that strategy's pool
func RequiredFactors(cfg *strategyconfig.Config) map[contracts.Strategy][]contracts.FactorName {
	out := make(map[contracts.Strategy][]contracts.FactorName, 3)
	for _, s := range []contracts.Strategy{contracts.StrategyShort, contracts.StrategyMedium} {
		var names []contracts.FactorName
		for _, w := range cfg.WeightsFor(s) {
			names = append(names, w.Factor)
		}
		out[s] = uniqueFactors(names, []contracts.FactorName{contracts.FactorPrice})
	}
	out[contracts.StrategyLong] = append([]contracts.FactorName(nil), longFactors...)
	return out
}
