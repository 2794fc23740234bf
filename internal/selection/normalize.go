package selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/trifund/internal/strategyconfig"
)

// Normalize maps raw factor values onto [0, 1] against the given pool.
//
//   - percentile: average-rank percentile, (less + (equal+1)/2) / n
//   - zscore: (v-μ)/σ clipped to ±clip, then rescaled
//
// Tied values share the mean of the ranks they span. A degenerate pool
// (single value, zero variance) normalizes to the midpoint for zscore and to
// (n+1)/2n for percentile.
func Normalize(method string, clip float64, values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	switch method {
	case strategyconfig.NormZScore:
		mean, std := stat.MeanStdDev(values, nil)
		for i, v := range values {
			if std == 0 || math.IsNaN(std) {
				out[i] = 0.5
				continue
			}
			z := (v - mean) / std
			z = math.Max(-clip, math.Min(clip, z))
			out[i] = (z + clip) / (2 * clip)
		}

	default:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		n := float64(len(sorted))
		for i, v := range values {
			less := sort.SearchFloat64s(sorted, v)
			equal := sort.Search(len(sorted), func(j int) bool { return sorted[j] > v }) - less
			out[i] = (float64(less) + float64(equal+1)/2) / n
		}
	}

	return out
}
