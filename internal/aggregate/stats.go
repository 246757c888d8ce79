package aggregate

import (
	"math"
	"sort"
)

// Round2 rounds to two decimals, the display precision for every rate.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SafeRate returns numerator/denominator*100 rounded to two decimals, and 0
// when the denominator is zero. Rates must never be NaN.
func SafeRate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return Round2(float64(numerator) / float64(denominator) * 100)
}

// NearestRankPercentile computes the pth percentile of values using the
// nearest-rank method: rank = ceil(p/100*n), clamped into [1,n]. The input
// is not mutated.
func NearestRankPercentile(values []int, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return float64(sorted[rank-1])
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
