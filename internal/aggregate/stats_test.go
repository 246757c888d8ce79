package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRate(t *testing.T) {
	tests := []struct {
		name        string
		numerator   int
		denominator int
		want        float64
	}{
		{"zero denominator", 5, 0, 0},
		{"zero numerator", 0, 10, 0},
		{"sixty percent", 6, 10, 60.00},
		{"thirty percent", 3, 10, 30.00},
		{"repeating decimal rounds to 2dp", 6, 9, 66.67},
		{"full", 10, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeRate(tt.numerator, tt.denominator)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestNearestRankPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		p      float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single value", []int{42}, 95, 42},
		{"p95 of ten", []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, 95, 100},
		{"p50 of ten", []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, 50, 50},
		{"p95 of twenty picks rank 19", makeRange(1, 20), 95, 19},
		{"unsorted input", []int{300, 100, 200}, 50, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearestRankPercentile(tt.values, tt.p))
		})
	}
}

func TestNearestRankPercentileDoesNotMutate(t *testing.T) {
	values := []int{3, 1, 2}
	NearestRankPercentile(values, 95)
	assert.Equal(t, []int{3, 1, 2}, values)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(66.666666))
	assert.Equal(t, 66.66, Round2(66.664))
}

func makeRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
