// Package stats provides the pure numeric helpers used by the scoring
// analyzers: seasonal averages, population standard deviation and median.
package stats

import (
	"math"
	"sort"

	"github.com/open-utility/kestrel/internal/domain"
)

// WinterAvg returns the mean of December, January and February. Absent
// months are zero in the input and are NOT excluded, which understates the
// average for partial-year data; callers accept that approximation (see
// the presence markers on Subscriber for the distinction).
func WinterAvg(m domain.MonthlyConsumption) float64 {
	return (m.Dec + m.Jan + m.Feb) / 3
}

// SummerAvg returns the mean of June, July and August.
func SummerAvg(m domain.MonthlyConsumption) float64 {
	return (m.Jun + m.Jul + m.Aug) / 3
}

// HeatingRatio compares winter to summer consumption. The epsilon keeps
// the ratio finite for subscribers with zero summer usage.
func HeatingRatio(m domain.MonthlyConsumption) float64 {
	return WinterAvg(m) / (SummerAvg(m) + 0.1)
}

// StdDev returns the population standard deviation (divide by N, not N-1).
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Median returns the sorted-middle value, or the average of the two middle
// values for even-length input. Returns 0 for empty input.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
