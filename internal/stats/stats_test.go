package stats

import (
	"math"
	"testing"

	"github.com/open-utility/kestrel/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWinterAvg(t *testing.T) {
	m := domain.MonthlyConsumption{Dec: 90, Jan: 120, Feb: 60}
	if got := WinterAvg(m); !almostEqual(got, 90) {
		t.Errorf("WinterAvg = %v, want 90", got)
	}

	// Absent months count as zero; no presence guard.
	partial := domain.MonthlyConsumption{Jan: 120}
	if got := WinterAvg(partial); !almostEqual(got, 40) {
		t.Errorf("WinterAvg with missing months = %v, want 40", got)
	}
}

func TestSummerAvg(t *testing.T) {
	m := domain.MonthlyConsumption{Jun: 10, Jul: 20, Aug: 30}
	if got := SummerAvg(m); !almostEqual(got, 20) {
		t.Errorf("SummerAvg = %v, want 20", got)
	}
}

func TestHeatingRatioZeroSummer(t *testing.T) {
	m := domain.MonthlyConsumption{Dec: 100, Jan: 100, Feb: 100}
	got := HeatingRatio(m)
	want := 100.0 / 0.1
	if !almostEqual(got, want) {
		t.Errorf("HeatingRatio = %v, want %v", got, want)
	}
}

func TestStdDevPopulation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"constant", []float64{5, 5, 5}, 0},
		// Population stddev of {2, 4}: mean 3, variance ((1+1)/2)=1.
		{"two values", []float64{2, 4}, 1},
		// {1, 2, 3, 4}: mean 2.5, variance 1.25.
		{"four values", []float64{1, 2, 3, 4}, math.Sqrt(1.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StdDev(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("StdDev(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{7}, 7},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("Median(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("Median mutated its input: %v", values)
	}
}
