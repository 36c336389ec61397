package scoring

import (
	"fmt"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

// Winter trend thresholds.
const (
	trendMinConsumption  = 40
	trendDropFactor      = 0.85 // 15% month-to-month drop
	trendSemesterFactor  = 0.80 // steeper 20% drop into February
	trendVolatilityFlips = 2
)

// AnalyzeWinterTrend derives the detailed month-to-month winter trend
// record for the inconsistency report view. It distinguishes the ambiguous
// "semester dip" (a lone steep January→February drop, plausibly a school or
// business recess) from a genuine anomaly: a second drop on an already
// anomalous trend is treated as definitely suspicious.
func AnalyzeWinterTrend(m domain.MonthlyConsumption) domain.InconsistencyRecord {
	var rec domain.InconsistencyRecord

	if m.Nov > trendMinConsumption && m.Dec < m.Nov*trendDropFactor {
		rec.HasWinterDrop = true
		rec.DropDetails = append(rec.DropDetails, dropDetail("Kasım", m.Nov, "Aralık", m.Dec))
	}

	if m.Dec > trendMinConsumption && m.Jan < m.Dec*trendDropFactor {
		rec.HasWinterDrop = true
		rec.DropDetails = append(rec.DropDetails, dropDetail("Aralık", m.Dec, "Ocak", m.Jan))
	}

	if m.Jan > trendMinConsumption && m.Feb < m.Jan*trendSemesterFactor {
		if rec.HasWinterDrop {
			rec.DropDetails = append(rec.DropDetails, dropDetail("Ocak", m.Jan, "Şubat", m.Feb))
		} else {
			rec.IsSemesterSuspect = true
			rec.DropDetails = append(rec.DropDetails, dropDetail("Ocak", m.Jan, "Şubat", m.Feb)+" [Sömestr?]")
		}
	}

	// Zigzag: alternating direction across Nov→Dec→Jan→Feb with real winter
	// volume is a meter being toggled, not weather.
	if directionChanges(m.Nov, m.Dec, m.Jan, m.Feb) >= trendVolatilityFlips &&
		stats.WinterAvg(m) > trendMinConsumption {
		rec.VolatilityScore = 1
		rec.HasWinterDrop = true
		rec.DropDetails = append(rec.DropDetails, "Kış Boyunca Aşırı Dalgalanma")
	}

	return rec
}

// Inconsistency is the on-demand analyzer pass backing the inconsistency
// report tab. It re-derives the winter trend record from the subscriber's
// consumption; the headline score is untouched.
func Inconsistency(rs domain.RiskScore, sub *domain.Subscriber) domain.RiskScore {
	rs.Inconsistency = AnalyzeWinterTrend(sub.Consumption)
	rs.Stages.Inconsistency = true
	return rs
}

func dropDetail(fromName string, fromVal float64, toName string, toVal float64) string {
	return fmt.Sprintf("%s(%.0f) -> %s(%.0f)", fromName, fromVal, toName, toVal)
}

// directionChanges counts sign flips between consecutive non-flat deltas
// across the four winter months.
func directionChanges(values ...float64) int {
	changes := 0
	prevSign := 0
	for i := 1; i < len(values); i++ {
		sign := 0
		switch {
		case values[i] > values[i-1]:
			sign = 1
		case values[i] < values[i-1]:
			sign = -1
		}
		if sign != 0 && prevSign != 0 && sign != prevSign {
			changes++
		}
		if sign != 0 {
			prevSign = sign
		}
	}
	return changes
}
