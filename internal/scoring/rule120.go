package scoring

import (
	"github.com/open-utility/kestrel/internal/domain"
)

// Dedicated Rule120 band: below 25 m³ a winter month reads as a vacant
// property (low fraud probability), above 110 as adequate heating. The
// suspicious band is the narrow middle, and all three of Jan/Feb/Mar must
// sit in it. Stricter than the base scorer's two-sided Dec/Jan/Feb check.
const (
	rule120BandLow  = 25
	rule120BandHigh = 110
)

// Rule120 is the on-demand pass backing the dedicated low-winter view. It
// reclassifies Is120RuleSuspect with the strict three-month band,
// overriding the looser preliminary flag set at base-scoring time.
func Rule120(rs domain.RiskScore, sub *domain.Subscriber) domain.RiskScore {
	m := sub.Consumption
	rs.Is120RuleSuspect = inStrictBand(m.Jan) && inStrictBand(m.Feb) && inStrictBand(m.Mar)
	rs.Stages.Rule120 = true
	return rs
}

func inStrictBand(v float64) bool {
	return v >= rule120BandLow && v <= rule120BandHigh
}
