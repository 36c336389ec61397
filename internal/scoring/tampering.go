package scoring

import (
	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

// Tampering is the on-demand pass backing the bypass-suspicion view. It
// re-derives the flag from current seasonal stats without adding any score:
// the seasonal-flatness points were already booked by the base pass, so a
// re-run only refreshes the boolean.
func Tampering(rs domain.RiskScore, sub *domain.Subscriber) domain.RiskScore {
	m := sub.Consumption
	rs.IsTamperingSuspect = stats.WinterAvg(m) > flatnessWinterMin &&
		stats.HeatingRatio(m) < flatnessRatioMax
	rs.Stages.Tampering = true
	return rs
}
