package scoring

import (
	"strings"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

// Base scorer thresholds.
const (
	pointsNoSeasonalDiff = 30
	pointsRule120Com     = 35
	pointsRule120Res     = 30
	pointsFlatline       = 25
	pointsSuddenDrop     = 20
	pointsHotZone        = 10

	// anomalyCap bounds the combined seasonal-flatness + generic 120-rule
	// contribution.
	anomalyCap = 40

	flatnessWinterMin  = 30
	flatnessRatioMax   = 4.0
	rule120UpperBound  = 120
	flatlineStdDevMax  = 1
	flatlineWinterMin  = 10
	suddenDropFactor   = 0.4
	suddenDropPrevMin  = 50
	vacantMonthCeiling = 10
)

// hotZoneStreets is the legacy high-risk street list used by the address
// text match. Superseded by the coordinate-based geo risk analyzer in the
// interactive flow but still applied at base-scoring time.
var hotZoneStreets = []string{
	"karanfil sok",
	"menekşe cad",
	"yasemin mah",
	"gülveren",
	"aşağı sanayi",
}

// Base computes the initial RiskScore for a subscriber: reference matching,
// first-pass consumption anomaly and trend checks, the legacy address
// match, the Rule120 view flag, and the detailed inconsistency record.
// Pure with respect to its inputs; running it twice on an unmodified
// subscriber yields an identical result.
func Base(sub *domain.Subscriber, bl domain.Blacklist) domain.RiskScore {
	rs := domain.RiskScore{
		TesisatNo: sub.TesisatNo,
		MuhatapNo: sub.MuhatapNo,
	}

	rs = MatchReferences(rs, sub, bl)

	m := sub.Consumption
	winterAvg := stats.WinterAvg(m)
	heatingRatio := stats.HeatingRatio(m)

	// Seasonal-flatness: real winter usage with no heating signature means
	// the meter likely understates cold-month consumption.
	anomaly := 0
	if winterAvg > flatnessWinterMin && heatingRatio < flatnessRatioMax {
		anomaly += pointsNoSeasonalDiff
		rs = rs.AddReason(domain.ReasonNoSeasonalDiff, "")
		rs.IsTamperingSuspect = true
	}

	// Generic 120-rule: all three core winter months non-zero but below the
	// adequate-heating bound. Commercial premises burn more, so the same
	// band is a stronger signal there.
	if inOpenBand(m.Dec) && inOpenBand(m.Jan) && inOpenBand(m.Feb) {
		if sub.AboneTipi == domain.TypeCommercial {
			anomaly += pointsRule120Com
		} else {
			anomaly += pointsRule120Res
		}
		rs = rs.AddReason(domain.ReasonRule120Winter, "")
	}
	if anomaly > anomalyCap {
		anomaly = anomalyCap
	}
	rs.Breakdown.ConsumptionAnomaly = anomaly

	// Trend: flatline takes priority over sudden drop; only one applies.
	winterStdDev := stats.StdDev([]float64{m.Dec, m.Jan, m.Feb})
	switch {
	case winterStdDev < flatlineStdDevMax && winterAvg > flatlineWinterMin:
		rs.Breakdown.TrendInconsistency = pointsFlatline
		rs = rs.AddReason(domain.ReasonFlatline, "")
	case (m.Nov > suddenDropPrevMin && m.Dec < m.Nov*suddenDropFactor) ||
		(m.Dec > suddenDropPrevMin && m.Jan < m.Dec*suddenDropFactor):
		rs.Breakdown.TrendInconsistency = pointsSuddenDrop
		rs = rs.AddReason(domain.ReasonSuddenDrop, "")
	}

	// Legacy geo text match against the high-risk street list.
	if addressInHotZone(sub.Address) {
		rs.Breakdown.GeoRisk += pointsHotZone
		rs = rs.AddReason(domain.ReasonHotZone, "")
	}

	// Flag-only preliminary 120-rule for the dedicated view: low Jan/Feb,
	// but both-below-10 means vacant, not suspicious.
	if m.Jan < rule120UpperBound && m.Feb < rule120UpperBound &&
		!(m.Jan < vacantMonthCeiling && m.Feb < vacantMonthCeiling) {
		rs.Is120RuleSuspect = true
	}

	rs.Inconsistency = AnalyzeWinterTrend(m)

	rs.Stages.Base = true
	return rs.Recompute()
}

// inOpenBand reports 0 < v < 120, the base scorer's loose winter band.
func inOpenBand(v float64) bool {
	return v > 0 && v < rule120UpperBound
}

func addressInHotZone(address string) bool {
	if address == "" {
		return false
	}
	lower := strings.ToLower(address)
	for _, street := range hotZoneStreets {
		if strings.Contains(lower, street) {
			return true
		}
	}
	return false
}
