// Package peer implements the peer-group comparison analyzers: same-building
// median comparison and its weather-normalized regional variant. Both are
// pure statistical outlier detectors — the peer group's own consumption
// defines ground truth, independent of blacklists — and produce their own
// result types rather than enriching RiskScore.
package peer

import (
	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

const (
	// cleanNeighborFloor: a neighbor counts as clean (clearly occupied,
	// non-anomalous) only when every one of Jan/Feb/Mar exceeds this.
	cleanNeighborFloor = 25.0

	// buildingOutlierFactor flags subscribers below 60% of the building
	// median.
	buildingOutlierFactor = 0.6

	// DefaultMinCleanNeighbors is the clean-neighbor count required before
	// a building median is statistically meaningful.
	DefaultMinCleanNeighbors = 8
)

// winterAvgJFM is the Jan/Feb/Mar average used by the peer analyzers, a
// different season window than the scoring core's Dec/Jan/Feb.
func winterAvgJFM(m domain.MonthlyConsumption) float64 {
	return (m.Jan + m.Feb + m.Mar) / 3
}

func isCleanNeighbor(m domain.MonthlyConsumption) bool {
	return m.Jan > cleanNeighborFloor && m.Feb > cleanNeighborFloor && m.Mar > cleanNeighborFloor
}

// AnalyzeBuildings groups subscribers by exact coordinate (same lat/lng
// means same physical building), derives a winter median from clean
// neighbors and flags everyone in the group consuming under 60% of it.
// Groups with fewer than minCleanNeighbors clean members are skipped:
// small-group medians are statistically meaningless.
func AnalyzeBuildings(subs []domain.Subscriber, minCleanNeighbors int) []domain.BuildingRisk {
	if minCleanNeighbors <= 0 {
		minCleanNeighbors = DefaultMinCleanNeighbors
	}

	groups := make(map[domain.Location][]*domain.Subscriber)
	for i := range subs {
		if subs[i].Location.IsZero() {
			continue
		}
		groups[subs[i].Location] = append(groups[subs[i].Location], &subs[i])
	}

	var risks []domain.BuildingRisk
	for loc, members := range groups {
		var cleanAvgs []float64
		for _, m := range members {
			if isCleanNeighbor(m.Consumption) {
				cleanAvgs = append(cleanAvgs, winterAvgJFM(m.Consumption))
			}
		}
		if len(cleanAvgs) < minCleanNeighbors {
			continue
		}

		median := stats.Median(cleanAvgs)

		// Every member is compared, not just the anomalous-looking ones:
		// a "clean" neighbor can still sit far below the median.
		for _, m := range members {
			personal := winterAvgJFM(m.Consumption)
			if personal >= median*buildingOutlierFactor {
				continue
			}
			risks = append(risks, domain.BuildingRisk{
				TesisatNo:            m.TesisatNo,
				MuhatapNo:            m.MuhatapNo,
				Address:              m.Address,
				Location:             loc,
				PersonalWinterAvg:    personal,
				BuildingWinterMedian: median,
				DeviationPercentage:  (personal - median) / median * 100,
				NeighborCount:        len(cleanAvgs),
				MonthlyBreakdown: domain.WinterMonths{
					Jan: m.Consumption.Jan,
					Feb: m.Consumption.Feb,
					Mar: m.Consumption.Mar,
				},
			})
		}
	}

	return risks
}
