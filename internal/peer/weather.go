package peer

import (
	"strings"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

const (
	// weatherOutlierFactor is looser than the raw building analyzer's 60%,
	// reflecting the added uncertainty of HDD normalization.
	weatherOutlierFactor = 0.7

	// DefaultMinCleanNeighborsWeather is the relaxed clean-neighbor floor
	// used by the regional report.
	DefaultMinCleanNeighborsWeather = 4
)

// AnalyzeWeather runs the climate-adjusted peer comparison for one city.
// Each subscriber's Jan/Feb/Mar consumption is divided by the city's
// heating-degree-day factor for that month before medians are computed, so
// regions with different climates compare on heating demand rather than raw
// volume. District membership is resolved geographically when a bounding
// box matches, with free-text city/district matching as the fallback.
func AnalyzeWeather(subs []domain.Subscriber, city string, hdd domain.HDDFactors, regions []domain.DistrictRegion, minCleanNeighbors int) []domain.WeatherRisk {
	if hdd.Jan <= 0 || hdd.Feb <= 0 || hdd.Mar <= 0 {
		return nil
	}
	if minCleanNeighbors <= 0 {
		minCleanNeighbors = DefaultMinCleanNeighborsWeather
	}

	// Group city members by resolved district.
	groups := make(map[string][]*domain.Subscriber)
	for i := range subs {
		district, ok := resolveDistrict(&subs[i], city, regions)
		if !ok {
			continue
		}
		groups[district] = append(groups[district], &subs[i])
	}

	var risks []domain.WeatherRisk
	for district, members := range groups {
		var cleanAvgs []float64
		for _, m := range members {
			if isCleanNeighbor(m.Consumption) {
				cleanAvgs = append(cleanAvgs, normalizedWinterAvg(m.Consumption, hdd))
			}
		}
		if len(cleanAvgs) < minCleanNeighbors {
			continue
		}

		median := stats.Median(cleanAvgs)
		if median <= 0 {
			continue
		}

		for _, m := range members {
			personal := normalizedWinterAvg(m.Consumption, hdd)
			if personal >= median*weatherOutlierFactor {
				continue
			}
			risks = append(risks, domain.WeatherRisk{
				TesisatNo:           m.TesisatNo,
				MuhatapNo:           m.MuhatapNo,
				City:                city,
				District:            district,
				NormalizedWinterAvg: personal,
				PeerMedian:          median,
				DeviationPercentage: (personal - median) / median * 100,
				NeighborCount:       len(cleanAvgs),
				HDD:                 hdd,
			})
		}
	}

	return risks
}

func normalizedWinterAvg(m domain.MonthlyConsumption, hdd domain.HDDFactors) float64 {
	return (m.Jan/hdd.Jan + m.Feb/hdd.Feb + m.Mar/hdd.Mar) / 3
}

// resolveDistrict determines whether the subscriber belongs to the selected
// city and under which district, preferring geographic containment over the
// free-text fields.
func resolveDistrict(sub *domain.Subscriber, city string, regions []domain.DistrictRegion) (string, bool) {
	if !sub.Location.IsZero() {
		for _, region := range regions {
			if !strings.EqualFold(region.City, city) || !region.HasBounds() {
				continue
			}
			if region.Contains(sub.Location) {
				return region.District, true
			}
		}
	}

	if strings.EqualFold(sub.City, city) {
		district := sub.District
		if district == "" {
			district = "merkez"
		}
		return district, true
	}

	return "", false
}
