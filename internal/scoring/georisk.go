package scoring

import (
	"math"

	"github.com/open-utility/kestrel/internal/domain"
)

// Geo risk constants. The proximity threshold is ~10 meters: effectively
// identical coordinates, i.e. the same building or meter cluster, not a
// neighborhood radius.
const (
	proximityThresholdMeters = 10.0
	highRiskScoreFloor       = 80

	pointsNearBlacklistSite = 15
	pointsNearHighScorer    = 10

	earthRadiusMeters = 6371000.0
)

// HighRiskPoint is a location the geo risk analyzer scores proximity
// against: either a confirmed blacklist site or a subscriber already in the
// critical band.
type HighRiskPoint struct {
	TesisatNo     string
	Location      domain.Location
	FromBlacklist bool
}

// CollectHighRiskPoints builds the proximity target set from (a) current
// results scoring at or above the critical floor with a usable location and
// (b) all known blacklist reference locations.
func CollectHighRiskPoints(scores []domain.RiskScore, locate func(tesisatNo string) domain.Location, refs []domain.ReferenceLocation) []HighRiskPoint {
	var points []HighRiskPoint

	for _, rs := range scores {
		if rs.TotalScore < highRiskScoreFloor {
			continue
		}
		loc := locate(rs.TesisatNo)
		if loc.IsZero() {
			continue
		}
		points = append(points, HighRiskPoint{TesisatNo: rs.TesisatNo, Location: loc})
	}

	for _, ref := range refs {
		if ref.Location.IsZero() {
			continue
		}
		points = append(points, HighRiskPoint{Location: ref.Location, FromBlacklist: true})
	}

	return points
}

// GeoRisk scores proximity to known high-risk points for subscribers
// passing the Rule120 filter. Rule120 classification must have been applied
// to the candidate first; when it has not, GeoRisk applies it internally so
// the ordering dependency cannot produce stale filters.
func GeoRisk(rs domain.RiskScore, sub *domain.Subscriber, points []HighRiskPoint) domain.RiskScore {
	if rs.Stages.GeoRisk {
		return rs
	}
	if !rs.Stages.Rule120 {
		rs = Rule120(rs, sub)
	}
	rs.Stages.GeoRisk = true

	if !rs.Is120RuleSuspect || sub.Location.IsZero() {
		return rs
	}

	// A blacklist site hit outranks a high-scoring neighbor; only one
	// proximity bonus applies.
	bestPoints := 0
	for _, p := range points {
		if p.TesisatNo != "" && p.TesisatNo == rs.TesisatNo {
			continue
		}
		if haversineMeters(sub.Location, p.Location) > proximityThresholdMeters {
			continue
		}
		if p.FromBlacklist {
			bestPoints = pointsNearBlacklistSite
			break
		}
		if bestPoints < pointsNearHighScorer {
			bestPoints = pointsNearHighScorer
		}
	}

	if bestPoints > 0 {
		rs.Breakdown.GeoRisk += bestPoints
		rs = rs.AddReason(domain.ReasonGeoProximity, "")
		rs = rs.Recompute()
	}

	return rs
}

func haversineMeters(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
