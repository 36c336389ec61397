package hdd

import (
	"github.com/open-utility/kestrel/internal/domain"
)

// districtRegions holds coarse bounding boxes for the districts the
// regional report covers. Boxes overlap at the edges; the weather analyzer
// takes the first containing region, which is acceptable at report
// granularity.
var districtRegions = map[string][]domain.DistrictRegion{
	"ankara": {
		{City: "Ankara", District: "Çankaya", MinLat: 39.82, MaxLat: 39.95, MinLng: 32.78, MaxLng: 32.93},
		{City: "Ankara", District: "Keçiören", MinLat: 39.96, MaxLat: 40.08, MinLng: 32.80, MaxLng: 32.92},
		{City: "Ankara", District: "Yenimahalle", MinLat: 39.93, MaxLat: 40.02, MinLng: 32.62, MaxLng: 32.80},
		{City: "Ankara", District: "Mamak", MinLat: 39.88, MaxLat: 39.97, MinLng: 32.93, MaxLng: 33.08},
	},
	"istanbul": {
		{City: "İstanbul", District: "Kadıköy", MinLat: 40.96, MaxLat: 41.00, MinLng: 29.01, MaxLng: 29.10},
		{City: "İstanbul", District: "Üsküdar", MinLat: 41.00, MaxLat: 41.05, MinLng: 29.00, MaxLng: 29.09},
		{City: "İstanbul", District: "Fatih", MinLat: 41.00, MaxLat: 41.04, MinLng: 28.92, MaxLng: 28.98},
		{City: "İstanbul", District: "Bağcılar", MinLat: 41.02, MaxLat: 41.07, MinLng: 28.82, MaxLng: 28.88},
	},
	"izmir": {
		{City: "İzmir", District: "Konak", MinLat: 38.39, MaxLat: 38.44, MinLng: 27.10, MaxLng: 27.16},
		{City: "İzmir", District: "Bornova", MinLat: 38.44, MaxLat: 38.50, MinLng: 27.18, MaxLng: 27.26},
	},
}

// DistrictRegions returns the known district bounding boxes for a city;
// nil when the city has no geographic coverage, in which case district
// resolution falls back to text matching.
func DistrictRegions(city string) []domain.DistrictRegion {
	return districtRegions[domain.FoldTurkish(city)]
}
