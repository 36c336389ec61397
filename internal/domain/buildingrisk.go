package domain

// BuildingRisk flags a subscriber whose winter consumption is far below the
// median of clean neighbors sharing the same coordinates. Computed fresh on
// every analyzer run; never merged into RiskScore.
type BuildingRisk struct {
	TesisatNo string   `json:"tesisatNo"`
	MuhatapNo string   `json:"muhatapNo"`
	Address   string   `json:"address,omitempty"`
	Location  Location `json:"location"`

	PersonalWinterAvg    float64 `json:"personalWinterAvg"`
	BuildingWinterMedian float64 `json:"buildingWinterMedian"`

	// DeviationPercentage is (personal - median) / median * 100; negative
	// for under-consumers.
	DeviationPercentage float64 `json:"deviationPercentage"`

	// NeighborCount is the number of clean neighbors the median came from.
	NeighborCount int `json:"neighborCount"`

	MonthlyBreakdown WinterMonths `json:"monthlyBreakdown"`
}

// WinterMonths is the Jan/Feb/Mar slice of a consumption year used by the
// peer-comparison analyzers.
type WinterMonths struct {
	Jan float64 `json:"jan"`
	Feb float64 `json:"feb"`
	Mar float64 `json:"mar"`
}

// HDDFactors are per-month heating-degree-day values for a city, used to
// normalize consumption for climate before peer comparison.
type HDDFactors struct {
	Jan float64 `json:"jan"`
	Feb float64 `json:"feb"`
	Mar float64 `json:"mar"`
}

// WeatherRisk is the climate-adjusted variant of BuildingRisk produced by
// the weather-normalized analyzer for the regional report view.
type WeatherRisk struct {
	TesisatNo string `json:"tesisatNo"`
	MuhatapNo string `json:"muhatapNo"`
	City      string `json:"city"`
	District  string `json:"district,omitempty"`

	NormalizedWinterAvg float64 `json:"normalizedWinterAvg"`
	PeerMedian          float64 `json:"peerMedian"`
	DeviationPercentage float64 `json:"deviationPercentage"`
	NeighborCount       int     `json:"neighborCount"`

	HDD HDDFactors `json:"hdd"`
}

// DistrictRegion describes a district by name and optional bounding box.
// Membership prefers geographic containment when bounds are present and the
// subscriber has coordinates; otherwise it falls back to text matching.
type DistrictRegion struct {
	City     string `json:"city"`
	District string `json:"district"`

	MinLat float64 `json:"minLat,omitempty"`
	MaxLat float64 `json:"maxLat,omitempty"`
	MinLng float64 `json:"minLng,omitempty"`
	MaxLng float64 `json:"maxLng,omitempty"`
}

// HasBounds reports whether the region carries a usable bounding box.
func (d DistrictRegion) HasBounds() bool {
	return d.MinLat != 0 || d.MaxLat != 0 || d.MinLng != 0 || d.MaxLng != 0
}

// Contains reports whether the location falls inside the bounding box.
func (d DistrictRegion) Contains(loc Location) bool {
	return loc.Lat >= d.MinLat && loc.Lat <= d.MaxLat &&
		loc.Lng >= d.MinLng && loc.Lng <= d.MaxLng
}
