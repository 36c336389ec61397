package domain

import (
	"strings"
)

// RiskLevel is the categorical band derived from the total score.
type RiskLevel string

const (
	LevelKritik RiskLevel = "Kritik"
	LevelYuksek RiskLevel = "Yüksek"
	LevelOrta   RiskLevel = "Orta"
	LevelDusuk  RiskLevel = "Düşük"
)

// Level band thresholds, inclusive of the lower bound.
const (
	ThresholdKritik = 80
	ThresholdYuksek = 50
	ThresholdOrta   = 25
)

// LevelForScore maps a total score to its risk level band.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= ThresholdKritik:
		return LevelKritik
	case score >= ThresholdYuksek:
		return LevelYuksek
	case score >= ThresholdOrta:
		return LevelOrta
	default:
		return LevelDusuk
	}
}

// ReasonCode identifies a scoring reason independent of display text.
type ReasonCode string

const (
	ReasonBlacklistPerson  ReasonCode = "blacklist_person"
	ReasonBlacklistPremise ReasonCode = "blacklist_premise"
	ReasonNoSeasonalDiff   ReasonCode = "no_seasonal_diff"
	ReasonRule120Winter    ReasonCode = "rule120_winter"
	ReasonFlatline         ReasonCode = "flatline"
	ReasonSuddenDrop       ReasonCode = "sudden_drop"
	ReasonHotZone          ReasonCode = "hot_zone"
	ReasonGeoProximity     ReasonCode = "geo_proximity"
	ReasonSemester         ReasonCode = "semester"
	ReasonCustomRule       ReasonCode = "custom_rule"
)

var reasonText = map[ReasonCode]string{
	ReasonBlacklistPerson:  "RİSKLİ ABONE (Kara Liste)",
	ReasonBlacklistPremise: "UYARI: Tesisatta Geçmiş Müdahale",
	ReasonNoSeasonalDiff:   "Mevsimsel Fark Yok (Şüpheli Müdahale)",
	ReasonRule120Winter:    "120 Kuralı (Kışın Aşırı Düşük)",
	ReasonFlatline:         "Düz Çizgi (Sayaç Müdahalesi)",
	ReasonSuddenDrop:       "Ani Tüketim Düşüşü",
	ReasonHotZone:          "Bölgesel Risk (Sıcak Bölge)",
	ReasonGeoProximity:     "Konum Riski (Riskli Noktaya Yakın)",
	ReasonSemester:         "[Sömestr?]",
}

// Reason is a structured scoring reason. Detail carries parameters for
// codes whose display text is dynamic (custom rules).
type Reason struct {
	Code   ReasonCode `json:"code"`
	Detail string     `json:"detail,omitempty"`
}

// Render returns the human-readable Turkish tag for this reason.
func (r Reason) Render() string {
	if r.Code == ReasonCustomRule {
		return r.Detail
	}
	if txt, ok := reasonText[r.Code]; ok {
		return txt
	}
	return string(r.Code)
}

// Breakdown holds the additive sub-scores per category. The total score is
// always derived from these fields, never set directly.
type Breakdown struct {
	ReferenceMatch     int `json:"referenceMatch"`
	ConsumptionAnomaly int `json:"consumptionAnomaly"`
	TrendInconsistency int `json:"trendInconsistency"`
	GeoRisk            int `json:"geoRisk"`
	CustomRule         int `json:"customRule,omitempty"`
}

// Sum returns the unclamped sum of all categories.
func (b Breakdown) Sum() int {
	return b.ReferenceMatch + b.ConsumptionAnomaly + b.TrendInconsistency + b.GeoRisk + b.CustomRule
}

// InconsistencyRecord is the detailed winter trend state driving the
// inconsistency report view. It is independent of the headline score.
type InconsistencyRecord struct {
	HasWinterDrop     bool     `json:"hasWinterDrop"`
	DropDetails       []string `json:"dropDetails,omitempty"`
	IsSemesterSuspect bool     `json:"isSemesterSuspect"`
	VolatilityScore   int      `json:"volatilityScore"`
}

// StageSet records which analyzer passes have been applied to a RiskScore.
// Analyzers consult it to stay idempotent across repeated on-demand runs.
type StageSet struct {
	Base          bool `json:"base"`
	Tampering     bool `json:"tampering"`
	Rule120       bool `json:"rule120"`
	Inconsistency bool `json:"inconsistency"`
	GeoRisk       bool `json:"geoRisk"`
	Custom        bool `json:"custom"`
}

// RiskScore is the per-subscriber scoring result, created by the base
// scorer and progressively enriched by on-demand analyzer passes.
type RiskScore struct {
	TesisatNo string `json:"tesisatNo"`
	MuhatapNo string `json:"muhatapNo"`

	// DisplayMuhatapNo surfaces the first blacklisted historical account
	// holder when the current one is clean.
	DisplayMuhatapNo string `json:"displayMuhatapNo,omitempty"`

	TotalScore int       `json:"totalScore"`
	Breakdown  Breakdown `json:"breakdown"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasons    []Reason  `json:"reasons,omitempty"`

	IsTamperingSuspect bool `json:"isTamperingSuspect"`
	Is120RuleSuspect   bool `json:"is120RuleSuspect"`

	Inconsistency InconsistencyRecord `json:"inconsistentData"`

	Stages StageSet `json:"stages"`
}

// Recompute derives the total score from the breakdown, clamps it to
// [0, 100] and refreshes the risk level. Returns the updated value.
func (rs RiskScore) Recompute() RiskScore {
	total := rs.Breakdown.Sum()
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	rs.TotalScore = total
	rs.RiskLevel = LevelForScore(total)
	return rs
}

// AddReason appends a reason unless an identical one is already present.
func (rs RiskScore) AddReason(code ReasonCode, detail string) RiskScore {
	for _, r := range rs.Reasons {
		if r.Code == code && r.Detail == detail {
			return rs
		}
	}
	rs.Reasons = append(append([]Reason(nil), rs.Reasons...), Reason{Code: code, Detail: detail})
	return rs
}

// HasReason reports whether a reason with the given code was recorded.
func (rs RiskScore) HasReason(code ReasonCode) bool {
	for _, r := range rs.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

// ReasonSummary renders the comma-joined display string; "Normal" when no
// reason applied. Rendering happens only at this presentation boundary so
// tests can assert on structured codes.
func (rs RiskScore) ReasonSummary() string {
	if len(rs.Reasons) == 0 {
		return "Normal"
	}
	parts := make([]string, len(rs.Reasons))
	for i, r := range rs.Reasons {
		parts[i] = r.Render()
	}
	return strings.Join(parts, ", ")
}
