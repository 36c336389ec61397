// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"strings"
)

// SubscriberType classifies a subscriber by usage category.
type SubscriberType string

const (
	TypeResidential SubscriberType = "residential"
	TypeCommercial  SubscriberType = "commercial"
	TypeIndustrial  SubscriberType = "industrial"
)

// ClassifySubscriberType derives the subscriber type from the free-text
// "abone tipi" field found in utility exports. The substring heuristic is
// deliberate business logic: upstream files carry inconsistent labels
// ("Ticarethane", "İşyeri", "SANAYİ ABONESİ", ...) and only three
// categories matter for scoring.
func ClassifySubscriberType(raw string) SubscriberType {
	s := FoldTurkish(raw)

	switch {
	case strings.Contains(s, "sanayi"),
		strings.Contains(s, "endustri"),
		strings.Contains(s, "endüstri"),
		strings.Contains(s, "fabrika"),
		strings.Contains(s, "industrial"):
		return TypeIndustrial
	case strings.Contains(s, "ticar"),
		strings.Contains(s, "isyeri"),
		strings.Contains(s, "is yeri"),
		strings.Contains(s, "işyeri"),
		strings.Contains(s, "commercial"):
		return TypeCommercial
	default:
		return TypeResidential
	}
}

// FoldTurkish lowercases free text for matching, folding the Turkish
// dotted/dotless i first: ToLower("İ") yields "i" plus a combining dot
// that would defeat plain substring comparison.
func FoldTurkish(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "İ", "i")
	s = strings.ReplaceAll(s, "I", "ı")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "ı", "i")
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the location was never set.
func (l Location) IsZero() bool {
	return l.Lat == 0 && l.Lng == 0
}

// MonthlyConsumption holds one calendar year of metered consumption in m³.
// A month with no data row at all is zero here; Subscriber.MonthsPresent
// distinguishes "zero consumption" from "no data".
type MonthlyConsumption struct {
	Jan float64 `json:"jan"`
	Feb float64 `json:"feb"`
	Mar float64 `json:"mar"`
	Apr float64 `json:"apr"`
	May float64 `json:"may"`
	Jun float64 `json:"jun"`
	Jul float64 `json:"jul"`
	Aug float64 `json:"aug"`
	Sep float64 `json:"sep"`
	Oct float64 `json:"oct"`
	Nov float64 `json:"nov"`
	Dec float64 `json:"dec"`
}

// Values returns the twelve months in calendar order.
func (m MonthlyConsumption) Values() [12]float64 {
	return [12]float64{m.Jan, m.Feb, m.Mar, m.Apr, m.May, m.Jun, m.Jul, m.Aug, m.Sep, m.Oct, m.Nov, m.Dec}
}

// AnnualTotal returns the sum of all twelve months.
func (m MonthlyConsumption) AnnualTotal() float64 {
	var total float64
	for _, v := range m.Values() {
		total += v
	}
	return total
}

// Subscriber is an immutable input record for one premise, loaded once per
// analysis session by the ingestion collaborator.
type Subscriber struct {
	// Identity. TesisatNo is the stable premise/meter id; MuhatapNo is the
	// current account holder. RelatedMuhatapNos lists every account holder
	// ever seen on this premise, in insertion order, deduplicated by
	// case-insensitive comparison.
	TesisatNo         string   `json:"tesisatNo"`
	MuhatapNo         string   `json:"muhatapNo"`
	RelatedMuhatapNos []string `json:"relatedMuhatapNos,omitempty"`

	// Address and geography.
	Address  string   `json:"address,omitempty"`
	City     string   `json:"city,omitempty"`
	District string   `json:"district,omitempty"`
	Location Location `json:"location"`

	// Classification derived from the free-text type field.
	AboneTipi SubscriberType `json:"aboneTipi"`

	Consumption MonthlyConsumption `json:"consumption"`

	// Presence markers, calendar order Jan..Dec. MonthsPresent marks months
	// that had any data row; MonthsWithMuhatap marks months whose row carried
	// a non-empty account holder.
	MonthsPresent     [12]bool `json:"monthsPresent"`
	MonthsWithMuhatap [12]bool `json:"monthsWithMuhatap"`
}

// AddRelatedMuhatap appends an account-holder id to the history unless an
// equal id (ignoring case and surrounding space) is already recorded.
func (s *Subscriber) AddRelatedMuhatap(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	for _, existing := range s.RelatedMuhatapNos {
		if strings.EqualFold(existing, id) {
			return
		}
	}
	s.RelatedMuhatapNos = append(s.RelatedMuhatapNos, id)
}

// ReferenceLocation is a blacklist entry with known coordinates, used by the
// geo risk analyzer as a high-risk point.
type ReferenceLocation struct {
	TesisatNo string   `json:"tesisatNo,omitempty"`
	Label     string   `json:"label,omitempty"`
	Location  Location `json:"location"`
}
