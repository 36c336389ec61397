package domain

import (
	"strings"
	"time"
)

// Blacklist holds the two reference sets of previously-caught offenders.
// Ids are normalized to upper case at construction; the sets are read-only
// afterwards and passed explicitly into every scoring call.
type Blacklist struct {
	muhatapIDs map[string]struct{}
	tesisatIDs map[string]struct{}
}

// NewBlacklist builds a blacklist from raw person and premise id lists.
func NewBlacklist(muhatapIDs, tesisatIDs []string) Blacklist {
	b := Blacklist{
		muhatapIDs: make(map[string]struct{}, len(muhatapIDs)),
		tesisatIDs: make(map[string]struct{}, len(tesisatIDs)),
	}
	for _, id := range muhatapIDs {
		if norm := normalizeID(id); norm != "" {
			b.muhatapIDs[norm] = struct{}{}
		}
	}
	for _, id := range tesisatIDs {
		if norm := normalizeID(id); norm != "" {
			b.tesisatIDs[norm] = struct{}{}
		}
	}
	return b
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// HasMuhatap reports whether the account-holder id is blacklisted.
func (b Blacklist) HasMuhatap(id string) bool {
	_, ok := b.muhatapIDs[normalizeID(id)]
	return ok
}

// HasTesisat reports whether the premise id is blacklisted.
func (b Blacklist) HasTesisat(id string) bool {
	_, ok := b.tesisatIDs[normalizeID(id)]
	return ok
}

// MuhatapCount returns the number of blacklisted account holders.
func (b Blacklist) MuhatapCount() int { return len(b.muhatapIDs) }

// TesisatCount returns the number of blacklisted premises.
func (b Blacklist) TesisatCount() int { return len(b.tesisatIDs) }

// Dataset is the input batch handed over by the ingestion collaborator:
// structured subscriber records plus the two blacklists and known
// high-risk reference locations. Column detection, month-name parsing and
// deduplication all happen upstream.
type Dataset struct {
	Subscribers        []Subscriber        `json:"subscribers"`
	FraudMuhatapIDs    []string            `json:"fraudMuhatapIds,omitempty"`
	FraudTesisatIDs    []string            `json:"fraudTesisatIds,omitempty"`
	ReferenceLocations []ReferenceLocation `json:"referenceLocations,omitempty"`
}

// EngineStats aggregates result counts per risk level. Recomputed whenever
// the RiskScore array changes.
type EngineStats struct {
	Total  int `json:"total"`
	Kritik int `json:"kritik"`
	Yuksek int `json:"yuksek"`
	Orta   int `json:"orta"`
	Dusuk  int `json:"dusuk"`
}

// Count adds one result to the stats.
func (s *EngineStats) Count(level RiskLevel) {
	s.Total++
	switch level {
	case LevelKritik:
		s.Kritik++
	case LevelYuksek:
		s.Yuksek++
	case LevelOrta:
		s.Orta++
	default:
		s.Dusuk++
	}
}

// ExportRecord is the flattened per-subscriber row for spreadsheet export.
// Straight field projection, no logic.
type ExportRecord struct {
	TesisatNo        string         `json:"tesisatNo"`
	MuhatapNo        string         `json:"muhatapNo"`
	DisplayMuhatapNo string         `json:"displayMuhatapNo,omitempty"`
	Address          string         `json:"address,omitempty"`
	City             string         `json:"city,omitempty"`
	District         string         `json:"district,omitempty"`
	AboneTipi        SubscriberType `json:"aboneTipi"`

	TotalScore int       `json:"totalScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasons    string    `json:"reasons"`

	IsTamperingSuspect bool `json:"isTamperingSuspect"`
	Is120RuleSuspect   bool `json:"is120RuleSuspect"`
	HasWinterDrop      bool `json:"hasWinterDrop"`

	WinterAvg float64            `json:"winterAvg"`
	SummerAvg float64            `json:"summerAvg"`
	Monthly   MonthlyConsumption `json:"monthly"`
}

// ReportEntry is one of the top-scoring subscribers in a report payload.
type ReportEntry struct {
	TesisatNo  string    `json:"tesisatNo"`
	TotalScore int       `json:"totalScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasons    string    `json:"reasons"`
}

// ReportPayload is the aggregate summary handed to the external
// natural-language report generator. Opaque to the scoring core.
type ReportPayload struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Stats       EngineStats   `json:"stats"`
	Top         []ReportEntry `json:"top"`
}

// Alert records a subscriber that crossed the critical band during an
// analyzer pass. Consumed by the alert worker.
type Alert struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	TesisatNo  string    `json:"tesisatNo"`
	TotalScore int       `json:"totalScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasons    string    `json:"reasons"`
	CreatedAt  time.Time `json:"createdAt"`
}
