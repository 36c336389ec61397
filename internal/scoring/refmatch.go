// Package scoring implements the Kestrel risk scoring core: the reference
// matcher, the base scorer run once per subscriber at load time, and the
// on-demand analyzers that enrich an existing RiskScore.
//
// Analyzers are pure functions RiskScore -> RiskScore. Each marks its stage
// in RiskScore.Stages and returns early when already applied, so re-running
// a pass never double-counts a breakdown category.
package scoring

import (
	"github.com/open-utility/kestrel/internal/domain"
)

// Blacklist score weights. A past-proven offender is the highest-confidence
// signal and dominates the score.
const (
	pointsBlacklistPerson  = 50
	pointsBlacklistPremise = 20
)

// MatchReferences cross-checks the subscriber's identity history against
// the person and premise blacklists. The first blacklisted id found in
// RelatedMuhatapNos becomes the display identity, surfacing the historical
// offender even when the current account holder is clean. Person and
// premise hits are additive.
func MatchReferences(rs domain.RiskScore, sub *domain.Subscriber, bl domain.Blacklist) domain.RiskScore {
	for _, muhatap := range sub.RelatedMuhatapNos {
		if bl.HasMuhatap(muhatap) {
			rs.Breakdown.ReferenceMatch += pointsBlacklistPerson
			rs.DisplayMuhatapNo = muhatap
			rs = rs.AddReason(domain.ReasonBlacklistPerson, "")
			break
		}
	}

	if bl.HasTesisat(sub.TesisatNo) {
		rs.Breakdown.ReferenceMatch += pointsBlacklistPremise
		rs = rs.AddReason(domain.ReasonBlacklistPremise, "")
	}

	return rs.Recompute()
}
