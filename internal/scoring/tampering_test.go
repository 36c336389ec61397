package scoring

import (
	"testing"

	"github.com/open-utility/kestrel/internal/domain"
)

func TestTamperingRederivesFlagWithoutRescoring(t *testing.T) {
	sub := &domain.Subscriber{
		TesisatNo: "T-1",
		Consumption: domain.MonthlyConsumption{
			Dec: 60, Jan: 55, Feb: 58,
			Jun: 50, Jul: 50, Aug: 50,
		},
	}
	rs := Base(sub, emptyBlacklist())
	if !rs.IsTamperingSuspect {
		t.Fatal("base pass must set the tampering flag for a flat seasonal profile")
	}

	before := rs.TotalScore
	rs = Tampering(rs, sub)
	if rs.TotalScore != before {
		t.Errorf("tampering pass must not change the score: %d -> %d", before, rs.TotalScore)
	}
	if !rs.IsTamperingSuspect || !rs.Stages.Tampering {
		t.Error("flag or stage marker missing after tampering pass")
	}

	// Re-running is a no-op on the breakdown.
	again := Tampering(rs, sub)
	if again.Breakdown != rs.Breakdown {
		t.Errorf("breakdown changed on re-run: %+v -> %+v", rs.Breakdown, again.Breakdown)
	}
}

func TestTamperingClearFlagForSeasonalProfile(t *testing.T) {
	sub := &domain.Subscriber{
		TesisatNo: "T-2",
		Consumption: domain.MonthlyConsumption{
			Dec: 200, Jan: 220, Feb: 210,
			Jun: 10, Jul: 10, Aug: 10,
		},
	}
	rs := Tampering(domain.RiskScore{TesisatNo: "T-2"}, sub)
	if rs.IsTamperingSuspect {
		t.Error("a clear heating signature must not flag tampering")
	}
}
