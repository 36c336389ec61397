package scoring

import (
	"testing"

	"github.com/open-utility/kestrel/internal/domain"
)

func TestRule120StrictBand(t *testing.T) {
	tests := []struct {
		name          string
		jan, feb, mar float64
		want          bool
	}{
		{"all inside band", 30, 60, 100, true},
		{"band edges inclusive", 25, 110, 25, true},
		{"jan below band (vacant)", 20, 60, 60, false},
		{"mar above band (heated)", 60, 60, 115, false},
		{"zeros", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &domain.Subscriber{
				TesisatNo:   "T-1",
				Consumption: domain.MonthlyConsumption{Jan: tt.jan, Feb: tt.feb, Mar: tt.mar},
			}
			rs := Rule120(domain.RiskScore{TesisatNo: "T-1"}, sub)
			if rs.Is120RuleSuspect != tt.want {
				t.Errorf("Is120RuleSuspect = %v, want %v", rs.Is120RuleSuspect, tt.want)
			}
			if !rs.Stages.Rule120 {
				t.Error("stage marker not set")
			}
		})
	}
}

func TestRule120OverridesPreliminaryFlag(t *testing.T) {
	// Preliminary flag triggers on jan=1/feb=50, but the strict band
	// reclassifies jan=1 as vacant.
	sub := &domain.Subscriber{
		TesisatNo:   "T-2",
		Consumption: domain.MonthlyConsumption{Jan: 1, Feb: 50, Mar: 50},
	}
	rs := Base(sub, emptyBlacklist())
	if !rs.Is120RuleSuspect {
		t.Fatal("preliminary flag expected from the base pass")
	}
	rs = Rule120(rs, sub)
	if rs.Is120RuleSuspect {
		t.Error("strict band must clear the preliminary flag for a vacant January")
	}
}
