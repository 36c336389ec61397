package rules

import (
	"testing"

	"github.com/open-utility/kestrel/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.CustomRule{
		ID:         "low-heating-ratio",
		Name:       "Low heating ratio",
		Expression: "heating_ratio < 2.0 && winter_avg > 50.0",
		Points:     15,
		Tag:        "Isınma Oranı Düşük",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.CustomRule{
		ID:         "invalid-rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.CustomRule{
		ID:         "validate-only",
		Expression: "annual_total < 100.0",
		Points:     10,
		Enabled:    true,
	}
	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("validate must not load, got %d rules", engine.RulesCount())
	}
}

func TestEvaluateTriggeredRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.CustomRule{
		ID:         "flat-winter",
		Expression: "heating_ratio < 2.0 && winter_avg > 50.0",
		Points:     15,
		Tag:        "Isınma Oranı Düşük",
		Enabled:    true,
	})

	sub := &domain.Subscriber{
		TesisatNo: "T-1",
		Consumption: domain.MonthlyConsumption{
			Dec: 80, Jan: 80, Feb: 80,
			Jun: 70, Jul: 70, Aug: 70,
		},
	}
	hits := engine.Evaluate(sub, 0)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if hits[0].Points != 15 || hits[0].Tag != "Isınma Oranı Düşük" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestEvaluatePointsCap(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.CustomRule{
		ID:         "over-cap",
		Expression: "true",
		Points:     90,
		Tag:        "Aşırı Puan",
		Enabled:    true,
	})

	hits := engine.Evaluate(&domain.Subscriber{TesisatNo: "T-1"}, 0)
	if len(hits) != 1 || hits[0].Points != domain.MaxCustomRulePoints {
		t.Errorf("points must clamp to %d, got %+v", domain.MaxCustomRulePoints, hits)
	}
}

func TestApplyIdempotent(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.CustomRule{
		ID:         "always",
		Expression: "true",
		Points:     10,
		Tag:        "Test Kuralı",
		Enabled:    true,
	})

	sub := &domain.Subscriber{TesisatNo: "T-1"}
	rs := domain.RiskScore{TesisatNo: "T-1"}

	once := engine.Apply(rs, sub)
	twice := engine.Apply(once, sub)

	if once.Breakdown.CustomRule != 10 {
		t.Errorf("expected +10 custom points, got %d", once.Breakdown.CustomRule)
	}
	if twice.Breakdown.CustomRule != 10 {
		t.Errorf("re-applying must not double-count, got %d", twice.Breakdown.CustomRule)
	}
	if !once.HasReason(domain.ReasonCustomRule) {
		t.Error("custom rule reason missing")
	}
}

func TestReloadRulesReplaces(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.CustomRule{ID: "old", Expression: "true", Points: 5, Enabled: true})

	err := engine.ReloadRules([]*domain.CustomRule{
		{ID: "new-1", Expression: "winter_avg > 10.0", Points: 5, Enabled: true},
		{ID: "disabled", Expression: "true", Points: 5, Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected only the enabled new rule, got %d", engine.RulesCount())
	}
}
