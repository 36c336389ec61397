package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/open-utility/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	sessionID := "session-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetSession", func(t *testing.T) {
		now := time.Now().UTC()
		session := &domain.SessionRecord{
			ID:              sessionID,
			Name:            "Ocak taraması",
			SubscriberCount: 1200,
			Stats:           domain.EngineStats{Total: 1200, Kritik: 12, Yuksek: 48, Orta: 140, Dusuk: 1000},
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := repo.SaveSession(ctx, session); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		retrieved, err := repo.GetSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}

		if retrieved.ID != session.ID {
			t.Errorf("expected ID %s, got %s", session.ID, retrieved.ID)
		}
		if retrieved.SubscriberCount != 1200 {
			t.Errorf("expected 1200 subscribers, got %d", retrieved.SubscriberCount)
		}
		if retrieved.Stats.Kritik != 12 {
			t.Errorf("expected 12 kritik, got %d", retrieved.Stats.Kritik)
		}
	})

	t.Run("SessionUpsert", func(t *testing.T) {
		session := &domain.SessionRecord{
			ID:              sessionID,
			Name:            "Ocak taraması",
			SubscriberCount: 1200,
			Stats:           domain.EngineStats{Total: 1200, Kritik: 15},
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		}

		if err := repo.SaveSession(ctx, session); err != nil {
			t.Fatalf("second SaveSession failed: %v", err)
		}

		retrieved, _ := repo.GetSession(ctx, sessionID)
		if retrieved.Stats.Kritik != 15 {
			t.Errorf("expected updated stats, got %d kritik", retrieved.Stats.Kritik)
		}
	})

	t.Run("SaveAndListRiskScores", func(t *testing.T) {
		scores := []domain.RiskScore{
			{
				TesisatNo:  "T-1",
				MuhatapNo:  "M-1",
				TotalScore: 85,
				RiskLevel:  domain.LevelKritik,
				Breakdown:  domain.Breakdown{ReferenceMatch: 50, ConsumptionAnomaly: 35},
				Reasons: []domain.Reason{
					{Code: domain.ReasonBlacklistPerson},
					{Code: domain.ReasonRule120Winter},
				},
				Is120RuleSuspect: true,
				Stages:           domain.StageSet{Base: true},
			},
			{
				TesisatNo:  "T-2",
				MuhatapNo:  "M-2",
				TotalScore: 20,
				RiskLevel:  domain.LevelDusuk,
				Stages:     domain.StageSet{Base: true},
			},
		}

		if err := repo.SaveRiskScores(ctx, sessionID, scores); err != nil {
			t.Fatalf("SaveRiskScores failed: %v", err)
		}

		listed, err := repo.ListRiskScores(ctx, sessionID, 0)
		if err != nil {
			t.Fatalf("ListRiskScores failed: %v", err)
		}

		if len(listed) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(listed))
		}
		// Highest score first
		if listed[0].TesisatNo != "T-1" {
			t.Errorf("expected T-1 first, got %s", listed[0].TesisatNo)
		}
		if listed[0].Breakdown.ReferenceMatch != 50 {
			t.Errorf("breakdown not round-tripped: %+v", listed[0].Breakdown)
		}
		if len(listed[0].Reasons) != 2 {
			t.Errorf("reasons not round-tripped: %+v", listed[0].Reasons)
		}
		if !listed[0].Is120RuleSuspect {
			t.Error("flag not round-tripped")
		}
	})

	t.Run("RiskScoresReplaceOnSave", func(t *testing.T) {
		replacement := []domain.RiskScore{
			{TesisatNo: "T-3", MuhatapNo: "M-3", TotalScore: 50, RiskLevel: domain.LevelYuksek},
		}

		if err := repo.SaveRiskScores(ctx, sessionID, replacement); err != nil {
			t.Fatalf("SaveRiskScores failed: %v", err)
		}

		listed, _ := repo.ListRiskScores(ctx, sessionID, 0)
		if len(listed) != 1 || listed[0].TesisatNo != "T-3" {
			t.Errorf("expected replacement snapshot, got %+v", listed)
		}
	})

	t.Run("ListRiskScoresLimit", func(t *testing.T) {
		scores := []domain.RiskScore{
			{TesisatNo: "T-1", TotalScore: 90, RiskLevel: domain.LevelKritik},
			{TesisatNo: "T-2", TotalScore: 60, RiskLevel: domain.LevelYuksek},
			{TesisatNo: "T-3", TotalScore: 30, RiskLevel: domain.LevelOrta},
		}
		if err := repo.SaveRiskScores(ctx, sessionID, scores); err != nil {
			t.Fatalf("SaveRiskScores failed: %v", err)
		}

		listed, err := repo.ListRiskScores(ctx, sessionID, 2)
		if err != nil {
			t.Fatalf("ListRiskScores failed: %v", err)
		}
		if len(listed) != 2 {
			t.Errorf("expected 2 scores with limit, got %d", len(listed))
		}
	})

	t.Run("SaveAndListBuildingRisks", func(t *testing.T) {
		risks := []domain.BuildingRisk{
			{
				TesisatNo:            "T-9",
				MuhatapNo:            "M-9",
				Address:              "Karanfil Sok. No:4",
				Location:             domain.Location{Lat: 39.92, Lng: 32.85},
				PersonalWinterAvg:    35,
				BuildingWinterMedian: 100,
				DeviationPercentage:  -65,
				NeighborCount:        9,
				MonthlyBreakdown:     domain.WinterMonths{Jan: 30, Feb: 35, Mar: 40},
			},
		}

		if err := repo.SaveBuildingRisks(ctx, sessionID, risks); err != nil {
			t.Fatalf("SaveBuildingRisks failed: %v", err)
		}

		listed, err := repo.ListBuildingRisks(ctx, sessionID)
		if err != nil {
			t.Fatalf("ListBuildingRisks failed: %v", err)
		}
		if len(listed) != 1 {
			t.Fatalf("expected 1 risk, got %d", len(listed))
		}
		if listed[0].DeviationPercentage != -65 {
			t.Errorf("deviation not round-tripped: %+v", listed[0])
		}
		if listed[0].MonthlyBreakdown.Feb != 35 {
			t.Errorf("monthly breakdown not round-tripped: %+v", listed[0].MonthlyBreakdown)
		}
	})

	t.Run("CustomRuleCRUD", func(t *testing.T) {
		rule := &domain.CustomRule{
			ID:         "rule-001",
			Name:       "Düşük ısınma oranı",
			Expression: "heating_ratio < 2.0",
			Points:     15,
			Tag:        "Isınma Oranı Düşük",
			Enabled:    true,
		}

		if err := repo.SaveCustomRule(ctx, rule); err != nil {
			t.Fatalf("SaveCustomRule failed: %v", err)
		}

		retrieved, err := repo.GetCustomRule(ctx, "rule-001")
		if err != nil {
			t.Fatalf("GetCustomRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, retrieved.Expression)
		}
		if !retrieved.Enabled {
			t.Error("expected enabled rule")
		}

		// Upsert disables it
		rule.Enabled = false
		if err := repo.SaveCustomRule(ctx, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		retrieved, _ = repo.GetCustomRule(ctx, "rule-001")
		if retrieved.Enabled {
			t.Error("expected disabled rule after upsert")
		}

		rules, err := repo.ListCustomRules(ctx)
		if err != nil {
			t.Fatalf("ListCustomRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}
	})

	t.Run("SaveAndListAlerts", func(t *testing.T) {
		alert := &domain.Alert{
			ID:         "alert-001",
			SessionID:  sessionID,
			TesisatNo:  "T-1",
			TotalScore: 85,
			RiskLevel:  domain.LevelKritik,
			Reasons:    "RİSKLİ ABONE (Kara Liste), 120 Kuralı (Kışın Aşırı Düşük)",
			CreatedAt:  time.Now().UTC(),
		}

		if err := repo.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		alerts, err := repo.ListAlerts(ctx, sessionID)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].RiskLevel != domain.LevelKritik {
			t.Errorf("expected kritik alert, got %s", alerts[0].RiskLevel)
		}
	})

	t.Run("ListSessions", func(t *testing.T) {
		sessions, err := repo.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 1 {
			t.Errorf("expected 1 session, got %d", len(sessions))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetSession(ctx, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetCustomRule(ctx, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("RequiresSessionID", func(t *testing.T) {
		if err := repo.SaveRiskScores(ctx, "", nil); err == nil {
			t.Error("expected error for empty session id")
		}
		if _, err := repo.ListRiskScores(ctx, "", 0); err == nil {
			t.Error("expected error for empty session id")
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
