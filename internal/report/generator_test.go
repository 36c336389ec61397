package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/open-utility/kestrel/internal/domain"
)

func samplePayload() *domain.ReportPayload {
	return &domain.ReportPayload{
		GeneratedAt: time.Now().UTC(),
		Stats:       domain.EngineStats{Total: 100, Kritik: 3, Yuksek: 10, Orta: 20, Dusuk: 67},
		Top: []domain.ReportEntry{
			{TesisatNo: "T-1", TotalScore: 95, RiskLevel: domain.LevelKritik, Reasons: "RİSKLİ ABONE (Kara Liste)"},
		},
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"text": "Özet: 3 kritik tesisat tespit edildi."}`))
	}))
	defer server.Close()

	gen := NewGenerator(domain.ReportConfig{BaseURL: server.URL, APIKey: "test-key", TimeoutSecs: 2})

	text, err := gen.Generate(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(text, "kritik") {
		t.Errorf("unexpected report text: %q", text)
	}
}

func TestGenerateFallbackOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gen := NewGenerator(domain.ReportConfig{BaseURL: server.URL, TimeoutSecs: 2})

	text, err := gen.Generate(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("failure must be soft: %v", err)
	}
	if text != Fallback {
		t.Errorf("expected fallback text, got %q", text)
	}
}

func TestGenerateUnconfigured(t *testing.T) {
	gen := NewGenerator(domain.ReportConfig{})

	text, err := gen.Generate(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != Fallback {
		t.Errorf("expected fallback for unconfigured service, got %q", text)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(samplePayload())

	for _, want := range []string{"Toplam abone: 100", "Kritik: 3", "Tesisat T-1: 95 puan"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
