// Package report turns an aggregate analysis payload into a natural-language
// Turkish summary via an external text-generation service. The scoring core
// never sees prompt text; everything here is presentation glue.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/open-utility/kestrel/internal/domain"
)

// Fallback is returned when the text service is unavailable. Soft by design:
// a report view with a placeholder beats a failed request.
const Fallback = "Rapor servisi şu anda kullanılamıyor. Lütfen daha sonra tekrar deneyin."

// Generator calls an OpenAI-compatible completion endpoint.
type Generator struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGenerator creates a report generator client.
func NewGenerator(cfg domain.ReportConfig) *Generator {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate renders the payload into summary text. A service failure returns
// the fallback text with a nil error.
func (g *Generator) Generate(ctx context.Context, payload *domain.ReportPayload) (string, error) {
	if g.baseURL == "" {
		return Fallback, nil
	}

	body, err := json.Marshal(generateRequest{Prompt: BuildPrompt(payload)})
	if err != nil {
		return Fallback, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return Fallback, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		slog.Warn("report generation request failed", "error", err)
		return Fallback, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("report generation non-200", "status", resp.StatusCode)
		return Fallback, nil
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Text == "" {
		return Fallback, nil
	}

	return result.Text, nil
}

// BuildPrompt formats the aggregate payload as a Turkish analysis prompt.
func BuildPrompt(payload *domain.ReportPayload) string {
	var b strings.Builder

	b.WriteString("Bir doğalgaz dağıtım şirketi için kaçak kullanım risk analizi özeti hazırla.\n\n")
	fmt.Fprintf(&b, "Toplam abone: %d\n", payload.Stats.Total)
	fmt.Fprintf(&b, "Kritik: %d, Yüksek: %d, Orta: %d, Düşük: %d\n\n", payload.Stats.Kritik, payload.Stats.Yuksek, payload.Stats.Orta, payload.Stats.Dusuk)

	if len(payload.Top) > 0 {
		b.WriteString("En riskli tesisatlar:\n")
		for _, entry := range payload.Top {
			fmt.Fprintf(&b, "- Tesisat %s: %d puan (%s) - %s\n", entry.TesisatNo, entry.TotalScore, entry.RiskLevel, entry.Reasons)
		}
	}

	b.WriteString("\nKısa, yönetici özetine uygun bir değerlendirme yaz. Saha ekipleri için öncelik önerisi ekle.")
	return b.String()
}
