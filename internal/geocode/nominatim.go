// Package geocode implements reverse geocoding against a Nominatim-style
// HTTP endpoint. Lookups are throttled to the upstream rate limit and cached
// per rounded coordinate; a failed lookup yields a soft Turkish placeholder
// rather than an error that would abort a map view.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/open-utility/kestrel/internal/domain"
)

// Soft error strings surfaced in place of an address. These are display
// values, not errors: a single failed lookup must not break the caller.
const (
	AddressNotFound    = "Adres bulunamadı"
	AddressUnreachable = "Adres servisine ulaşılamadı"
)

const cacheTTL = 24 * time.Hour

// Client resolves coordinates through a Nominatim-compatible service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   domain.Cache
}

// NewClient creates a reverse-geocoding client. cache may be nil.
func NewClient(cfg domain.GeocodeConfig, cache domain.Cache) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cache:   cache,
	}
}

// nominatimResponse is the subset of the upstream payload we consume.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road     string `json:"road"`
		Suburb   string `json:"suburb"`
		Town     string `json:"town"`
		City     string `json:"city"`
		Province string `json:"province"`
		State    string `json:"state"`
	} `json:"address"`
}

// Reverse resolves a coordinate to an address. One attempt per call: on any
// failure the result carries the unreachable placeholder and a nil error, so
// rendering continues.
func (c *Client) Reverse(ctx context.Context, loc domain.Location) (*domain.GeocodeResult, error) {
	if loc.IsZero() {
		return &domain.GeocodeResult{Address: AddressNotFound}, nil
	}

	key := cacheKey(loc)
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil && data != nil {
			var result domain.GeocodeResult
			if json.Unmarshal(data, &result) == nil {
				return &result, nil
			}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result := c.fetch(ctx, loc)

	if c.cache != nil && result.Address != AddressUnreachable {
		if data, err := json.Marshal(result); err == nil {
			_ = c.cache.Set(ctx, key, data, cacheTTL)
		}
	}

	return result, nil
}

func (c *Client) fetch(ctx context.Context, loc domain.Location) *domain.GeocodeResult {
	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%s&lon=%s&accept-language=tr",
		c.baseURL,
		url.QueryEscape(fmt.Sprintf("%.6f", loc.Lat)),
		url.QueryEscape(fmt.Sprintf("%.6f", loc.Lng)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &domain.GeocodeResult{Address: AddressUnreachable}
	}
	req.Header.Set("User-Agent", "kestrel/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("reverse geocode request failed", "error", err)
		return &domain.GeocodeResult{Address: AddressUnreachable}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("reverse geocode non-200", "status", resp.StatusCode)
		return &domain.GeocodeResult{Address: AddressUnreachable}
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &domain.GeocodeResult{Address: AddressUnreachable}
	}

	if payload.DisplayName == "" {
		return &domain.GeocodeResult{Address: AddressNotFound}
	}

	city := payload.Address.City
	if city == "" {
		city = payload.Address.Province
	}
	if city == "" {
		city = payload.Address.State
	}
	district := payload.Address.Town
	if district == "" {
		district = payload.Address.Suburb
	}

	return &domain.GeocodeResult{
		Address:  payload.DisplayName,
		City:     city,
		District: district,
	}
}

// cacheKey rounds to ~1 meter so retries for the same meter cluster share an
// entry.
func cacheKey(loc domain.Location) string {
	return fmt.Sprintf("geocode:%.5f,%.5f", loc.Lat, loc.Lng)
}
