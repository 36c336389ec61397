// Package hdd supplies heating-degree-day factors for Turkish cities. The
// static provider ships climate-normal values; a real deployment would
// swap in a client for a meteorological data service behind the same
// domain.HDDProvider interface.
package hdd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/open-utility/kestrel/internal/domain"
)

// ErrUnknownCity is returned when no HDD data exists for the city.
var ErrUnknownCity = errors.New("şehir için HDD verisi bulunamadı")

// Climate-normal winter HDD values (base 18°C, monthly totals).
var cityHDD = map[string]domain.HDDFactors{
	"istanbul":  {Jan: 400, Feb: 365, Mar: 320},
	"ankara":    {Jan: 510, Feb: 460, Mar: 390},
	"izmir":     {Jan: 320, Feb: 285, Mar: 235},
	"bursa":     {Jan: 420, Feb: 380, Mar: 330},
	"konya":     {Jan: 540, Feb: 480, Mar: 400},
	"kayseri":   {Jan: 580, Feb: 520, Mar: 430},
	"erzurum":   {Jan: 760, Feb: 690, Mar: 590},
	"antalya":   {Jan: 250, Feb: 220, Mar: 165},
	"gaziantep": {Jan: 430, Feb: 375, Mar: 300},
	"samsun":    {Jan: 380, Feb: 355, Mar: 320},
}

// StaticProvider serves factors from the builtin table.
type StaticProvider struct{}

// NewStaticProvider creates a provider over the builtin city table.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// HDD returns the winter factors for a city.
func (p *StaticProvider) HDD(_ context.Context, city string) (domain.HDDFactors, error) {
	factors, ok := cityHDD[domain.FoldTurkish(city)]
	if !ok {
		return domain.HDDFactors{}, fmt.Errorf("%w: %s", ErrUnknownCity, city)
	}
	return factors, nil
}

// CachedProvider wraps a provider with cache-backed lookups, so a real
// meteorological client is hit at most once per city per TTL.
type CachedProvider struct {
	inner domain.HDDProvider
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps the provider with the given cache.
func NewCachedProvider(inner domain.HDDProvider, cache domain.Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl}
}

// HDD returns factors from cache when present, falling through to the
// wrapped provider otherwise.
func (p *CachedProvider) HDD(ctx context.Context, city string) (domain.HDDFactors, error) {
	key := "hdd:" + domain.FoldTurkish(city)

	if cached, err := p.cache.Get(ctx, key); err == nil && cached != nil {
		var factors domain.HDDFactors
		if json.Unmarshal(cached, &factors) == nil {
			return factors, nil
		}
	}

	factors, err := p.inner.HDD(ctx, city)
	if err != nil {
		return domain.HDDFactors{}, err
	}

	if data, err := json.Marshal(factors); err == nil {
		// Best effort; a cache write failure must not fail the lookup.
		_ = p.cache.Set(ctx, key, data, p.ttl)
	}

	return factors, nil
}
