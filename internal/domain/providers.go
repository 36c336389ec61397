package domain

import (
	"context"
)

// HDDProvider supplies heating-degree-day factors for a city. A real
// deployment calls a meteorological data service; the shipped provider
// serves a static table.
type HDDProvider interface {
	HDD(ctx context.Context, city string) (HDDFactors, error)
}

// GeocodeResult is a resolved street address for a coordinate.
type GeocodeResult struct {
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
}

// ReverseGeocoder resolves coordinates to addresses. Implementations
// self-throttle to the upstream rate limit and cache per coordinate for the
// session. Failures return a soft, user-visible error; never retried.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, loc Location) (*GeocodeResult, error)
}

// ReportGenerator turns an aggregate payload into natural-language summary
// text via an external AI text service. Prompt construction is glue and
// lives behind this boundary.
type ReportGenerator interface {
	Generate(ctx context.Context, payload *ReportPayload) (string, error)
}
