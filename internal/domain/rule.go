package domain

import "time"

// CustomRule is an operator-defined scoring rule evaluated against derived
// subscriber features (winter_avg, heating_ratio, ...) after the base pass.
// The expression is CEL; a boolean result worth Points, or a numeric result
// multiplied into Points.
type CustomRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL formula over the subscriber feature variables.
	Expression string `json:"expression"`

	// Points is the bounded score contribution when the rule triggers.
	// Clamped to [0, MaxCustomRulePoints] at evaluation time.
	Points int `json:"points"`

	// Tag is the Turkish display reason appended when the rule triggers.
	Tag string `json:"tag"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// MaxCustomRulePoints caps any single custom rule's contribution so
// operator rules cannot drown out the built-in signals.
const MaxCustomRulePoints = 25
