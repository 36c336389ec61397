// Package rules provides the CEL-based custom rule engine. Operators define
// extra scoring rules over derived subscriber features; each triggered rule
// adds a bounded number of points to the customRule breakdown category.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/stats"
)

// Engine compiles and evaluates custom scoring rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.CustomRule
	Program cel.Program
}

// NewEngine creates a custom rule engine with the subscriber feature
// environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("consumption", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("winter_avg", cel.DoubleType),
		cel.Variable("summer_avg", cel.DoubleType),
		cel.Variable("heating_ratio", cel.DoubleType),
		cel.Variable("annual_total", cel.DoubleType),
		cel.Variable("subscriber_type", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("district", cel.StringType),
		cel.Variable("total_score", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.CustomRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.CustomRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}
	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.CustomRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears existing rules and loads new ones. Enables
// hot-reloading from the repository.
func (e *Engine) ReloadRules(configs []*domain.CustomRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}
	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.CustomRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.CustomRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

// Hit is one triggered custom rule.
type Hit struct {
	RuleID string
	Tag    string
	Points int
}

// Evaluate runs all loaded rules against the subscriber's derived features
// and returns the triggered hits. A rule that fails to evaluate is skipped;
// bad operator input must not poison the batch.
func (e *Engine) Evaluate(sub *domain.Subscriber, currentScore int) []Hit {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		loaded = append(loaded, r)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil
	}

	m := sub.Consumption
	activation := map[string]any{
		"consumption": map[string]float64{
			"jan": m.Jan, "feb": m.Feb, "mar": m.Mar, "apr": m.Apr,
			"may": m.May, "jun": m.Jun, "jul": m.Jul, "aug": m.Aug,
			"sep": m.Sep, "oct": m.Oct, "nov": m.Nov, "dec": m.Dec,
		},
		"winter_avg":      stats.WinterAvg(m),
		"summer_avg":      stats.SummerAvg(m),
		"heating_ratio":   stats.HeatingRatio(m),
		"annual_total":    m.AnnualTotal(),
		"subscriber_type": string(sub.AboneTipi),
		"city":            sub.City,
		"district":        sub.District,
		"total_score":     int64(currentScore),
	}

	var hits []Hit
	for _, rule := range loaded {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		factor := toFactor(out)
		if factor <= 0 {
			continue
		}

		points := int(float64(rule.Config.Points) * factor)
		if points > domain.MaxCustomRulePoints {
			points = domain.MaxCustomRulePoints
		}
		if points <= 0 {
			continue
		}
		hits = append(hits, Hit{
			RuleID: rule.Config.ID,
			Tag:    rule.Config.Tag,
			Points: points,
		})
	}
	return hits
}

// Apply is the on-demand custom-rule analyzer pass: it evaluates all loaded
// rules for the subscriber and books the hits once. Guarded by the stage
// marker so a re-run cannot double-count.
func (e *Engine) Apply(rs domain.RiskScore, sub *domain.Subscriber) domain.RiskScore {
	if rs.Stages.Custom {
		return rs
	}
	rs.Stages.Custom = true

	for _, hit := range e.Evaluate(sub, rs.TotalScore) {
		rs.Breakdown.CustomRule += hit.Points
		rs = rs.AddReason(domain.ReasonCustomRule, hit.Tag)
	}
	return rs.Recompute()
}

// toFactor converts a CEL result to a points multiplier: booleans map to
// 0/1, numerics are used as-is (clamped later).
func toFactor(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func (e *Engine) compileRule(cfg *domain.CustomRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}
