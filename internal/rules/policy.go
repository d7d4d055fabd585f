package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/explainable-finance/verdict/internal/domain"
)

// PolicyEngine compiles operator policies into CEL programs and evaluates
// the scored ones against normalized profiles. Policies without an
// expression are prompt-only guidance and are skipped here.
type PolicyEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledPolicy
}

type compiledPolicy struct {
	config  *domain.PolicyConfig
	program cel.Program
}

// NewPolicyEngine creates a policy engine with the profile variables bound.
func NewPolicyEngine() (*PolicyEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("applicant", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("domain", cel.StringType),
		cel.Variable("annual_income", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("credit_score", cel.DoubleType),
		cel.Variable("age", cel.DoubleType),
		cel.Variable("employed", cel.BoolType),
		cel.Variable("claims", cel.IntType),
		cel.Variable("premium", cel.DoubleType),
		cel.Variable("experience", cel.DoubleType),
		cel.Variable("education", cel.StringType),
		cel.Variable("skills_match", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &PolicyEngine{
		env:      env,
		compiled: make(map[string]*compiledPolicy),
	}, nil
}

// Validate compiles a policy without loading it.
func (e *PolicyEngine) Validate(cfg *domain.PolicyConfig) error {
	if cfg == nil {
		return fmt.Errorf("policy config is required")
	}
	if cfg.Expression == "" {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(cfg)
	return err
}

// Load compiles and loads one policy. Prompt-only policies are accepted and
// ignored for scoring.
func (e *PolicyEngine) Load(cfg *domain.PolicyConfig) error {
	if cfg.Expression == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(cfg)
	if err != nil {
		return err
	}
	e.compiled[cfg.ID] = compiled
	return nil
}

// Reload replaces all loaded policies atomically. Used for hot-reload from
// the repository after policy edits.
func (e *PolicyEngine) Reload(configs []*domain.PolicyConfig) error {
	next := make(map[string]*compiledPolicy)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled || cfg.Expression == "" {
			continue
		}
		compiled, err := e.compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Count returns the number of loaded scored policies.
func (e *PolicyEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Loaded returns the currently loaded policy configurations.
func (e *PolicyEngine) Loaded() []*domain.PolicyConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.PolicyConfig, 0, len(e.compiled))
	for _, c := range e.compiled {
		out = append(out, c.config)
	}
	return out
}

// Evaluate runs all loaded policies scoped to the profile's domain (or
// global) and returns firings for the ones whose expression holds. A policy
// that errors at evaluation time is skipped; operator policies must never
// break an evaluation.
func (e *PolicyEngine) Evaluate(p *domain.Profile) []domain.Firing {
	e.mu.RLock()
	policies := make([]*compiledPolicy, 0, len(e.compiled))
	for _, c := range e.compiled {
		policies = append(policies, c)
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil
	}

	// Deterministic firing order regardless of map iteration.
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].config.ID < policies[j].config.ID
	})

	activation := map[string]any{
		"applicant":     p.Fields,
		"domain":        string(p.Domain),
		"annual_income": p.AnnualIncome,
		"loan_amount":   p.LoanAmount,
		"credit_score":  p.CreditScore,
		"age":           p.Age,
		"employed":      p.Employed,
		"claims":        int64(p.Claims),
		"premium":       p.Premium,
		"experience":    p.Experience,
		"education":     p.Education,
		"skills_match":  p.SkillsMatch,
	}

	var firings []domain.Firing
	for _, c := range policies {
		if c.config.Domain != string(p.Domain) && c.config.Domain != domain.PolicyDomainGlobal {
			continue
		}
		out, _, err := c.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); !ok || !bool(matched) {
			continue
		}
		firings = append(firings, domain.Firing{
			Rule: "policy." + c.config.ID,
			Outcome: domain.RuleOutcome{
				Delta:       c.config.Delta,
				Factor:      c.config.Factor,
				Analysis:    c.config.Analysis,
				Remediation: c.config.Remediation,
			},
		})
	}
	return firings
}

// Close clears loaded policies.
func (e *PolicyEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledPolicy)
	return nil
}

func (e *PolicyEngine) compile(cfg *domain.PolicyConfig) (*compiledPolicy, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &compiledPolicy{config: cfg, program: program}, nil
}
