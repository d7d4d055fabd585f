// Package decision aggregates rule firings into a scored verdict with
// reasoning and numbered remediation steps.
package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/explainable-finance/verdict/internal/domain"
)

// Scoring constants. The approval threshold is a policy constant, not a
// tuning knob.
const (
	Baseline          = 50
	ApprovalThreshold = 55

	// MaxCounterfactuals caps the remediation list in any result.
	MaxCounterfactuals = 5

	// MaxCriticalFactors caps the factor labels surfaced in key metrics.
	MaxCriticalFactors = 3
)

// genericFallbackSteps guarantee a rejection never ships with zero guidance.
var genericFallbackSteps = []string{
	"Step 1: Review and update your application details to ensure all information is accurate and complete",
	"Step 2: Provide additional supporting documentation such as pay stubs, tax returns, or employment verification",
	"Step 3: Contact our support team at support@example.com for a manual review of your application",
}

// Processor turns an ordered firing list into a DecisionResult. It is
// stateless and safe for concurrent use.
type Processor struct{}

// NewProcessor creates a decision processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process scores the firings and assembles the primary half of the result.
// The alternative (override) narrative and the audit block are filled in by
// the caller.
func (pr *Processor) Process(p *domain.Profile, firings []domain.Firing) *domain.DecisionResult {
	score := Baseline
	var factors, analysis, remediations []string

	for _, f := range firings {
		score += f.Outcome.Delta
		if f.Outcome.Factor != "" {
			factors = append(factors, f.Outcome.Factor)
		}
		if f.Outcome.Analysis != "" {
			analysis = append(analysis, f.Outcome.Analysis)
		}
		if f.Outcome.Remediation != "" {
			remediations = append(remediations, f.Outcome.Remediation)
		}
	}

	score = clamp(score, 0, 100)
	approved := score >= ApprovalThreshold

	counterfactuals := Number(remediations)
	if len(counterfactuals) == 0 && !approved {
		counterfactuals = append([]string(nil), genericFallbackSteps...)
	}

	status := domain.StatusRejected
	if approved {
		status = domain.StatusApproved
	}

	return &domain.DecisionResult{
		Domain: p.Domain,
		Decision: domain.Decision{
			Status:     status,
			Confidence: Confidence(score),
			Reasoning:  reasoning(score, factors, analysis),
		},
		Counterfactuals: counterfactuals,
		Fairness: domain.Fairness{
			Assessment: "Fair",
			Concerns:   "Automated rule-based evaluation",
		},
		KeyMetrics: domain.KeyMetrics{
			RiskScore:           100 - score,
			ApprovalProbability: round2(float64(score) / 100),
			CriticalFactors:     firstN(factors, MaxCriticalFactors),
		},
	}
}

// Confidence maps a clamped score to (0.1, 0.95], monotonic in score.
func Confidence(score int) float64 {
	return round2(math.Min(0.95, float64(score)/100+0.1))
}

// Number applies 1-based "Step N:" prefixes in output order, skipping empty
// entries and capping the list. Entries already carrying a step prefix pass
// through untouched so remote-sourced steps are not double-numbered.
func Number(steps []string) []string {
	var out []string
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(out) >= MaxCounterfactuals {
			break
		}
		if strings.HasPrefix(strings.ToLower(s), "step ") {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprintf("Step %d: %s", len(out)+1, s))
	}
	return out
}

// reasoning builds the two-part narrative: a one-line summary citing the top
// factors and the risk figure, then the concatenated detailed analysis.
func reasoning(score int, factors, analysis []string) string {
	headline := "Standard evaluation criteria applied"
	if len(factors) > 0 {
		headline = strings.Join(firstN(factors, MaxCriticalFactors), ", ")
	}

	detail := "Standard evaluation criteria were applied to assess your application."
	if len(analysis) > 0 {
		detail = strings.Join(analysis, " ")
	}

	return fmt.Sprintf("Based on automated analysis: %s. Risk score: %d/100.\n\nDetailed Analysis:\n%s", headline, score, detail)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
