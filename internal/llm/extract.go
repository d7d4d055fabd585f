package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/explainable-finance/verdict/internal/decision"
	"github.com/explainable-finance/verdict/internal/domain"
)

// Extraction patterns, tried in order: a greedy brace match, then fenced
// blocks. Models in JSON mode usually satisfy the first; the fences cover
// chatty outputs.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)\{.*\}`),
	regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```"),
}

// ParseResult makes the never-fails contract explicit: either the model
// output parsed, or Fallback is set with the reason and Result holds the
// fixed fallback decision. Result is non-nil in both cases.
type ParseResult struct {
	Result   *domain.DecisionResult
	Fallback bool
	Reason   string
}

// modelPayload is the tolerant wire shape of model output. Counterfactuals
// may arrive as a list or as one packed string.
type modelPayload struct {
	Decision struct {
		Status     string  `json:"status"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"decision"`
	Counterfactuals json.RawMessage `json:"counterfactuals"`
	Fairness        struct {
		Assessment string `json:"assessment"`
		Concerns   string `json:"concerns"`
	} `json:"fairness"`
	KeyMetrics struct {
		RiskScore           float64  `json:"risk_score"`
		ApprovalProbability float64  `json:"approval_probability"`
		CriticalFactors     []string `json:"critical_factors"`
	} `json:"key_metrics"`
}

// ExtractDecision pulls the first parseable JSON object out of raw model
// text and shapes it into a DecisionResult. Any failure yields the fallback
// result; this function never errors.
func ExtractDecision(d domain.Domain, text string) ParseResult {
	for _, pattern := range extractPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := match[0]
		if len(match) > 1 {
			candidate = match[1]
		}

		var payload modelPayload
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			continue
		}
		return ParseResult{Result: shapeResult(d, &payload)}
	}

	reason := "no JSON object found in model output"
	if strings.TrimSpace(text) == "" {
		reason = "empty model output"
	}
	return ParseResult{Result: FallbackResult(d), Fallback: true, Reason: reason}
}

func shapeResult(d domain.Domain, payload *modelPayload) *domain.DecisionResult {
	status := strings.ToUpper(strings.TrimSpace(payload.Decision.Status))
	if status != domain.StatusApproved {
		status = domain.StatusRejected
	}

	return &domain.DecisionResult{
		Domain: d,
		Decision: domain.Decision{
			Status:     status,
			Confidence: payload.Decision.Confidence,
			Reasoning:  payload.Decision.Reasoning,
		},
		Counterfactuals: NormalizeCounterfactuals(payload.Counterfactuals),
		Fairness: domain.Fairness{
			Assessment: payload.Fairness.Assessment,
			Concerns:   payload.Fairness.Concerns,
		},
		KeyMetrics: domain.KeyMetrics{
			RiskScore:           int(payload.KeyMetrics.RiskScore),
			ApprovalProbability: payload.KeyMetrics.ApprovalProbability,
			CriticalFactors:     payload.KeyMetrics.CriticalFactors,
		},
	}
}

// FallbackResult is the fixed result for transport or parse failures.
func FallbackResult(d domain.Domain) *domain.DecisionResult {
	return &domain.DecisionResult{
		Domain: d,
		Decision: domain.Decision{
			Status:     domain.StatusRejected,
			Confidence: 0.5,
			Reasoning:  "Model output invalid or incomplete - System Error",
		},
		Counterfactuals: decision.Number([]string{
			"Ensure all application fields are filled correctly.",
			"Verify income and employment details.",
			"Contact support for manual review.",
		}),
		Fairness: domain.Fairness{
			Assessment: "Unknown",
			Concerns:   "Processing Error",
		},
		KeyMetrics: domain.KeyMetrics{
			RiskScore:           50,
			ApprovalProbability: 0.0,
			CriticalFactors:     []string{"Invalid AI response"},
		},
	}
}

var splitPattern = regexp.MustCompile(`[\n;]+`)

// NormalizeCounterfactuals cleans the model's counterfactual field: packed
// strings are split on newlines or semicolons, entries get the standard
// numbered prefix, and the list is capped.
func NormalizeCounterfactuals(raw json.RawMessage) []string {
	var candidates []string

	var asList []any
	var asString string
	switch {
	case len(raw) == 0:
		return nil
	case json.Unmarshal(raw, &asList) == nil:
		for _, item := range asList {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			} else {
				candidates = append(candidates, fmt.Sprint(item))
			}
		}
	case json.Unmarshal(raw, &asString) == nil:
		candidates = splitPattern.Split(asString, -1)
	default:
		return nil
	}

	return decision.Number(candidates)
}
