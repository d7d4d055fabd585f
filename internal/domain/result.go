package domain

import "time"

// Decision status constants.
const (
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Decision is the verdict portion of a result.
type Decision struct {
	Status     string  `json:"status"` // "APPROVED" or "REJECTED"
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Fairness is the self-reported fairness assessment attached to a result.
type Fairness struct {
	Assessment string `json:"assessment"`
	Concerns   string `json:"concerns"`
}

// KeyMetrics carries the numeric risk view of a decision.
type KeyMetrics struct {
	RiskScore           int      `json:"risk_score"`
	ApprovalProbability float64  `json:"approval_probability"`
	CriticalFactors     []string `json:"critical_factors"`
}

// Audit records which engine produced a result and when. Cached flips to
// true when the result was served from the result cache.
type Audit struct {
	Engine    string    `json:"engine"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached"`
}

// DecisionResult is the complete, immutable output of one evaluation.
// A new evaluation produces a new result; nothing mutates an existing one
// except the audit timestamp/cached flag refreshed on a cache hit.
type DecisionResult struct {
	Domain          Domain   `json:"decision_type"`
	Decision        Decision `json:"decision"`
	Counterfactuals []string `json:"counterfactuals"`
	Fairness        Fairness `json:"fairness"`
	KeyMetrics      KeyMetrics `json:"key_metrics"`

	// Pre-computed narrative for the opposite outcome, ready the moment a
	// human reviewer overrides the automated verdict.
	AlternativeReasoning       string   `json:"alternative_reasoning"`
	AlternativeCounterfactuals []string `json:"alternative_counterfactuals"`

	Audit Audit `json:"audit"`
}

// Clone returns a deep copy so cached results can be handed out without
// aliasing the stored slices.
func (r *DecisionResult) Clone() *DecisionResult {
	out := *r
	out.Counterfactuals = append([]string(nil), r.Counterfactuals...)
	out.AlternativeCounterfactuals = append([]string(nil), r.AlternativeCounterfactuals...)
	out.KeyMetrics.CriticalFactors = append([]string(nil), r.KeyMetrics.CriticalFactors...)
	return &out
}
