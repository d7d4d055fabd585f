package domain

import "time"

// Application workflow statuses.
const (
	AppStatusPendingAI    = "pending_ai"
	AppStatusPendingHuman = "pending_human"
	AppStatusCompleted    = "completed"
)

// Application is one submitted case moving through the review workflow:
// pending_ai -> pending_human -> completed.
type Application struct {
	ID        string    `json:"id"`
	Domain    Domain    `json:"domain"`
	Data      Applicant `json:"data"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Result is the automated evaluation, present from pending_human on.
	Result *DecisionResult `json:"ai_result,omitempty"`

	// Review fields, set once a human decides.
	FinalDecision   string     `json:"final_decision,omitempty"` // "approved" or "rejected"
	ReviewerComment string     `json:"reviewer_comment,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	IsOverride      bool       `json:"is_override"`

	// OverrideExplanation is filled when the reviewer's decision differs
	// from the automated one, assembled from the pre-computed alternative
	// narrative of the evaluation.
	OverrideExplanation *OverrideExplanation `json:"override_explanation,omitempty"`

	// AgentExplanation holds reviewer-edited explanation text, if any.
	AgentExplanation  string     `json:"agent_explanation,omitempty"`
	ExplanationEdited bool       `json:"explanation_edited,omitempty"`
	ExplanationEditedAt *time.Time `json:"explanation_edited_at,omitempty"`
}

// OverrideExplanation is the customer-facing account of a human override.
type OverrideExplanation struct {
	Summary           string   `json:"summary"`
	DetailedReasoning string   `json:"detailed_reasoning"`
	NextSteps         []string `json:"next_steps"`
	Conditions        []string `json:"conditions"`
	OverrideContext   string   `json:"override_context"`
}

// DecisionRecord is one persisted evaluation, kept for the audit trail and
// for recent-decision context in remote prompts.
type DecisionRecord struct {
	ID        string    `json:"id"`
	Domain    Domain    `json:"domain"`
	Status    string    `json:"status"`
	Reasoning string    `json:"reasoning"`
	Result    *DecisionResult `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
