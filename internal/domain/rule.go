package domain

import "time"

// RuleOutcome is the effect of one fired rule: a signed score delta plus
// optional narrative fragments. A rule fires at most once per evaluation.
type RuleOutcome struct {
	// Delta is added to the running score before the final clamp.
	Delta int

	// Factor is a short label; the first three in firing order become the
	// result's critical factors.
	Factor string

	// Analysis is one sentence for the detailed reasoning.
	Analysis string

	// Remediation is a raw suggestion; "Step N:" numbering is applied
	// downstream.
	Remediation string
}

// Rule is one condition -> effect entry in a domain table. Eval reports
// whether the rule fired; tables are evaluated in declaration order with no
// short-circuiting.
type Rule struct {
	Name string
	Eval func(p *Profile) (RuleOutcome, bool)
}

// Firing pairs a fired rule's name with its outcome.
type Firing struct {
	Rule    string
	Outcome RuleOutcome
}

// PolicyConfig is an operator-defined policy. Text is always injected into
// remote-source prompts; when Expression (CEL over the normalized profile)
// is set, the policy also contributes a scored outcome when it matches.
type PolicyConfig struct {
	ID     string `json:"id"`
	Domain string `json:"domain"` // a Domain value or "global"
	Text   string `json:"text"`

	Expression  string `json:"expression,omitempty"`
	Delta       int    `json:"delta,omitempty"`
	Factor      string `json:"factor,omitempty"`
	Analysis    string `json:"analysis,omitempty"`
	Remediation string `json:"remediation,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyDomainGlobal marks a policy that applies to every domain.
const PolicyDomainGlobal = "global"
