// Package rules holds the per-domain scoring tables and the operator policy
// engine. Each domain is an ordered list of rules evaluated uniformly; rules
// are data, not control flow, so the aggregation and clamping logic lives in
// one place downstream.
package rules

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/explainable-finance/verdict/internal/domain"
)

// Table is an ordered rule list for one domain. Evaluation order is
// declaration order; there is no short-circuiting between rules.
type Table []domain.Rule

// ForDomain returns the rule table for a domain. The returned slice is
// shared and must not be mutated.
func ForDomain(d domain.Domain) Table {
	switch d {
	case domain.DomainLoan:
		return loanTable
	case domain.DomainCredit:
		return creditTable
	case domain.DomainInsurance:
		return insuranceTable
	case domain.DomainJob:
		return jobTable
	}
	return nil
}

// Evaluate runs every rule against the profile and collects the firings in
// declaration order. A rule that does not fire contributes nothing.
func (t Table) Evaluate(p *domain.Profile) []domain.Firing {
	var firings []domain.Firing
	for _, r := range t {
		if out, ok := r.Eval(p); ok {
			firings = append(firings, domain.Firing{Rule: r.Name, Outcome: out})
		}
	}
	return firings
}

// rm formats an amount the way the narratives expect: comma-grouped,
// no decimals.
func rm(v float64) string {
	return humanize.CommafWithDigits(v, 0)
}

func years(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
