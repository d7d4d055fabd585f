// Package domain defines the core interfaces and types for Verdict.
package domain

import "fmt"

// Domain is the application category selecting which rule table applies.
// The set is closed; there is no dynamic registration.
type Domain string

const (
	DomainLoan      Domain = "loan"
	DomainCredit    Domain = "credit"
	DomainInsurance Domain = "insurance"
	DomainJob       Domain = "job"
)

// Domains lists all supported domains in canonical order.
func Domains() []Domain {
	return []Domain{DomainLoan, DomainCredit, DomainInsurance, DomainJob}
}

// ParseDomain validates a domain string.
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case DomainLoan, DomainCredit, DomainInsurance, DomainJob:
		return Domain(s), nil
	}
	return "", fmt.Errorf("unknown domain: %q", s)
}

// Applicant is the raw, unnormalized input describing one case.
// Keys may use arbitrary casing; values are numbers, strings, or
// numeric-looking strings.
type Applicant map[string]any

// Profile is the canonical, typed view of an applicant produced by the
// normalizer. Rules read typed fields only; Profile is never mutated after
// normalization.
type Profile struct {
	Domain Domain

	// Income. AnnualIncome is always the annualized figure; DisplayIncome
	// carries the figure as supplied (monthly or annual) for narratives.
	AnnualIncome    float64
	DisplayIncome   float64
	IncomeIsMonthly bool

	// Loan fields.
	LoanAmount float64

	// CreditScore is 0 when absent (credit domain treats that as "not
	// provided"; the loan domain defaults it to 650 at normalization).
	CreditScore float64

	Age      float64
	Employed bool

	// Insurance fields.
	Claims  int
	Premium float64

	// Job fields.
	Experience  float64
	Education   string
	SkillsMatch float64

	// Fields holds the canonical lower-cased key/value view of the raw
	// applicant, for policy expressions and narratives.
	Fields map[string]any
}
