package rules

import (
	"strings"
	"testing"

	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/normalize"
)

func sumDeltas(firings []domain.Firing) int {
	total := 0
	for _, f := range firings {
		total += f.Outcome.Delta
	}
	return total
}

func factors(firings []domain.Firing) []string {
	var out []string
	for _, f := range firings {
		if f.Outcome.Factor != "" {
			out = append(out, f.Outcome.Factor)
		}
	}
	return out
}

func TestLoanLowIncomePoorCreditHighLTI(t *testing.T) {
	p := normalize.Profile(domain.DomainLoan, domain.Applicant{
		"monthly_income": 2000,
		"credit_score":   550,
		"loan_amount":    200000,
	})
	firings := ForDomain(domain.DomainLoan).Evaluate(p)

	if got := sumDeltas(firings); got != -50 {
		t.Errorf("delta sum = %d, want -50", got)
	}

	want := []string{"Low income", "Poor credit", "High loan-to-income"}
	got := factors(firings)
	if len(got) != len(want) {
		t.Fatalf("factors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("factor[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	var remediations []string
	for _, f := range firings {
		if f.Outcome.Remediation != "" {
			remediations = append(remediations, f.Outcome.Remediation)
		}
	}
	if len(remediations) != 3 {
		t.Fatalf("remediations = %d, want 3", len(remediations))
	}
	if !strings.Contains(remediations[0], "monthly income to at least RM3,000") {
		t.Errorf("income remediation = %q", remediations[0])
	}
	if !strings.Contains(remediations[1], "credit score above 650") {
		t.Errorf("credit remediation = %q", remediations[1])
	}
}

func TestLoanNoVerifiableIncome(t *testing.T) {
	p := normalize.Profile(domain.DomainLoan, domain.Applicant{})
	firings := ForDomain(domain.DomainLoan).Evaluate(p)

	// Low income -15, default credit 650 fair +10, no income -20.
	if got := sumDeltas(firings); got != -25 {
		t.Errorf("delta sum = %d, want -25", got)
	}

	found := false
	for _, f := range firings {
		if f.Outcome.Factor == "No verifiable income" {
			found = true
		}
	}
	if !found {
		t.Error("expected no-verifiable-income firing")
	}
}

func TestLoanIncomeTiers(t *testing.T) {
	cases := []struct {
		income float64
		delta  int
		factor string
	}{
		{150000, 20, "High income"},
		{120000, 20, "High income"},
		{80000, 15, "Good income"},
		{60000, 15, "Good income"},
		{40000, 5, "Moderate income"},
		{36000, 5, "Moderate income"},
		{24000, -15, "Low income"},
	}
	for _, tc := range cases {
		p := normalize.Profile(domain.DomainLoan, domain.Applicant{"income": tc.income})
		out, ok := loanIncome(p)
		if !ok {
			t.Fatalf("income %v: rule did not fire", tc.income)
		}
		if out.Delta != tc.delta || out.Factor != tc.factor {
			t.Errorf("income %v: got (%d, %q), want (%d, %q)", tc.income, out.Delta, out.Factor, tc.delta, tc.factor)
		}
	}
}

func TestCreditIncomeBoundariesAreStrict(t *testing.T) {
	// Exactly 60,000 and 120,000 fall into the lower branches.
	p := normalize.Profile(domain.DomainCredit, domain.Applicant{"income": 60000})
	out, _ := creditIncome(p)
	if out.Delta != -10 || out.Factor != "" {
		t.Errorf("income 60000: got (%d, %q), want (-10, \"\")", out.Delta, out.Factor)
	}

	p = normalize.Profile(domain.DomainCredit, domain.Applicant{"income": 120000})
	out, _ = creditIncome(p)
	if out.Delta != 15 || out.Factor != "Good income" {
		t.Errorf("income 120000: got (%d, %q), want (15, \"Good income\")", out.Delta, out.Factor)
	}
}

func TestCreditScoreSkippedWhenAbsent(t *testing.T) {
	p := normalize.Profile(domain.DomainCredit, domain.Applicant{})
	if _, ok := creditScore(p); ok {
		t.Error("credit score rule fired with no score provided")
	}
}

func TestCreditYoungAgeIsAdviceOnly(t *testing.T) {
	p := normalize.Profile(domain.DomainCredit, domain.Applicant{"age": 22})
	out, ok := creditAge(p)
	if !ok {
		t.Fatal("age rule did not fire")
	}
	if out.Delta != 0 || out.Factor != "" {
		t.Errorf("got (%d, %q), want no delta and no factor", out.Delta, out.Factor)
	}
	if out.Remediation == "" {
		t.Error("expected credit-history remediation")
	}
}

func TestInsuranceCleanYoungApplicant(t *testing.T) {
	p := normalize.Profile(domain.DomainInsurance, domain.Applicant{
		"age": 25, "claims": 0, "premium": 100,
	})
	firings := ForDomain(domain.DomainInsurance).Evaluate(p)
	if got := sumDeltas(firings); got != 40 {
		t.Errorf("delta sum = %d, want 40", got)
	}
}

func TestInsuranceHighPremiumIsAdviceOnly(t *testing.T) {
	p := normalize.Profile(domain.DomainInsurance, domain.Applicant{"premium": 600})
	out, ok := insurancePremium(p)
	if !ok {
		t.Fatal("premium rule did not fire")
	}
	if out.Delta != 0 {
		t.Errorf("delta = %d, want 0", out.Delta)
	}
	if out.Remediation == "" {
		t.Error("expected deductible remediation")
	}
}

func TestJobStrongCandidate(t *testing.T) {
	p := normalize.Profile(domain.DomainJob, domain.Applicant{
		"experience": 6, "education": "Master's", "skills_match": 85,
	})
	firings := ForDomain(domain.DomainJob).Evaluate(p)
	if got := sumDeltas(firings); got != 60 {
		t.Errorf("delta sum = %d, want 60", got)
	}
	want := []string{"Experienced", "Advanced degree", "Strong skills match"}
	got := factors(firings)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("factor[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJobEducationMatching(t *testing.T) {
	cases := []struct {
		education string
		delta     int
	}{
		{"PhD in Physics", 15},
		{"Master of Science", 15},
		{"Bachelor of Arts", 10},
		{"High School", 0},
		{"", 0},
	}
	for _, tc := range cases {
		p := normalize.Profile(domain.DomainJob, domain.Applicant{"education": tc.education})
		out, _ := jobEducation(p)
		if out.Delta != tc.delta {
			t.Errorf("education %q: delta = %d, want %d", tc.education, out.Delta, tc.delta)
		}
	}
}
