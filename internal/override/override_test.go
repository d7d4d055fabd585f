package override

import (
	"strings"
	"testing"

	"github.com/explainable-finance/verdict/internal/domain"
	"github.com/explainable-finance/verdict/internal/normalize"
)

func TestApprovedJobGetsConcernNarrative(t *testing.T) {
	p := normalize.Profile(domain.DomainJob, domain.Applicant{
		"experience": 6, "education": "Master's", "skills_match": 85,
	})
	reasoning, steps := Synthesize(p, true)

	if !strings.HasPrefix(reasoning, "After manual review by our assessment officer, this application has been declined.") {
		t.Errorf("reasoning lead = %q", reasoning)
	}
	if len(steps) == 0 {
		t.Fatal("expected concern-band steps for a borderline approved candidate")
	}
	// Experience 6 is in [5,8) and skills 85 in [80,90); Master's does not
	// trigger the academic band.
	if len(steps) != 2 {
		t.Errorf("steps = %v, want 2", steps)
	}
	for i, s := range steps {
		if !strings.HasPrefix(s, "Step ") {
			t.Errorf("step[%d] = %q not numbered", i, s)
		}
	}

	// Concern labels must not repeat the approval factor labels verbatim.
	for _, factor := range []string{"Experienced", "Advanced degree", "Strong skills match"} {
		if strings.Contains(reasoning, factor) {
			t.Errorf("reasoning repeats approval factor %q", factor)
		}
	}
}

func TestApprovedWithNoBandsGetsGenericDenial(t *testing.T) {
	// Strong across the board: income above 120k, credit above 700, small
	// loan. No concern band matches.
	p := normalize.Profile(domain.DomainLoan, domain.Applicant{
		"income": 200000, "credit_score": 780, "loan_amount": 50000,
	})
	reasoning, steps := Synthesize(p, true)

	if len(steps) != 0 {
		t.Errorf("steps = %v, want none on the generic path", steps)
	}
	if !strings.Contains(reasoning, "additional verification") {
		t.Errorf("reasoning = %q, want generic verification narrative", reasoning)
	}
	// The generic narrative cites the applicant's own metrics.
	if !strings.Contains(reasoning, "RM200,000") || !strings.Contains(reasoning, "780") {
		t.Errorf("reasoning does not cite applicant metrics: %q", reasoning)
	}
}

func TestLoanConcernBandsInsideApprovalBands(t *testing.T) {
	p := normalize.Profile(domain.DomainLoan, domain.Applicant{
		"income": 48000, "credit_score": 650, "loan_amount": 180000,
	})
	reasoning, steps := Synthesize(p, true)

	if len(steps) != 3 {
		t.Fatalf("steps = %v, want all three loan bands", steps)
	}
	if !strings.Contains(reasoning, "Income near minimum threshold") {
		t.Error("missing income concern")
	}
	if !strings.Contains(reasoning, "Credit profile in cautionary range") {
		t.Error("missing credit concern")
	}
	if !strings.Contains(reasoning, "Elevated borrowing relative to earnings") {
		t.Error("missing borrowing concern")
	}
}

func TestRejectedGetsApprovalNarrativeWithoutSteps(t *testing.T) {
	for _, d := range domain.Domains() {
		p := normalize.Profile(d, domain.Applicant{})
		reasoning, steps := Synthesize(p, false)

		if !strings.HasPrefix(reasoning, "After manual review by our assessment officer, this application has been approved with conditions.") {
			t.Errorf("%s: reasoning lead = %q", d, reasoning)
		}
		if len(steps) != 0 {
			t.Errorf("%s: steps = %v, want none for approval narrative", d, steps)
		}
	}
}

func TestRejectedLoanCitesManualVerification(t *testing.T) {
	p := normalize.Profile(domain.DomainLoan, domain.Applicant{"monthly_income": 2000})
	reasoning, _ := Synthesize(p, false)
	if !strings.Contains(reasoning, "manual verification confirmed adequate repayment capacity") {
		t.Errorf("reasoning = %q", reasoning)
	}
}

func TestSynthesisIgnoresPrimaryCounterfactuals(t *testing.T) {
	// Insurance scenario from the approval path: age 25 triggers the
	// limited-history band even though the primary decision had no
	// counterfactuals at all.
	p := normalize.Profile(domain.DomainInsurance, domain.Applicant{
		"age": 25, "claims": 0, "premium": 100,
	})
	reasoning, steps := Synthesize(p, true)
	if len(steps) == 0 {
		t.Fatal("expected limited-history concern for a 25-year-old applicant")
	}
	if !strings.Contains(reasoning, "Limited actuarial history") {
		t.Errorf("reasoning = %q", reasoning)
	}
}
