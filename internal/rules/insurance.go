package rules

import (
	"fmt"

	"github.com/explainable-finance/verdict/internal/domain"
)

var insuranceTable = Table{
	{Name: "insurance.age", Eval: insuranceAge},
	{Name: "insurance.claims", Eval: insuranceClaims},
	{Name: "insurance.premium", Eval: insurancePremium},
}

func insuranceAge(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.Age < 30:
		return domain.RuleOutcome{
			Delta:    15,
			Factor:   "Young age",
			Analysis: fmt.Sprintf("At %s years old, you fall into a lower-risk age bracket with statistically fewer claims and health issues.", years(p.Age)),
		}, true
	case p.Age > 60:
		return domain.RuleOutcome{
			Delta:       -10,
			Factor:      "Higher age risk",
			Analysis:    fmt.Sprintf("Your age of %s years places you in a higher actuarial risk category, which affects premium calculations and coverage eligibility.", years(p.Age)),
			Remediation: "Consider applying for senior-specific insurance plans designed for your age bracket with appropriate coverage options",
		}, true
	default:
		return domain.RuleOutcome{
			Analysis: fmt.Sprintf("Your age of %s is within standard risk parameters for insurance coverage.", years(p.Age)),
		}, true
	}
}

func insuranceClaims(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.Claims == 0:
		return domain.RuleOutcome{
			Delta:    25,
			Factor:   "No prior claims",
			Analysis: "Your clean claims history demonstrates responsible usage of insurance and low risk profile, qualifying you for preferred rates.",
		}, true
	case p.Claims <= 2:
		return domain.RuleOutcome{
			Delta:       5,
			Factor:      "Few claims",
			Analysis:    fmt.Sprintf("Your claims history shows %d previous claim(s), which is within acceptable limits but may affect your premium rates.", p.Claims),
			Remediation: "Maintain a claim-free record going forward to gradually improve your risk profile and premium rates",
		}, true
	default:
		return domain.RuleOutcome{
			Delta:       -20,
			Factor:      "Multiple claims",
			Analysis:    fmt.Sprintf("Your history of %d claims indicates higher-than-average risk. Multiple claims suggest patterns that insurers consider when assessing coverage and pricing.", p.Claims),
			Remediation: "Maintain a claim-free record for at least 2 years to demonstrate lower risk and qualify for better rates",
		}, true
	}
}

// insurancePremium is informational only: high premiums get a cost-reduction
// suggestion with no score movement.
func insurancePremium(p *domain.Profile) (domain.RuleOutcome, bool) {
	if p.Premium > 500 {
		return domain.RuleOutcome{
			Analysis:    fmt.Sprintf("Your current premium of RM%.0f/month reflects your risk profile and coverage level.", p.Premium),
			Remediation: "Consider adjusting your coverage level or increasing deductibles to reduce monthly premiums",
		}, true
	}
	return domain.RuleOutcome{}, false
}
