package rules

import (
	"fmt"

	"github.com/explainable-finance/verdict/internal/domain"
)

var creditTable = Table{
	{Name: "credit.income", Eval: creditIncome},
	{Name: "credit.employment", Eval: creditEmployment},
	{Name: "credit.credit_score", Eval: creditScore},
	{Name: "credit.age", Eval: creditAge},
}

func creditIncome(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.AnnualIncome > 120000:
		return domain.RuleOutcome{
			Delta:    25,
			Factor:   "High income",
			Analysis: fmt.Sprintf("Your annual income of RM%s significantly exceeds our requirements, demonstrating excellent financial stability and repayment capacity.", rm(p.AnnualIncome)),
		}, true
	case p.AnnualIncome > 60000:
		return domain.RuleOutcome{
			Delta:    15,
			Factor:   "Good income",
			Analysis: fmt.Sprintf("Your income of RM%s/year meets our credit requirements and indicates stable financial standing.", rm(p.AnnualIncome)),
		}, true
	default:
		// Penalty without a factor label: low income shapes the narrative
		// but is not surfaced as a critical factor here.
		return domain.RuleOutcome{
			Delta:       -10,
			Analysis:    fmt.Sprintf("Your reported income of RM%s/year is below our preferred threshold for credit approval. Higher income improves credit limits and approval odds.", rm(p.AnnualIncome)),
			Remediation: "Increase your annual income above RM60,000 to qualify for better credit terms and higher approval probability",
		}, true
	}
}

func creditEmployment(p *domain.Profile) (domain.RuleOutcome, bool) {
	if p.Employed {
		return domain.RuleOutcome{
			Delta:    15,
			Factor:   "Employed",
			Analysis: "Your current employment status provides assurance of stable income flow for meeting credit obligations.",
		}, true
	}
	return domain.RuleOutcome{
		Delta:       -20,
		Factor:      "Unemployed",
		Analysis:    "Being currently unemployed creates uncertainty about your ability to make regular credit payments. Employment stability is a key factor in credit decisions.",
		Remediation: "Secure stable employment with verifiable income before reapplying for credit",
	}, true
}

// creditScore only fires when a score was actually provided.
func creditScore(p *domain.Profile) (domain.RuleOutcome, bool) {
	if p.CreditScore <= 0 {
		return domain.RuleOutcome{}, false
	}
	switch {
	case p.CreditScore >= 700:
		return domain.RuleOutcome{
			Delta:    20,
			Factor:   "Excellent credit score",
			Analysis: fmt.Sprintf("Your credit score of %s demonstrates an excellent credit history and responsible financial behavior.", years(p.CreditScore)),
		}, true
	case p.CreditScore >= 600:
		return domain.RuleOutcome{
			Delta:    10,
			Factor:   "Good credit score",
			Analysis: fmt.Sprintf("Your credit score of %s is within acceptable range for credit approval.", years(p.CreditScore)),
		}, true
	default:
		return domain.RuleOutcome{
			Delta:       -15,
			Factor:      "Low credit score",
			Analysis:    fmt.Sprintf("Your credit score of %s is below our preferred threshold of 600, indicating potential credit history issues.", years(p.CreditScore)),
			Remediation: "Improve your credit score above 650 by paying down existing debts, making all payments on time, and disputing any errors on your credit report",
		}, true
	}
}

// creditAge rewards the prime 25-60 band; under-25 applicants get guidance
// with no score movement, and over-60 is silent.
func creditAge(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.Age >= 25 && p.Age <= 60:
		return domain.RuleOutcome{
			Delta:    10,
			Factor:   "Prime age",
			Analysis: fmt.Sprintf("Your age of %s years falls within our preferred demographic, typically associated with stable income and responsible credit behavior.", years(p.Age)),
		}, true
	case p.Age < 25:
		return domain.RuleOutcome{
			Analysis:    fmt.Sprintf("At %s years old, you have limited credit history which may affect approval. Building credit over time will improve future applications.", years(p.Age)),
			Remediation: "Build a longer credit history by responsibly using a secured credit card or becoming an authorized user on an established account",
		}, true
	}
	return domain.RuleOutcome{}, false
}
