package rules

import (
	"fmt"

	"github.com/explainable-finance/verdict/internal/domain"
)

// Income thresholds per BNM prudent lending guidelines, expressed annually.
const (
	loanMinAnnualIncome       = 36000  // RM3,000/month
	loanGoodAnnualIncome      = 60000  // RM5,000/month
	loanExcellentAnnualIncome = 120000 // RM10,000/month

	// Max loan-to-income multiple for personal loans.
	loanMaxLTIRatio = 5
)

var loanTable = Table{
	{Name: "loan.income", Eval: loanIncome},
	{Name: "loan.credit_score", Eval: loanCreditScore},
	{Name: "loan.loan_to_income", Eval: loanToIncome},
}

func loanIncome(p *domain.Profile) (domain.RuleOutcome, bool) {
	period := "annual"
	if p.IncomeIsMonthly {
		period = "monthly"
	}
	stated := fmt.Sprintf("Your %s income of RM%s (RM%s/year)", period, rm(p.DisplayIncome), rm(p.AnnualIncome))

	switch {
	case p.AnnualIncome >= loanExcellentAnnualIncome:
		return domain.RuleOutcome{
			Delta:    20,
			Factor:   "High income",
			Analysis: stated + " demonstrates strong financial capacity, placing you in our preferred income bracket for loan applicants.",
		}, true
	case p.AnnualIncome >= loanGoodAnnualIncome:
		return domain.RuleOutcome{
			Delta:    15,
			Factor:   "Good income",
			Analysis: stated + " shows solid financial standing and meets our standard requirements.",
		}, true
	case p.AnnualIncome >= loanMinAnnualIncome:
		return domain.RuleOutcome{
			Delta:    5,
			Factor:   "Moderate income",
			Analysis: stated + " meets the minimum requirement per Bank Negara Malaysia (BNM) guidelines, though higher income would improve your approval chances.",
		}, true
	default:
		minMonthly := rm(loanMinAnnualIncome / 12)
		return domain.RuleOutcome{
			Delta:       -15,
			Factor:      "Low income",
			Analysis:    stated + fmt.Sprintf(" is below the minimum threshold of RM%s/month as per BNM prudent lending guidelines. This significantly impacts your debt service ratio (DSR) and loan repayment capacity.", minMonthly),
			Remediation: fmt.Sprintf("Increase your monthly income to at least RM%s through additional employment, side income, or by adding a co-applicant with higher income", minMonthly),
		}, true
	}
}

func loanCreditScore(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.CreditScore >= 700:
		return domain.RuleOutcome{
			Delta:    25,
			Factor:   "Excellent credit",
			Analysis: fmt.Sprintf("Your credit score of %s is excellent, indicating a strong history of responsible credit management and timely payments.", years(p.CreditScore)),
		}, true
	case p.CreditScore >= 600:
		return domain.RuleOutcome{
			Delta:    10,
			Factor:   "Fair credit",
			Analysis: fmt.Sprintf("Your credit score of %s is within acceptable range but not optimal. A score above 700 would qualify you for better interest rates.", years(p.CreditScore)),
		}, true
	default:
		return domain.RuleOutcome{
			Delta:       -20,
			Factor:      "Poor credit",
			Analysis:    fmt.Sprintf("Your credit score of %s is below our minimum threshold of 600. This indicates potential issues with credit history such as missed payments, high utilization, or recent derogatory marks.", years(p.CreditScore)),
			Remediation: "Improve your credit score above 650 by paying down existing debts, making all payments on time, and disputing any errors on your credit report",
		}, true
	}
}

// loanToIncome penalizes requests beyond the LTI multiple, or the complete
// absence of verifiable income. Within policy with verified income, nothing
// fires.
func loanToIncome(p *domain.Profile) (domain.RuleOutcome, bool) {
	if p.AnnualIncome > 0 && p.LoanAmount > p.AnnualIncome*loanMaxLTIRatio {
		ratio := p.LoanAmount / p.AnnualIncome
		return domain.RuleOutcome{
			Delta:       -15,
			Factor:      "High loan-to-income",
			Analysis:    fmt.Sprintf("The requested loan amount of RM%s represents a loan-to-income ratio of %.1fx your annual income (RM%s), which exceeds BNM's prudent lending threshold of %dx annual income.", rm(p.LoanAmount), ratio, rm(p.AnnualIncome), loanMaxLTIRatio),
			Remediation: fmt.Sprintf("Request a smaller loan amount (max RM%s based on your income) or increase your income before reapplying", rm(p.AnnualIncome*loanMaxLTIRatio)),
		}, true
	}
	if p.AnnualIncome == 0 {
		return domain.RuleOutcome{
			Delta:       -20,
			Factor:      "No verifiable income",
			Analysis:    "No verifiable income was provided, making it impossible to assess your debt service capacity.",
			Remediation: "Provide proof of income such as payslips, EPF statements, or income tax returns",
		}, true
	}
	return domain.RuleOutcome{}, false
}
