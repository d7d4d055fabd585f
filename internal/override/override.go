// Package override pre-computes the narrative for the opposite of the
// automated verdict, so a human reviewer's override never waits on a live
// explanation call.
//
// The synthesizer never reads the primary decision's counterfactuals; both
// branches recompute independently from the same normalized profile.
package override

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/explainable-finance/verdict/internal/decision"
	"github.com/explainable-finance/verdict/internal/domain"
)

// Synthesize returns the reasoning and remediation steps a reviewer would
// cite when flipping the automated verdict. For an approved case it scans
// the profile for borderline concern bands; for a rejected case it produces
// the per-domain approved-with-conditions narrative with no steps.
func Synthesize(p *domain.Profile, approved bool) (string, []string) {
	if approved {
		return synthesizeDenial(p)
	}
	return synthesizeApproval(p), nil
}

// concernBand is a narrower window strictly inside an approval band: values
// that passed the rule table but sit close enough to its edge that a
// reviewer could defensibly cite them when declining.
type concernBand struct {
	match     func(p *domain.Profile) bool
	label     string
	narrative func(p *domain.Profile) string
	step      string
}

func synthesizeDenial(p *domain.Profile) (string, []string) {
	sentences := []string{
		"After manual review by our assessment officer, this application has been declined.",
	}

	var steps []string
	for _, band := range concernBands(p.Domain) {
		if !band.match(p) {
			continue
		}
		sentences = append(sentences, fmt.Sprintf("%s: %s", band.label, band.narrative(p)))
		steps = append(steps, band.step)
	}

	if len(steps) == 0 {
		sentences = append(sentences, genericDenial(p))
		return join(sentences), nil
	}

	return join(sentences), decision.Number(steps)
}

func concernBands(d domain.Domain) []concernBand {
	switch d {
	case domain.DomainLoan:
		return loanConcernBands
	case domain.DomainCredit:
		return creditConcernBands
	case domain.DomainInsurance:
		return insuranceConcernBands
	case domain.DomainJob:
		return jobConcernBands
	}
	return nil
}

var loanConcernBands = []concernBand{
	{
		match: func(p *domain.Profile) bool { return p.AnnualIncome >= 36000 && p.AnnualIncome < 60000 },
		label: "Income near minimum threshold",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("The stated annual income of RM%s clears the BNM minimum but leaves a thin buffer against existing commitments, and sustained repayment capacity could not be independently confirmed.", rm(p.AnnualIncome))
		},
		step: "Provide six months of bank statements demonstrating consistent savings after existing commitments",
	},
	{
		match: func(p *domain.Profile) bool { return p.CreditScore >= 600 && p.CreditScore < 700 },
		label: "Credit profile in cautionary range",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("A credit score of %.0f sits in the band where recent repayment behavior carries extra weight, and the file did not contain enough recent history to resolve that uncertainty.", p.CreditScore)
		},
		step: "Supply a full credit bureau report covering the last 12 months of repayment history",
	},
	{
		match: func(p *domain.Profile) bool {
			return p.AnnualIncome > 0 && p.LoanAmount > p.AnnualIncome*3 && p.LoanAmount <= p.AnnualIncome*5
		},
		label: "Elevated borrowing relative to earnings",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("The requested RM%s amounts to %.1fx the declared annual income, within policy but above our internal comfort line once typical household obligations are factored in.", rm(p.LoanAmount), p.LoanAmount/p.AnnualIncome)
		},
		step: "Submit a statement of existing debt obligations so total debt service can be assessed",
	},
}

var creditConcernBands = []concernBand{
	{
		match: func(p *domain.Profile) bool { return p.AnnualIncome > 60000 && p.AnnualIncome <= 90000 },
		label: "Income adequacy under review",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("An annual income of RM%s qualifies for the product, yet sits below the level at which limits can be extended without supplementary income verification.", rm(p.AnnualIncome))
		},
		step: "Provide recent payslips or an employer letter confirming income stability",
	},
	{
		match: func(p *domain.Profile) bool { return p.CreditScore >= 600 && p.CreditScore < 700 },
		label: "Credit history requires seasoning",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("A score of %.0f reflects an acceptable but unseasoned record; facilities at this level typically warrant a longer run of clean repayments before unsecured credit is extended.", p.CreditScore)
		},
		step: "Demonstrate twelve further months of on-time payments across existing facilities",
	},
	{
		match: func(p *domain.Profile) bool { return p.Age >= 25 && p.Age < 30 },
		label: "Early-career applicant",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("At %.0f years of age the applicant is within the preferred demographic but has had limited time to accumulate the repayment track record our unsecured products assume.", p.Age)
		},
		step: "Consider a secured card or a lower initial limit to build facility history",
	},
}

var insuranceConcernBands = []concernBand{
	{
		match: func(p *domain.Profile) bool { return p.Age >= 25 && p.Age < 30 },
		label: "Limited actuarial history",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("At %.0f years old the applicant's own claims and health history is too short to validate the favorable class rating, so underwriting relied heavily on population-level assumptions.", p.Age)
		},
		step: "Complete a full health declaration and, where applicable, a medical examination",
	},
	{
		match: func(p *domain.Profile) bool { return p.Claims >= 1 && p.Claims <= 2 },
		label: "Recent claims activity",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("The record of %d prior claim(s) is inside acceptance limits, but the pattern warrants verification that the underlying causes have been resolved.", p.Claims)
		},
		step: "Provide documentation of the circumstances and resolution of each prior claim",
	},
	{
		match: func(p *domain.Profile) bool { return p.Premium > 300 },
		label: "Premium commitment sustainability",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("A monthly premium of RM%.0f is a material recurring commitment, and affordability over the policy term was not evidenced in the application.", p.Premium)
		},
		step: "Submit proof of income supporting the premium commitment over the full policy term",
	},
}

var jobConcernBands = []concernBand{
	{
		match: func(p *domain.Profile) bool { return p.Experience >= 5 && p.Experience < 8 },
		label: "Depth of senior exposure",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("While %.0f years of experience satisfies the requirement, the role benefits from longer exposure to ownership of end-to-end delivery, which the panel could not fully establish.", p.Experience)
		},
		step: "Provide references from roles where you held end-to-end delivery ownership",
	},
	{
		match: func(p *domain.Profile) bool { return p.SkillsMatch >= 80 && p.SkillsMatch < 90 },
		label: "Residual capability gaps",
		narrative: func(p *domain.Profile) string {
			return fmt.Sprintf("An alignment of %.0f%% leaves specific competency areas uncovered, and the panel judged those areas central to near-term team priorities.", p.SkillsMatch)
		},
		step: "Complete targeted certification or portfolio work in the uncovered competency areas",
	},
	{
		match: func(p *domain.Profile) bool {
			return strings.Contains(p.Education, "bachelor") &&
				!strings.Contains(p.Education, "master") &&
				!strings.Contains(p.Education, "phd")
		},
		label: "Academic depth for the role tier",
		narrative: func(p *domain.Profile) string {
			return "The bachelor's qualification meets the stated requirement, though comparable candidates for this tier typically present postgraduate specialization."
		},
		step: "Consider postgraduate study or equivalent advanced professional certification",
	},
}

// genericDenial covers approved cases with no borderline values: the
// narrative cites the applicant's own approved metrics and defers to
// verification.
func genericDenial(p *domain.Profile) string {
	metrics := approvedMetrics(p)
	return fmt.Sprintf("Although the automated assessment found no borderline indicators (%s), additional verification of the underlying documentation is required before the decision can stand, and it could not be completed satisfactorily.", metrics)
}

func approvedMetrics(p *domain.Profile) string {
	switch p.Domain {
	case domain.DomainLoan:
		return fmt.Sprintf("annual income RM%s, credit score %.0f, requested amount RM%s", rm(p.AnnualIncome), p.CreditScore, rm(p.LoanAmount))
	case domain.DomainCredit:
		return fmt.Sprintf("annual income RM%s, age %.0f", rm(p.AnnualIncome), p.Age)
	case domain.DomainInsurance:
		return fmt.Sprintf("age %.0f, %d prior claims, premium RM%.0f/month", p.Age, p.Claims, p.Premium)
	case domain.DomainJob:
		return fmt.Sprintf("%.0f years of experience, %.0f%% skills alignment", p.Experience, p.SkillsMatch)
	}
	return "the metrics on file"
}

// synthesizeApproval produces the approved-with-conditions narrative used
// when a reviewer overturns a rejection. Approval narratives carry
// conditions, not action items, so no steps are attached.
func synthesizeApproval(p *domain.Profile) string {
	sentences := []string{
		"After manual review by our assessment officer, this application has been approved with conditions.",
	}
	switch p.Domain {
	case domain.DomainLoan:
		sentences = append(sentences,
			"Despite automated screening concerns, manual verification confirmed adequate repayment capacity per BNM guidelines.",
			"Additional factors such as employment stability, savings history, or collateral support this approval.")
	case domain.DomainCredit:
		sentences = append(sentences,
			"Manual review of credit history and repayment patterns supports approval with monitored credit limit.",
			"Employment verification and income documentation sufficiently mitigate identified risks.")
	case domain.DomainInsurance:
		sentences = append(sentences,
			"Underwriting review approved coverage with standard terms after verifying health declarations.",
			"Risk factors identified are within acceptable limits for the selected coverage tier.")
	case domain.DomainJob:
		sentences = append(sentences,
			"Interview performance and references demonstrated potential that outweighs experience gaps.",
			"Candidate shows strong learning ability and cultural fit that supports hiring decision.")
	}
	return join(sentences)
}

func join(sentences []string) string {
	return strings.Join(sentences, " ")
}

func rm(v float64) string {
	return humanize.CommafWithDigits(v, 0)
}
