// Package normalize turns raw applicant maps into typed profiles.
//
// Raw applicants arrive with arbitrary key casing and values that may be
// numbers, numeric strings, or booleans. Normalization resolves each domain's
// field aliases in a fixed priority order, applies defaults, and produces a
// canonical Profile so the rule tables never touch the raw map.
package normalize

import (
	"strconv"
	"strings"

	"github.com/explainable-finance/verdict/internal/domain"
)

// Canonical returns a lower-cased-key view of the applicant. Values are
// passed through untouched; coercion happens at field resolution.
func Canonical(a domain.Applicant) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Profile resolves the applicant into the typed view for the given domain.
// It never fails: unresolvable or missing fields fall back to the domain's
// defaults, so an empty applicant still yields a usable profile.
func Profile(d domain.Domain, a domain.Applicant) *domain.Profile {
	fields := Canonical(a)
	p := &domain.Profile{Domain: d, Fields: fields}

	switch d {
	case domain.DomainLoan:
		resolveIncome(p, fields, "income", "annual_income", "applicantincome")
		p.LoanAmount = numberOr(fields, 10000, "loan_amount", "loanamount", "amount")
		p.CreditScore = numberOr(fields, 650, "credit_score", "cibil_score", "cibil score")

	case domain.DomainCredit:
		resolveIncome(p, fields, "income", "annual_income", "amt_income_total")
		p.CreditScore = number(fields, 0, "credit_score", "cibil_score", "cibil score")
		p.Age = numberOr(fields, 30, "age", "days_birth")
		if p.Age < 0 {
			// Some credit datasets encode age as negative days since birth.
			p.Age = -p.Age / 365
		}
		p.Employed = resolveEmployed(fields)

	case domain.DomainInsurance:
		p.Age = numberOr(fields, 35, "age", "customer_age")
		p.Claims = int(number(fields, 0, "claims", "num_claims", "past_claims"))
		p.Premium = numberOr(fields, 100, "premium", "monthly_premium")

	case domain.DomainJob:
		p.Experience = number(fields, 0, "experience", "years_experience", "totalyearsexperience")
		p.Education = strings.ToLower(text(fields, "education", "degree"))
		p.SkillsMatch = numberOr(fields, 70, "skills_match", "skill_score")
	}

	return p
}

// resolveIncome fills the income fields shared by loan and credit. A
// positive monthly figure takes priority and is annualized; otherwise the
// annual aliases are tried. A zero annual income is preserved so the loan
// table can flag unverifiable income.
func resolveIncome(p *domain.Profile, fields map[string]any, annualAliases ...string) {
	monthly := number(fields, 0, "monthly_income", "monthlyincome")
	if monthly > 0 {
		p.AnnualIncome = monthly * 12
		p.DisplayIncome = monthly
		p.IncomeIsMonthly = true
		return
	}
	p.AnnualIncome = number(fields, 0, annualAliases...)
	p.DisplayIncome = p.AnnualIncome
}

// resolveEmployed coerces the employment flag. Booleans are taken as-is,
// numbers are truthy when non-zero, and strings are employed unless they
// spell "Unemployed". Absent both the flag and an income-type hint, the
// applicant is assumed employed.
func resolveEmployed(fields map[string]any) bool {
	if v, ok := fields["employed"]; ok {
		switch t := v.(type) {
		case bool:
			return t
		case string:
			return !strings.EqualFold(strings.TrimSpace(t), "unemployed")
		default:
			return coerce(v) != 0
		}
	}
	if v, ok := fields["name_income_type"]; ok {
		s, _ := v.(string)
		return !strings.EqualFold(strings.TrimSpace(s), "unemployed")
	}
	return true
}

// number resolves the first present alias to a float. Missing keys and
// unparseable values yield def; a present zero stays zero.
func number(fields map[string]any, def float64, aliases ...string) float64 {
	for _, k := range aliases {
		if v, ok := fields[k]; ok {
			return coerce(v)
		}
	}
	return def
}

// numberOr is number with zero-as-missing semantics: a resolved zero also
// falls back to def. Used where the source treated empty and absent alike.
func numberOr(fields map[string]any, def float64, aliases ...string) float64 {
	for _, k := range aliases {
		if v, ok := fields[k]; ok {
			if n := coerce(v); n != 0 {
				return n
			}
			return def
		}
	}
	return def
}

func text(fields map[string]any, aliases ...string) string {
	for _, k := range aliases {
		if v, ok := fields[k]; ok {
			switch t := v.(type) {
			case string:
				return t
			case float64:
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		}
	}
	return ""
}

// coerce converts a scalar to float64, returning 0 for anything it cannot
// interpret as a number.
func coerce(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
