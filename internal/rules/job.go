package rules

import (
	"fmt"
	"strings"

	"github.com/explainable-finance/verdict/internal/domain"
)

var jobTable = Table{
	{Name: "job.experience", Eval: jobExperience},
	{Name: "job.education", Eval: jobEducation},
	{Name: "job.skills_match", Eval: jobSkillsMatch},
}

func jobExperience(p *domain.Profile) (domain.RuleOutcome, bool) {
	switch {
	case p.Experience >= 5:
		return domain.RuleOutcome{
			Delta:    25,
			Factor:   "Experienced",
			Analysis: fmt.Sprintf("Your %s years of experience demonstrates proven expertise and industry knowledge that strongly supports your candidacy.", years(p.Experience)),
		}, true
	case p.Experience >= 2:
		return domain.RuleOutcome{
			Delta:    10,
			Factor:   "Some experience",
			Analysis: fmt.Sprintf("With %s years of experience, you meet our minimum requirements, though candidates with 5+ years are typically preferred.", years(p.Experience)),
		}, true
	default:
		return domain.RuleOutcome{
			Delta:       -5,
			Analysis:    fmt.Sprintf("Your experience of %s years is below our preferred threshold. We typically look for candidates with at least 2 years of relevant experience.", years(p.Experience)),
			Remediation: "Gain more industry experience through internships, projects, or entry-level positions before reapplying",
		}, true
	}
}

func jobEducation(p *domain.Profile) (domain.RuleOutcome, bool) {
	edu := p.Education // lower-cased by the normalizer
	switch {
	case strings.Contains(edu, "master") || strings.Contains(edu, "phd"):
		return domain.RuleOutcome{
			Delta:    15,
			Factor:   "Advanced degree",
			Analysis: "Your advanced degree demonstrates significant academic achievement and specialized knowledge in your field.",
		}, true
	case strings.Contains(edu, "bachelor"):
		return domain.RuleOutcome{
			Delta:    10,
			Factor:   "Bachelor's degree",
			Analysis: "Your bachelor's degree meets our educational requirements for this position.",
		}, true
	default:
		return domain.RuleOutcome{
			Analysis: "Consider obtaining relevant certifications or completing a degree program to strengthen your candidacy.",
		}, true
	}
}

func jobSkillsMatch(p *domain.Profile) (domain.RuleOutcome, bool) {
	if p.SkillsMatch >= 80 {
		return domain.RuleOutcome{
			Delta:    20,
			Factor:   "Strong skills match",
			Analysis: fmt.Sprintf("Your skills alignment score of %s%% indicates an excellent match with the job requirements.", years(p.SkillsMatch)),
		}, true
	}
	return domain.RuleOutcome{
		Analysis: fmt.Sprintf("Your skills alignment score of %s%% suggests some gaps with job requirements. Consider developing skills more closely aligned with the role.", years(p.SkillsMatch)),
	}, true
}
