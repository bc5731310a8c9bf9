package naics

import (
	"slices"
	"strings"

	"github.com/spigell/govcon-matcher/internal/govcon"
)

// Alignment is the outcome of the graded industry-code cascade.
type Alignment struct {
	Score int
	Rule  Rule
}

// Rule names the cascade step that matched.
type Rule string

const (
	RulePrimary            Rule = "primary"
	RulePrimaryInSecondary Rule = "primary_in_secondary"
	RuleOverlap            Rule = "overlap"
	RuleIndustry           Rule = "industry"
	RuleIndustryGroup      Rule = "industry_group"
	RuleSubsector          Rule = "subsector"
	RuleSector             Rule = "sector"
	RuleNone               Rule = "none"
)

type prefixBand struct {
	digits int
	score  int
	rule   Rule
}

var prefixBands = []prefixBand{
	{digits: 5, score: 60, rule: RuleIndustry},
	{digits: 4, score: 45, rule: RuleIndustryGroup},
	{digits: 3, score: 30, rule: RuleSubsector},
	{digits: 2, score: 15, rule: RuleSector},
}

// Align grades how the company's codes relate to an opportunity's codes. The first matching rule wins.
func Align(companyPrimary string, companyOther []string, oppPrimary string, oppSecondary []string) Alignment {
	companyPrimary = strings.TrimSpace(companyPrimary)
	oppPrimary = strings.TrimSpace(oppPrimary)
	companyCodes := govcon.DistinctCodes(append([]string{companyPrimary}, companyOther...))
	secondary := govcon.DistinctCodes(oppSecondary)
	oppCodes := govcon.DistinctCodes(append([]string{oppPrimary}, secondary...))

	if companyPrimary != "" && companyPrimary == oppPrimary {
		return Alignment{Score: 100, Rule: RulePrimary}
	}

	if companyPrimary != "" && slices.Contains(secondary, companyPrimary) {
		return Alignment{Score: 85, Rule: RulePrimaryInSecondary}
	}

	for _, code := range companyCodes {
		if slices.Contains(oppCodes, code) {
			return Alignment{Score: 75, Rule: RuleOverlap}
		}
	}

	for _, band := range prefixBands {
		if sharePrefix(companyCodes, oppCodes, band.digits) {
			return Alignment{Score: band.score, Rule: band.rule}
		}
	}

	return Alignment{Score: 0, Rule: RuleNone}
}

// Prefix returns the first n characters of the code, or the whole code when it is shorter.
func Prefix(code string, n int) string {
	if len(code) <= n {
		return code
	}
	return code[:n]
}

func sharePrefix(a, b []string, digits int) bool {
	for _, x := range a {
		for _, y := range b {
			if Prefix(x, digits) == Prefix(y, digits) {
				return true
			}
		}
	}
	return false
}
