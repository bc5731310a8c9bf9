package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/setaside"
)

const (
	NAICSWeight       = 0.40
	SetAsideFitWeight = 0.30
	SizeWeight        = 0.20
	CapabilityWeight  = 0.10

	smallTeamHeadcount   = 50
	smallTeamScoreCap    = 70
	professionalServices = "54"
	secondaryBoost       = 15
	secondaryBoostShare  = 0.5
)

// FitScore is the explainable entity fit of a company for an opportunity. Sub-scores are in [0,100].
type FitScore struct {
	NAICSScore       int      `json:"naicsScore"`
	SetAsideScore    int      `json:"setAsideScore"`
	SizeScore        int      `json:"sizeScore"`
	CapabilityScore  int      `json:"capabilityScore"`
	Overall          int      `json:"overallScore"`
	Eligible         bool     `json:"eligible"`
	SetAsideRequired bool     `json:"setAsideRequired"`
	Reasoning        []Reason `json:"reasoning"`
}

var alignmentReasons = map[naics.Rule]Reason{
	naics.RulePrimary:            {Kind: ReasonPass, Text: "Primary NAICS match"},
	naics.RulePrimaryInSecondary: {Kind: ReasonPass, Text: "Primary NAICS in secondary"},
	naics.RuleOverlap:            {Kind: ReasonInfo, Text: "Secondary NAICS match"},
	naics.RuleIndustry:           {Kind: ReasonInfo, Text: "5-digit industry match"},
	naics.RuleIndustryGroup:      {Kind: ReasonWeak, Text: "4-digit group match"},
	naics.RuleSubsector:          {Kind: ReasonWeak, Text: "3-digit subsector"},
	naics.RuleSector:             {Kind: ReasonWeak, Text: "2-digit sector"},
	naics.RuleNone:               {Kind: ReasonFail, Text: "No NAICS match"},
}

// ScoreFit evaluates industry alignment, set-aside, financial capacity and capability depth, in that order.
// An unmet set-aside marks the result ineligible without forcing the overall score to zero.
func ScoreFit(company govcon.Company, opp govcon.Opportunity) FitScore {
	var reasons []Reason
	add := func(kind ReasonKind, text string) {
		reasons = append(reasons, Reason{Kind: kind, Text: text})
	}

	alignment := naics.Align(company.PrimaryNAICS, company.OtherNAICS, opp.NAICSCode, opp.SecondaryNAICS)
	reasons = append(reasons, alignmentReasons[alignment.Rule])

	code := strings.TrimSpace(opp.SetAsideCode)
	required := code != ""
	eligible := true
	setAsideScore := 100
	switch {
	case !required:
		add(ReasonInfo, "Full & open (no set-aside)")
	case setaside.Satisfies(code, company.SBACertifications):
		add(ReasonPass, fmt.Sprintf("Meets %s set-aside", code))
	default:
		setAsideScore = 0
		eligible = false
		add(ReasonFail, fmt.Sprintf("Requires %s cert", code))
	}

	sizeScore := 100
	if opp.EstimatedValue > 0 {
		ratio := company.AnnualRevenue / opp.EstimatedValue
		switch {
		case ratio >= 3:
			add(ReasonPass, "Strong financial capacity")
		case ratio >= 1.5:
			sizeScore = 80
			add(ReasonInfo, "Adequate financial capacity")
		case ratio >= 0.5:
			sizeScore = 60
			add(ReasonJV, "Moderate capacity (JV candidate)")
		default:
			sizeScore = 30
			add(ReasonJV, "Limited capacity (JV candidate)")
		}
	}

	if company.EmployeeCount < smallTeamHeadcount &&
		strings.HasPrefix(strings.TrimSpace(opp.NAICSCode), professionalServices) {
		sizeScore = min(sizeScore, smallTeamScoreCap)
		add(ReasonWarn, "Small team (delivery scale risk)")
	}

	companyCodes := company.NAICSCodes()
	capabilityScore := 40
	switch n := len(companyCodes); {
	case n >= 4:
		capabilityScore = 100
		add(ReasonPass, "Diverse capability portfolio")
	case n == 3:
		capabilityScore = 80
	case n == 2:
		capabilityScore = 60
	default:
		add(ReasonWeak, "Limited NAICS portfolio")
	}

	secondary := govcon.DistinctCodes(opp.SecondaryNAICS)
	if len(secondary) > 0 {
		covered := naics.Coverage(naics.Filled(secondary, companyCodes), secondary)
		if covered >= secondaryBoostShare {
			capabilityScore = min(100, capabilityScore+secondaryBoost)
			add(ReasonPass, "Secondary req. coverage ≥50%")
		}
	}

	overall := math.Round(
		float64(alignment.Score)*NAICSWeight +
			float64(setAsideScore)*SetAsideFitWeight +
			float64(sizeScore)*SizeWeight +
			float64(capabilityScore)*CapabilityWeight,
	)

	return FitScore{
		NAICSScore:       alignment.Score,
		SetAsideScore:    setAsideScore,
		SizeScore:        sizeScore,
		CapabilityScore:  capabilityScore,
		Overall:          int(overall),
		Eligible:         eligible,
		SetAsideRequired: required,
		Reasoning:        reasons,
	}
}
