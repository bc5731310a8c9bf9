package scoring

import (
	"math"
	"strings"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/setaside"
)

const (
	CoverageWeight = 0.50
	SemanticWeight = 0.25
	SetAsideWeight = 0.25

	// OverlapPenalty multiplies the score of a candidate that competes on the lead's primary code.
	OverlapPenalty = 0.70
)

// NoDistance marks a candidate the vector index returned without a distance.
var NoDistance = math.NaN()

// PartnerInput carries everything the joint-venture policy looks at.
type PartnerInput struct {
	Lead        govcon.Company
	Opportunity govcon.Opportunity
	Candidate   govcon.Company
	// Distance is the cosine distance between the candidate and the opportunity, in [0,1].
	Distance float64
}

// PartnerBreakdown exposes the weighted components of a partner score.
type PartnerBreakdown struct {
	Semantic       float64 `json:"semantic"`
	Coverage       float64 `json:"coverage"`
	SetAside       float64 `json:"setAside"`
	OverlapPenalty float64 `json:"overlapPenalty"`
}

// PartnerScore is the joint-venture fit of a candidate.
type PartnerScore struct {
	FitScore       float64          `json:"fitScore"`
	Breakdown      PartnerBreakdown `json:"scoreBreakdown"`
	SetAsideStatus setaside.Status  `json:"setAsideStatus"`
	GapsFilled     []string         `json:"naicsGapsFilled"`
}

// ScorePartner rates how well the candidate fills the lead's capability gaps for the opportunity.
func ScorePartner(in PartnerInput) PartnerScore {
	distance := in.Distance
	if math.IsNaN(distance) {
		distance = 1
	}
	semantic := clamp01(1 - distance)

	gaps := naics.Gaps(in.Opportunity.SecondaryNAICS, in.Lead.NAICSCodes())
	filled := naics.Filled(gaps, in.Candidate.NAICSCodes())
	coverage := naics.Coverage(filled, gaps)

	status := setaside.Resolve(in.Opportunity.SetAsideCode, in.Candidate.SBACertifications)

	penalty := 1.0
	leadPrimary := strings.TrimSpace(in.Lead.PrimaryNAICS)
	if leadPrimary != "" && leadPrimary == strings.TrimSpace(in.Candidate.PrimaryNAICS) {
		penalty = OverlapPenalty
	}

	raw := CoverageWeight*coverage + SemanticWeight*semantic + SetAsideWeight*status.Score()

	return PartnerScore{
		FitScore: clamp01(raw * penalty),
		Breakdown: PartnerBreakdown{
			Semantic:       semantic,
			Coverage:       coverage,
			SetAside:       status.Score(),
			OverlapPenalty: penalty,
		},
		SetAsideStatus: status,
		GapsFilled:     filled,
	}
}
