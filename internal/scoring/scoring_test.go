package scoring

import (
	"math"
	"reflect"
	"testing"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/setaside"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScorePartnerFillsGap(t *testing.T) {
	t.Parallel()

	got := ScorePartner(PartnerInput{
		Lead:        govcon.Company{ID: "lead", PrimaryNAICS: "541512"},
		Opportunity: govcon.Opportunity{NoticeID: "N-1", NAICSCode: "541512", SecondaryNAICS: []string{"541930"}},
		Candidate:   govcon.Company{ID: "c1", PrimaryNAICS: "541611", OtherNAICS: []string{"541930"}},
		Distance:    0.2,
	})

	if got.Breakdown.Coverage != 1 {
		t.Fatalf("expected coverage 1, got %v", got.Breakdown.Coverage)
	}
	if got.Breakdown.SetAside != 1 || got.SetAsideStatus != setaside.NotApplicable {
		t.Fatalf("expected not applicable set-aside with full credit, got %+v", got)
	}
	if got.Breakdown.OverlapPenalty != 1 {
		t.Fatalf("expected no overlap penalty, got %v", got.Breakdown.OverlapPenalty)
	}
	if !almostEqual(got.FitScore, 0.95) {
		t.Fatalf("expected fit score 0.95, got %v", got.FitScore)
	}
	if !reflect.DeepEqual(got.GapsFilled, []string{"541930"}) {
		t.Fatalf("expected filled gaps [541930], got %v", got.GapsFilled)
	}
}

func TestScorePartnerSetAside(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		code     string
		certs    []string
		status   setaside.Status
		setAside float64
	}{
		{name: "wosb satisfied by edwosb", code: "WOSB", certs: []string{"EDWOSB"}, status: setaside.Qualified, setAside: 1},
		{name: "sba without certifications", code: "SBA", certs: nil, status: setaside.Ineligible, setAside: 0},
		{name: "unrecognized code", code: "IEE", certs: nil, status: setaside.Eligible, setAside: 0.5},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ScorePartner(PartnerInput{
				Lead:        govcon.Company{PrimaryNAICS: "541512"},
				Opportunity: govcon.Opportunity{SetAsideCode: tc.code},
				Candidate:   govcon.Company{PrimaryNAICS: "541611", SBACertifications: tc.certs},
				Distance:    0.5,
			})
			if got.SetAsideStatus != tc.status || got.Breakdown.SetAside != tc.setAside {
				t.Fatalf("expected %s/%v, got %s/%v", tc.status, tc.setAside, got.SetAsideStatus, got.Breakdown.SetAside)
			}
		})
	}
}

func TestScorePartnerOverlapPenalty(t *testing.T) {
	t.Parallel()

	in := PartnerInput{
		Lead:      govcon.Company{PrimaryNAICS: "541511"},
		Candidate: govcon.Company{PrimaryNAICS: "541511"},
		Distance:  0,
	}

	got := ScorePartner(in)
	if got.Breakdown.OverlapPenalty != OverlapPenalty {
		t.Fatalf("expected penalty %v, got %v", OverlapPenalty, got.Breakdown.OverlapPenalty)
	}
	if !almostEqual(got.FitScore, 0.7) {
		t.Fatalf("expected penalised score 0.7, got %v", got.FitScore)
	}

	in.Candidate.PrimaryNAICS = "541512"
	if got := ScorePartner(in); got.Breakdown.OverlapPenalty != 1 {
		t.Fatalf("different primaries must not be penalised, got %v", got.Breakdown.OverlapPenalty)
	}

	in.Lead.PrimaryNAICS, in.Candidate.PrimaryNAICS = "", ""
	if got := ScorePartner(in); got.Breakdown.OverlapPenalty != 1 {
		t.Fatalf("missing primaries must not be penalised, got %v", got.Breakdown.OverlapPenalty)
	}
}

func TestScorePartnerBounds(t *testing.T) {
	t.Parallel()

	for _, distance := range []float64{-0.5, 0, 0.3, 1, 1.7, NoDistance} {
		in := PartnerInput{
			Lead:        govcon.Company{PrimaryNAICS: "541512"},
			Opportunity: govcon.Opportunity{SecondaryNAICS: []string{"541930", "561110"}, SetAsideCode: "HZC"},
			Candidate:   govcon.Company{PrimaryNAICS: "541512", OtherNAICS: []string{"561110"}},
			Distance:    distance,
		}

		got := ScorePartner(in)
		for name, v := range map[string]float64{
			"fit":      got.FitScore,
			"semantic": got.Breakdown.Semantic,
			"coverage": got.Breakdown.Coverage,
			"setAside": got.Breakdown.SetAside,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s out of bounds for distance %v: %v", name, distance, v)
			}
		}
		if got.Breakdown.OverlapPenalty <= 0 || got.Breakdown.OverlapPenalty > 1 {
			t.Fatalf("penalty out of bounds: %v", got.Breakdown.OverlapPenalty)
		}

		if again := ScorePartner(in); !reflect.DeepEqual(got, again) {
			t.Fatalf("expected identical results for identical input")
		}
	}

	if got := ScorePartner(PartnerInput{Distance: NoDistance}); got.Breakdown.Semantic != 0 {
		t.Fatalf("missing distance must give zero semantic credit, got %v", got.Breakdown.Semantic)
	}
}

func TestScoreFitStrongMatch(t *testing.T) {
	t.Parallel()

	company := govcon.Company{
		PrimaryNAICS:      "541512",
		OtherNAICS:        []string{"541511", "541519", "518210"},
		SBACertifications: []string{"8A"},
		EmployeeCount:     200,
		AnnualRevenue:     5_000_000,
	}
	opp := govcon.Opportunity{
		NAICSCode:      "541512",
		SecondaryNAICS: []string{"541511", "561110"},
		SetAsideCode:   "8A",
		EstimatedValue: 1_000_000,
	}

	got := ScoreFit(company, opp)

	want := FitScore{
		NAICSScore:       100,
		SetAsideScore:    100,
		SizeScore:        100,
		CapabilityScore:  100,
		Overall:          100,
		Eligible:         true,
		SetAsideRequired: true,
		Reasoning: []Reason{
			{Kind: ReasonPass, Text: "Primary NAICS match"},
			{Kind: ReasonPass, Text: "Meets 8A set-aside"},
			{Kind: ReasonPass, Text: "Strong financial capacity"},
			{Kind: ReasonPass, Text: "Diverse capability portfolio"},
			{Kind: ReasonPass, Text: "Secondary req. coverage ≥50%"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestScoreFitUnmetSetAside(t *testing.T) {
	t.Parallel()

	got := ScoreFit(
		govcon.Company{PrimaryNAICS: "236220", SBACertifications: []string{"8A"}, EmployeeCount: 120},
		govcon.Opportunity{NAICSCode: "236220", SetAsideCode: "WOSB"},
	)

	if got.Eligible {
		t.Fatalf("expected unmet set-aside to mark the result ineligible")
	}
	if got.SetAsideScore != 0 || !got.SetAsideRequired {
		t.Fatalf("unexpected set-aside outcome: %+v", got)
	}
	// 100*0.4 + 0 + 100*0.2 + 40*0.1
	if got.Overall != 64 {
		t.Fatalf("expected overall 64, got %d", got.Overall)
	}
	if got.Reasoning[1] != (Reason{Kind: ReasonFail, Text: "Requires WOSB cert"}) {
		t.Fatalf("unexpected set-aside reason %+v", got.Reasoning[1])
	}
}

func TestScoreFitSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		revenue   float64
		value     float64
		employees int
		naics     string
		want      int
		last      Reason
	}{
		{name: "no estimated value", revenue: 1, employees: 500, naics: "236220", want: 100, last: Reason{ReasonInfo, "Full & open (no set-aside)"}},
		{name: "adequate", revenue: 2, value: 1, employees: 500, naics: "236220", want: 80, last: Reason{ReasonInfo, "Adequate financial capacity"}},
		{name: "moderate", revenue: 1, value: 1, employees: 500, naics: "236220", want: 60, last: Reason{ReasonJV, "Moderate capacity (JV candidate)"}},
		{name: "limited", revenue: 1, value: 10, employees: 500, naics: "236220", want: 30, last: Reason{ReasonJV, "Limited capacity (JV candidate)"}},
		{name: "small professional team", revenue: 10, value: 1, employees: 12, naics: "541512", want: 70, last: Reason{ReasonWarn, "Small team (delivery scale risk)"}},
		{name: "small team outside services", revenue: 10, value: 1, employees: 12, naics: "236220", want: 100, last: Reason{ReasonPass, "Strong financial capacity"}},
		{name: "small team already limited", revenue: 1, value: 10, employees: 12, naics: "541512", want: 30, last: Reason{ReasonWarn, "Small team (delivery scale risk)"}},
		{name: "no recorded headcount on services", revenue: 10, value: 1, employees: 0, naics: "541512", want: 70, last: Reason{ReasonWarn, "Small team (delivery scale risk)"}},
		{name: "no recorded headcount outside services", revenue: 10, value: 1, employees: 0, naics: "236220", want: 100, last: Reason{ReasonPass, "Strong financial capacity"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ScoreFit(
				govcon.Company{PrimaryNAICS: tc.naics, AnnualRevenue: tc.revenue, EmployeeCount: tc.employees},
				govcon.Opportunity{NAICSCode: tc.naics, EstimatedValue: tc.value},
			)
			if got.SizeScore != tc.want {
				t.Fatalf("expected size score %d, got %d", tc.want, got.SizeScore)
			}
			// reasons: naics, set-aside, size..., capability
			sizeReason := got.Reasoning[len(got.Reasoning)-2]
			if sizeReason != tc.last {
				t.Fatalf("expected reason %+v, got %+v", tc.last, sizeReason)
			}
		})
	}
}

func TestScoreFitCapability(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		other     []string
		secondary []string
		want      int
	}{
		{name: "single code", want: 40},
		{name: "duplicates count once", other: []string{"541512", "541512"}, want: 40},
		{name: "two codes", other: []string{"541511"}, want: 60},
		{name: "three codes", other: []string{"541511", "541519"}, want: 80},
		{name: "boosted", other: []string{"541511", "541519"}, secondary: []string{"541519", "999999"}, want: 95},
		{name: "boost capped", other: []string{"541511", "541519", "518210"}, secondary: []string{"518210"}, want: 100},
		{name: "coverage below half", other: []string{"541511"}, secondary: []string{"541511", "1", "2"}, want: 60},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ScoreFit(
				govcon.Company{PrimaryNAICS: "541512", OtherNAICS: tc.other, EmployeeCount: 100},
				govcon.Opportunity{NAICSCode: "541512", SecondaryNAICS: tc.secondary},
			)
			if got.CapabilityScore != tc.want {
				t.Fatalf("expected capability %d, got %d", tc.want, got.CapabilityScore)
			}
		})
	}
}

func TestScoreFitDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	company := govcon.Company{PrimaryNAICS: "541512", OtherNAICS: []string{"541511"}}
	opp := govcon.Opportunity{NAICSCode: "541512", SecondaryNAICS: []string{"541511"}}
	before := []string{"541511"}

	first := ScoreFit(company, opp)
	second := ScoreFit(company, opp)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results")
	}
	if !reflect.DeepEqual(company.OtherNAICS, before) || !reflect.DeepEqual(opp.SecondaryNAICS, before) {
		t.Fatalf("inputs were mutated")
	}
}
