package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spigell/govcon-matcher/internal/ai"
	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/scoring"
	"github.com/spigell/govcon-matcher/internal/setaside"
)

func partnersResult() matching.PartnersResult {
	return matching.PartnersResult{
		Lead:        govcon.Company{ID: "c-acme", Name: "Acme | Federal"},
		Opportunity: govcon.Opportunity{NoticeID: "N-100", Title: "Cloud Migration", NAICSCode: "541512", SetAsideCode: "SBA"},
		SuggestedPartners: []matching.Partner{{
			Partner: govcon.Company{ID: "c-beta", Name: "Beta Analytics", UEI: "BETA12345678"},
			Metrics: scoring.PartnerScore{
				FitScore:       0.87,
				Breakdown:      scoring.PartnerBreakdown{Semantic: 0.9, Coverage: 1, SetAside: 0.5, OverlapPenalty: 1},
				SetAsideStatus: setaside.Eligible,
				GapsFilled:     []string{"541930"},
			},
		}},
		PreselectSampleSize: 4,
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{"": JSON, "JSON": JSON, "md": Markdown, "markdown": Markdown, " html ": HTML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPartnersMarkdown(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := Partners(&b, partnersResult(), Markdown); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		`# JV partners for Acme \| Federal`,
		"set-aside SBA",
		"Preselected 4 candidates.",
		"| 1 | Beta Analytics | BETA12345678 | 0.87 | 0.90 | 1.00 | eligible | 1.00 | 541930 |",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestPartnersHTML(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := Partners(&b, partnersResult(), HTML); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()
	if !strings.HasPrefix(out, "<!doctype html>") || !strings.Contains(out, "<table>") || !strings.Contains(out, "<td>Beta Analytics</td>") {
		t.Fatalf("unexpected html:\n%s", out)
	}
	if !strings.Contains(out, "<title>JV partners for Acme | Federal</title>") {
		t.Fatalf("expected escaped title in:\n%s", out)
	}
}

func TestPartnersJSON(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := Partners(&b, partnersResult(), JSON); err != nil {
		t.Fatalf("render: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(b.String()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded["suggested_partners"]; !ok {
		t.Fatalf("expected suggested_partners key in %s", b.String())
	}
}

func TestFitMarkdown(t *testing.T) {
	t.Parallel()

	res := matching.FitResult{
		View:   matching.ViewOpportunity,
		Anchor: govcon.OpportunityEntity(govcon.Opportunity{NoticeID: "N-100", Title: "Cloud Migration"}),
		Matches: []matching.Match{{
			Entity: govcon.CompanyEntity(govcon.Company{ID: "c-beta", Name: "Beta Analytics"}),
			Fit: scoring.FitScore{
				NAICSScore: 60, SetAsideScore: 100, SizeScore: 80, CapabilityScore: 60, Overall: 76, Eligible: true,
				Reasoning: []scoring.Reason{{Kind: scoring.ReasonPass, Text: "Meets SBA set-aside"}},
			},
		}},
	}

	var b strings.Builder
	if err := Fit(&b, res, Markdown); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"# Best company matches for Cloud Migration",
		"## 1. Beta Analytics (c-beta): 76/100",
		"NAICS 60, set-aside 100, size 80, capability 60.",
		"- ✓ Meets SBA set-aside",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}

	b.Reset()
	res.Matches = nil
	if err := Fit(&b, res, Markdown); err != nil || !strings.Contains(b.String(), "No eligible matches found.") {
		t.Fatalf("expected empty notice, got %q (%v)", b.String(), err)
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	candidates := []naics.Classification{{Code: "541512", Title: "Computer Systems Design Services", Level: 6, Similarity: 0.8, Bonus: 0.2, Score: 1}}

	var b strings.Builder
	if err := Classification(&b, matching.Refinement{Candidates: candidates}, JSON); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(b.String()), "[") {
		t.Fatalf("expected bare candidate list without refinement, got %s", b.String())
	}

	b.Reset()
	refined := matching.Refinement{
		Summary:    "The entity designs systems.",
		Candidates: candidates,
		Selections: []ai.Selection{{Code: "541512", Title: "Computer Systems Design Services", Justification: "Custom systems"}},
	}
	if err := Classification(&b, refined, Markdown); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()
	for _, want := range []string{"> The entity designs systems.", "- **541512** Computer Systems Design Services: Custom systems", "| 541512 |"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
