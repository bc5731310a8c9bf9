package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
	"github.com/spigell/govcon-matcher/internal/store/memory"
)

func testRecords() *memory.Store {
	return memory.New(memory.Dataset{
		Companies: []govcon.Company{
			{ID: "c-1", Name: "Sentinel Microsystems", UEI: "SENTINEL92M", PrimaryNAICS: "334511"},
			{ID: "c-2", Name: "Sentinel Labs", UEI: "SENTLABS001", PrimaryNAICS: "541715"},
			{ID: "c-3", Name: "Tristimuli", UEI: "TRISTIM0001", PrimaryNAICS: "541512"},
		},
		Opportunities: []govcon.Opportunity{
			{NoticeID: "GD-2025-002", SolicitationNumber: "W31P4Q-25-R-0198", Title: "Compact AESA Radar Modules", NAICSCode: "334511"},
			{NoticeID: "GD-2025-003", SolicitationNumber: "W31P4Q-25-R-0201", Title: "Radar Maintenance Support", NAICSCode: "811210"},
		},
	})
}

func TestCompany(t *testing.T) {
	t.Parallel()

	r := New(testRecords())
	ctx := context.Background()

	cases := []struct {
		name     string
		ref      CompanyRef
		wantID   string
		wantKind govcon.FailureKind
		wantMsg  string
		wantHint int
	}{
		{name: "by id", ref: CompanyRef{ID: "c-3"}, wantID: "c-3"},
		{name: "by uei", ref: CompanyRef{UEI: "SENTINEL92M"}, wantID: "c-1"},
		{name: "by exact name", ref: CompanyRef{Name: "Tristimuli"}, wantID: "c-3"},
		{name: "id wins over name", ref: CompanyRef{ID: "c-1", Name: "Tristimuli"}, wantID: "c-1"},
		{
			name:     "unknown id",
			ref:      CompanyRef{ID: "c-9", Name: "Tristimuli"},
			wantKind: govcon.FailureNotFound,
			wantMsg:  "Lead company id c-9 not found.",
		},
		{
			name:     "unknown uei",
			ref:      CompanyRef{UEI: "NOPE"},
			wantKind: govcon.FailureNotFound,
			wantMsg:  "Lead company UEI NOPE not found.",
		},
		{
			name:     "fuzzy name",
			ref:      CompanyRef{Name: "sentinel"},
			wantKind: govcon.FailureNotFound,
			wantMsg:  `Lead company "sentinel" not found.`,
			wantHint: 2,
		},
		{
			name:     "nothing supplied",
			ref:      CompanyRef{Name: "  "},
			wantKind: govcon.FailureAmbiguousInput,
			wantMsg:  LeadCompany.Missing,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Company(ctx, LeadCompany, tc.ref)
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.ID != tc.wantID {
					t.Fatalf("expected %s, got %s", tc.wantID, got.ID)
				}
				return
			}

			failure, ok := govcon.AsFailure(err)
			if !ok {
				t.Fatalf("expected failure, got %v", err)
			}
			if failure.Kind != tc.wantKind || failure.Message != tc.wantMsg {
				t.Fatalf("unexpected failure %+v", failure)
			}
			if len(failure.Suggestions) != tc.wantHint {
				t.Fatalf("expected %d suggestions, got %+v", tc.wantHint, failure.Suggestions)
			}
		})
	}
}

func TestCompanySuggestionHint(t *testing.T) {
	t.Parallel()

	_, err := New(testRecords()).Company(context.Background(), Company, CompanyRef{Name: "Labs"})
	failure, ok := govcon.AsFailure(err)
	if !ok {
		t.Fatalf("expected failure, got %v", err)
	}
	if want := "Did you mean: Sentinel Labs (UEI SENTLABS001)"; failure.Hint() != want {
		t.Fatalf("expected hint %q, got %q", want, failure.Hint())
	}
	if !strings.HasPrefix(failure.Message, "Company ") {
		t.Fatalf("expected role label in message, got %q", failure.Message)
	}
}

func TestOpportunity(t *testing.T) {
	t.Parallel()

	r := New(testRecords())
	ctx := context.Background()

	got, err := r.Opportunity(ctx, OpportunityRef{SolicitationNumber: "W31P4Q-25-R-0198"})
	if err != nil || got.NoticeID != "GD-2025-002" {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}

	got, err = r.Opportunity(ctx, OpportunityRef{Title: "Radar Maintenance Support"})
	if err != nil || got.NoticeID != "GD-2025-003" {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}

	_, err = r.Opportunity(ctx, OpportunityRef{SolicitationNumber: "W31P4Q-25"})
	failure, ok := govcon.AsFailure(err)
	if !ok || failure.Kind != govcon.FailureNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	want := "Did you mean: W31P4Q-25-R-0198 (GD-2025-002 - Compact AESA Radar Modules); " +
		"W31P4Q-25-R-0201 (GD-2025-003 - Radar Maintenance Support)"
	if failure.Hint() != want {
		t.Fatalf("unexpected hint %q", failure.Hint())
	}

	_, err = r.Opportunity(ctx, OpportunityRef{Title: "aesa"})
	failure, ok = govcon.AsFailure(err)
	if !ok || failure.Hint() != `Did you mean: "Compact AESA Radar Modules" (GD-2025-002)` {
		t.Fatalf("unexpected failure %v", err)
	}

	_, err = r.Opportunity(ctx, OpportunityRef{NoticeID: "missing", Title: "Radar Maintenance Support"})
	failure, ok = govcon.AsFailure(err)
	if !ok || failure.Message != "Opportunity notice_id missing not found." || len(failure.Suggestions) != 0 {
		t.Fatalf("unexpected failure %v", err)
	}

	_, err = r.Opportunity(ctx, OpportunityRef{})
	failure, ok = govcon.AsFailure(err)
	if !ok || failure.Kind != govcon.FailureAmbiguousInput {
		t.Fatalf("expected ambiguous input, got %v", err)
	}
}

type brokenRecords struct {
	store.Records
}

var errBroken = errors.New("connection refused")

func (brokenRecords) Company(context.Context, store.CompanyField, string) (govcon.Company, error) {
	return govcon.Company{}, errBroken
}

func (brokenRecords) Opportunity(context.Context, store.OpportunityField, string) (govcon.Opportunity, error) {
	return govcon.Opportunity{}, errBroken
}

func TestUpstreamErrorsAreNotFailures(t *testing.T) {
	t.Parallel()

	r := New(brokenRecords{})
	ctx := context.Background()

	_, err := r.Company(ctx, LeadCompany, CompanyRef{Name: "x"})
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if _, ok := govcon.AsFailure(err); ok {
		t.Fatalf("store errors must not be reported as failures")
	}

	if _, err := r.Opportunity(ctx, OpportunityRef{Title: "x"}); !errors.Is(err, errBroken) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
