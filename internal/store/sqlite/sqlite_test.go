package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	companies := []govcon.Company{
		{
			ID:                "c-acme",
			Name:              "Acme Federal",
			UEI:               "ACME12345678",
			PrimaryNAICS:      "541512",
			OtherNAICS:        []string{"541511", "541519"},
			EmployeeCount:     120,
			SBACertifications: []string{"8A"},
			Embedding:         []float32{1, 0, 0},
		},
		{
			ID:                "c-beta",
			Name:              "Beta Analytics",
			UEI:               "BETA12345678",
			PrimaryNAICS:      "541611",
			OtherNAICS:        []string{"541930"},
			EmployeeCount:     40,
			SBACertifications: []string{"WOSB"},
			Embedding:         []float32{0.8, 0.2, 0},
		},
		{ID: "c-gamma", Name: "Gamma Builders", PrimaryNAICS: "236220"},
	}
	for _, c := range companies {
		if err := s.UpsertCompany(ctx, c); err != nil {
			t.Fatalf("upsert company: %v", err)
		}
	}

	opportunities := []govcon.Opportunity{
		{
			NoticeID:           "N-100",
			SolicitationNumber: "W912-24-R-0001",
			Title:              "Cloud Migration Services",
			NAICSCode:          "541512",
			SecondaryNAICS:     []string{"541930"},
			SetAsideCode:       "SBA",
			Embedding:          []float32{0.9, 0.1, 0},
		},
		{NoticeID: "N-200", Title: "Barracks Renovation", NAICSCode: "236220"},
	}
	for _, o := range opportunities {
		if err := s.UpsertOpportunity(ctx, o); err != nil {
			t.Fatalf("upsert opportunity: %v", err)
		}
	}

	codes := []govcon.NAICSCode{
		{Code: "541512", Title: "Computer Systems Design Services", Level: 6, Sector: "54", Embedding: []float32{1, 0, 0}},
		{Code: "54151", Title: "Computer Systems Design and Related Services", Level: 5, Sector: "54", Embedding: []float32{0.7, 0.3, 0}},
		{Code: "54", Title: "Professional, Scientific, and Technical Services", Level: 2, Sector: "54", Embedding: []float32{1, 0, 0}},
	}
	for _, n := range codes {
		if err := s.UpsertNAICS(ctx, n); err != nil {
			t.Fatalf("upsert naics: %v", err)
		}
	}

	return s
}

func TestCompanyRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Company(ctx, store.CompanyUEI, "ACME12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "c-acme" || got.EmployeeCount != 120 {
		t.Fatalf("unexpected company %+v", got)
	}
	if !reflect.DeepEqual(got.OtherNAICS, []string{"541511", "541519"}) {
		t.Fatalf("unexpected other naics %v", got.OtherNAICS)
	}
	if !reflect.DeepEqual(got.Embedding, []float32{1, 0, 0}) {
		t.Fatalf("unexpected embedding %v", got.Embedding)
	}

	gamma, err := s.Company(ctx, store.CompanyName, "Gamma Builders")
	if err != nil || gamma.ID != "c-gamma" || gamma.UEI != "" || gamma.Embedding != nil {
		t.Fatalf("unexpected company %+v, %v", gamma, err)
	}

	if _, err := s.Company(ctx, store.CompanyID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	found, err := s.SearchCompanies(ctx, "ACME", store.SuggestionLimit)
	if err != nil || len(found) != 1 || found[0].ID != "c-acme" {
		t.Fatalf("unexpected search result %+v, %v", found, err)
	}

	byID, err := s.CompaniesByID(ctx, []string{"c-beta", "missing"})
	if err != nil || len(byID) != 1 || byID[0].ID != "c-beta" {
		t.Fatalf("unexpected batch result %+v, %v", byID, err)
	}
}

func TestSearchMatchesWildcardsLiterally(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for _, fragment := range []string{"A_me", "Ac%al", `Acme\`} {
		found, err := s.SearchCompanies(ctx, fragment, store.SuggestionLimit)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", fragment, err)
		}
		if len(found) != 0 {
			t.Fatalf("expected %q to match nothing, got %+v", fragment, found)
		}
	}

	opps, err := s.SearchOpportunities(ctx, store.OpportunityTitle, "Cloud_Migration", store.SuggestionLimit)
	if err != nil || len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %+v, %v", opps, err)
	}

	if err := s.UpsertCompany(ctx, govcon.Company{ID: "c-pct", Name: "100% Veteran_Owned"}); err != nil {
		t.Fatalf("upsert company: %v", err)
	}
	found, err := s.SearchCompanies(ctx, "0% veteran_", store.SuggestionLimit)
	if err != nil || len(found) != 1 || found[0].ID != "c-pct" {
		t.Fatalf("expected the literal match, got %+v, %v", found, err)
	}
}

func TestOpportunityRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Opportunity(ctx, store.OpportunitySolicitation, "W912-24-R-0001")
	if err != nil || got.NoticeID != "N-100" || got.SetAsideCode != "SBA" {
		t.Fatalf("unexpected opportunity %+v, %v", got, err)
	}
	if !reflect.DeepEqual(got.SecondaryNAICS, []string{"541930"}) {
		t.Fatalf("unexpected secondary naics %v", got.SecondaryNAICS)
	}

	found, err := s.SearchOpportunities(ctx, store.OpportunityTitle, "renovation", store.SuggestionLimit)
	if err != nil || len(found) != 1 || found[0].NoticeID != "N-200" {
		t.Fatalf("unexpected search result %+v, %v", found, err)
	}

	if err := s.UpsertOpportunity(ctx, govcon.Opportunity{NoticeID: "N-200", Title: "Barracks Demolition"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := s.OpportunitiesByID(ctx, []string{"N-200"})
	if err != nil || len(updated) != 1 || updated[0].Title != "Barracks Demolition" {
		t.Fatalf("expected replaced record, got %+v, %v", updated, err)
	}
}

func TestPreselect(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	neighbors, err := s.Preselect(ctx, store.Query{
		Pool:    govcon.KindCompany,
		Vector:  []float32{1, 0, 0},
		Exclude: []string{"c-acme"},
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != "c-beta" {
		t.Fatalf("unexpected neighbors %+v", neighbors)
	}

	codes, err := s.Preselect(ctx, store.Query{Pool: govcon.KindNAICS, Vector: []float32{1, 0, 0}, Levels: []int{4, 5, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 2 || codes[0].ID != "541512" || codes[1].ID != "54151" {
		t.Fatalf("unexpected naics neighbors %+v", codes)
	}

	hydrated, err := s.NAICSByCode(ctx, []string{"54151"})
	if err != nil || len(hydrated) != 1 || hydrated[0].Level != 5 {
		t.Fatalf("unexpected naics %+v, %v", hydrated, err)
	}
}

func TestUpsertValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCompany(ctx, govcon.Company{Name: "No ID"}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if err := s.UpsertNAICS(ctx, govcon.NAICSCode{Title: "No code"}); err == nil {
		t.Fatalf("expected error for missing code")
	}
}
