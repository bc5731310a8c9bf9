// Package store defines the persistence and nearest-neighbour boundaries the
// matcher depends on. Concrete backends live in sub-packages.
package store

import (
	"context"
	"errors"

	"github.com/spigell/govcon-matcher/internal/govcon"
)

// ErrNotFound is returned by exact lookups that match no record.
var ErrNotFound = errors.New("record not found")

// SuggestionLimit caps fuzzy lookups.
const SuggestionLimit = 5

// CompanyField names a column companies can be looked up by.
type CompanyField string

const (
	CompanyID   CompanyField = "id"
	CompanyUEI  CompanyField = "uei"
	CompanyName CompanyField = "name"
)

// OpportunityField names a column opportunities can be looked up by.
type OpportunityField string

const (
	OpportunityNoticeID     OpportunityField = "notice_id"
	OpportunitySolicitation OpportunityField = "solicitation_number"
	OpportunityTitle        OpportunityField = "title"
)

// Records looks up companies, opportunities and catalog codes.
type Records interface {
	// Company returns the record whose field equals value, or ErrNotFound.
	Company(ctx context.Context, field CompanyField, value string) (govcon.Company, error)
	// SearchCompanies returns up to limit companies whose name contains fragment, ignoring case.
	SearchCompanies(ctx context.Context, fragment string, limit int) ([]govcon.Company, error)

	Opportunity(ctx context.Context, field OpportunityField, value string) (govcon.Opportunity, error)
	SearchOpportunities(ctx context.Context, field OpportunityField, fragment string, limit int) ([]govcon.Opportunity, error)

	// CompaniesByID and OpportunitiesByID skip unknown ids. Order is unspecified.
	CompaniesByID(ctx context.Context, ids []string) ([]govcon.Company, error)
	OpportunitiesByID(ctx context.Context, noticeIDs []string) ([]govcon.Opportunity, error)
	NAICSByCode(ctx context.Context, codes []string) ([]govcon.NAICSCode, error)
}

// Writer stores records. Ingestion requires a backend that implements it.
type Writer interface {
	UpsertCompany(ctx context.Context, c govcon.Company) error
	UpsertOpportunity(ctx context.Context, o govcon.Opportunity) error
	UpsertNAICS(ctx context.Context, n govcon.NAICSCode) error
}

// Query asks for the nearest records of one kind.
type Query struct {
	Pool   govcon.Kind
	Vector []float32
	// Exclude lists ids that must never be returned, such as the lead company.
	Exclude []string
	// Levels restricts NAICS pools to the given hierarchy levels.
	Levels []int
	Limit  int
}

// Neighbor is a preselected record id with its cosine distance to the query (lower is closer).
type Neighbor struct {
	ID       string
	Distance float64
}

// Preselector returns approximate nearest neighbours. Records without an embedding are never returned.
type Preselector interface {
	Preselect(ctx context.Context, q Query) ([]Neighbor, error)
}
