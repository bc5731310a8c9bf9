package matching

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/ranking"
	"github.com/spigell/govcon-matcher/internal/resolver"
	"github.com/spigell/govcon-matcher/internal/scoring"
	"github.com/spigell/govcon-matcher/internal/store"
)

// View selects the anchor of a fit ranking.
type View string

const (
	// ViewCompany ranks opportunities for a company.
	ViewCompany View = "company"
	// ViewOpportunity ranks companies for an opportunity.
	ViewOpportunity View = "opportunity"
)

// FitRequest asks for the best matches of an anchor company or opportunity.
// An empty View is inferred from whichever reference is set, company first.
type FitRequest struct {
	View        View
	Company     resolver.CompanyRef
	Opportunity resolver.OpportunityRef
	Limit       int
}

// Match is a ranked counterpart of the anchor with its explainable score.
type Match struct {
	Entity govcon.Entity    `json:"entity"`
	Fit    scoring.FitScore `json:"fit"`
}

func (m Match) Key() string { return m.Entity.ID() }
func (m Match) Score() float64 { return float64(m.Fit.Overall) }
func (m Match) Eligible() bool { return m.Fit.Eligible }

// FitResult holds the anchor and its top eligible matches.
type FitResult struct {
	View                View          `json:"view"`
	Anchor              govcon.Entity `json:"anchor"`
	Matches             []Match       `json:"matches"`
	PreselectSampleSize int           `json:"preselect_sample_size"`
}

// RankFit scores the anchor against its preselected counterparts with the entity fit policy.
// Counterparts that fail a required set-aside never appear in the result.
func (s *Service) RankFit(ctx context.Context, req FitRequest) (result FitResult, err error) {
	ctx, end := s.begin(ctx, "rank_fit", attribute.String("view", string(req.View)), attribute.Int("limit", req.Limit))
	defer func() { end(err) }()

	view, err := fitView(req)
	if err != nil {
		return FitResult{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultFitLimit
	}

	r := ranking.New([]ranking.Filter[Match]{
		ranking.NewEligibility[Match](s.logger),
	}, s.logger)

	switch view {
	case ViewCompany:
		return s.rankOpportunities(ctx, r, req.Company, limit)
	default:
		return s.rankCompanies(ctx, r, req.Opportunity, limit)
	}
}

func (s *Service) rankOpportunities(ctx context.Context, r *ranking.Ranking[Match], ref resolver.CompanyRef, limit int) (FitResult, error) {
	company, err := s.resolver.Company(ctx, resolver.Company, ref)
	if err != nil {
		return FitResult{}, err
	}
	if len(company.Embedding) == 0 {
		return FitResult{}, missingEmbedding("Company " + company.ID)
	}

	neighbors, err := s.preselectPool(ctx, store.Query{
		Pool:   govcon.KindOpportunity,
		Vector: company.Embedding,
		Limit:  s.preselect,
	})
	if err != nil {
		return FitResult{}, err
	}
	pool, err := s.opportunityPool(ctx, neighbors)
	if err != nil {
		return FitResult{}, err
	}

	matches, err := ranking.Rank(ctx, r, pool, func(o pooled[govcon.Opportunity]) Match {
		return Match{Entity: govcon.OpportunityEntity(o.record), Fit: scoring.ScoreFit(company, o.record)}
	}, limit)
	if err != nil {
		return FitResult{}, err
	}

	return FitResult{
		View:                ViewCompany,
		Anchor:              govcon.CompanyEntity(company),
		Matches:             matches,
		PreselectSampleSize: len(pool),
	}, nil
}

func (s *Service) rankCompanies(ctx context.Context, r *ranking.Ranking[Match], ref resolver.OpportunityRef, limit int) (FitResult, error) {
	opp, err := s.resolver.Opportunity(ctx, ref)
	if err != nil {
		return FitResult{}, err
	}
	if len(opp.Embedding) == 0 {
		return FitResult{}, missingEmbedding("Opportunity " + opp.NoticeID)
	}

	neighbors, err := s.preselectPool(ctx, store.Query{
		Pool:   govcon.KindCompany,
		Vector: opp.Embedding,
		Limit:  s.preselect,
	})
	if err != nil {
		return FitResult{}, err
	}
	pool, err := s.companyPool(ctx, neighbors)
	if err != nil {
		return FitResult{}, err
	}

	matches, err := ranking.Rank(ctx, r, pool, func(c pooled[govcon.Company]) Match {
		return Match{Entity: govcon.CompanyEntity(c.record), Fit: scoring.ScoreFit(c.record, opp)}
	}, limit)
	if err != nil {
		return FitResult{}, err
	}

	return FitResult{
		View:                ViewOpportunity,
		Anchor:              govcon.OpportunityEntity(opp),
		Matches:             matches,
		PreselectSampleSize: len(pool),
	}, nil
}

func fitView(req FitRequest) (View, error) {
	switch req.View {
	case ViewCompany, ViewOpportunity:
		return req.View, nil
	case "":
		switch {
		case !req.Company.Empty():
			return ViewCompany, nil
		case !req.Opportunity.Empty():
			return ViewOpportunity, nil
		}
		return "", govcon.AmbiguousInput("Provide a company or an opportunity reference.")
	default:
		return "", govcon.AmbiguousInput(fmt.Sprintf("Unknown view %q; use company or opportunity.", req.View))
	}
}
