package matching

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/ranking"
	"github.com/spigell/govcon-matcher/internal/resolver"
	"github.com/spigell/govcon-matcher/internal/scoring"
	"github.com/spigell/govcon-matcher/internal/store"
)

// PartnersRequest asks for joint-venture partners of a lead company for an opportunity.
type PartnersRequest struct {
	Lead        resolver.CompanyRef
	Opportunity resolver.OpportunityRef
	// Limit is clamped to [1, MaxPartnerLimit]; zero means DefaultPartnerLimit.
	Limit int
}

// Partner is a suggested joint-venture partner with its score.
type Partner struct {
	Partner govcon.Company       `json:"partner"`
	Metrics scoring.PartnerScore `json:"metrics"`
}

func (p Partner) Key() string { return p.Partner.ID }
func (p Partner) Score() float64 { return p.Metrics.FitScore }
func (p Partner) Eligible() bool { return true }

// PartnersResult lists the best partners out of the preselected sample.
type PartnersResult struct {
	Lead                govcon.Company     `json:"lead"`
	Opportunity         govcon.Opportunity `json:"opportunity"`
	SuggestedPartners   []Partner          `json:"suggested_partners"`
	PreselectSampleSize int                `json:"preselect_sample_size"`
}

// FindPartners resolves the lead and the opportunity, preselects companies close to the opportunity
// and ranks them by how well they fill the lead's NAICS gaps.
func (s *Service) FindPartners(ctx context.Context, req PartnersRequest) (result PartnersResult, err error) {
	ctx, end := s.begin(ctx, "find_partners", attribute.Int("limit", req.Limit))
	defer func() { end(err) }()

	lead, err := s.resolver.Company(ctx, resolver.LeadCompany, req.Lead)
	if err != nil {
		return PartnersResult{}, err
	}
	opp, err := s.resolver.Opportunity(ctx, req.Opportunity)
	if err != nil {
		return PartnersResult{}, err
	}
	if len(opp.Embedding) == 0 {
		return PartnersResult{}, missingEmbedding("Opportunity " + opp.NoticeID)
	}

	neighbors, err := s.preselectPool(ctx, store.Query{
		Pool:    govcon.KindCompany,
		Vector:  opp.Embedding,
		Exclude: []string{lead.ID},
		Limit:   s.preselect,
	})
	if err != nil {
		return PartnersResult{}, err
	}

	pool, err := s.companyPool(ctx, neighbors)
	if err != nil {
		return PartnersResult{}, err
	}

	r := ranking.New([]ranking.Filter[Partner]{
		ranking.NewExclude[Partner]([]string{lead.ID}),
	}, s.logger)

	partners, err := ranking.Rank(ctx, r, pool, func(c pooled[govcon.Company]) Partner {
		return Partner{
			Partner: c.record,
			Metrics: scoring.ScorePartner(scoring.PartnerInput{
				Lead:        lead,
				Opportunity: opp,
				Candidate:   c.record,
				Distance:    c.distance,
			}),
		}
	}, partnerLimit(req.Limit))
	if err != nil {
		return PartnersResult{}, err
	}

	return PartnersResult{
		Lead:                lead,
		Opportunity:         opp,
		SuggestedPartners:   partners,
		PreselectSampleSize: len(pool),
	}, nil
}

func partnerLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPartnerLimit
	case limit > MaxPartnerLimit:
		return MaxPartnerLimit
	default:
		return limit
	}
}
