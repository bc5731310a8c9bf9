// Package resolver turns loose company and opportunity references into
// records. Misses are *govcon.Failure values; store errors stay errors.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

// CompanyRef identifies a company. The first non-empty field in the order ID, UEI, Name is used.
type CompanyRef struct {
	ID   string `json:"id,omitempty" mapstructure:"id"`
	UEI  string `json:"uei,omitempty" mapstructure:"uei"`
	Name string `json:"name,omitempty" mapstructure:"name"`
}

func (r CompanyRef) Empty() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.UEI) == "" && strings.TrimSpace(r.Name) == ""
}

// OpportunityRef identifies an opportunity. The first non-empty field in the
// order NoticeID, SolicitationNumber, Title is used.
type OpportunityRef struct {
	NoticeID           string `json:"noticeId,omitempty" mapstructure:"notice-id"`
	SolicitationNumber string `json:"solicitationNumber,omitempty" mapstructure:"solicitation-number"`
	Title              string `json:"title,omitempty" mapstructure:"title"`
}

func (r OpportunityRef) Empty() bool {
	return strings.TrimSpace(r.NoticeID) == "" && strings.TrimSpace(r.SolicitationNumber) == "" && strings.TrimSpace(r.Title) == ""
}

// Role names the company being resolved in failure messages.
type Role struct {
	Label   string
	Missing string
}

var (
	LeadCompany = Role{
		Label:   "Lead company",
		Missing: "Provide leadCompanyId, leadCompanyUEI, or leadCompanyName.",
	}
	Company = Role{
		Label:   "Company",
		Missing: "Provide companyId, companyUEI, or companyName.",
	}
)

const missingOpportunity = "Provide opportunityNoticeId, opportunitySolicitationNumber, or opportunityTitle."

type Resolver struct {
	records store.Records
}

func New(records store.Records) *Resolver {
	return &Resolver{records: records}
}

// Company resolves ref. Exact id and UEI misses carry no suggestions;
// a name miss suggests up to store.SuggestionLimit companies whose name contains it.
func (r *Resolver) Company(ctx context.Context, role Role, ref CompanyRef) (govcon.Company, error) {
	id, uei, name := strings.TrimSpace(ref.ID), strings.TrimSpace(ref.UEI), strings.TrimSpace(ref.Name)

	switch {
	case id != "":
		c, err := r.records.Company(ctx, store.CompanyID, id)
		if errors.Is(err, store.ErrNotFound) {
			return govcon.Company{}, govcon.NotFound(fmt.Sprintf("%s id %s not found.", role.Label, id))
		}
		if err != nil {
			return govcon.Company{}, fmt.Errorf("looking up company by id: %w", err)
		}
		return c, nil

	case uei != "":
		c, err := r.records.Company(ctx, store.CompanyUEI, uei)
		if errors.Is(err, store.ErrNotFound) {
			return govcon.Company{}, govcon.NotFound(fmt.Sprintf("%s UEI %s not found.", role.Label, uei))
		}
		if err != nil {
			return govcon.Company{}, fmt.Errorf("looking up company by uei: %w", err)
		}
		return c, nil

	case name != "":
		c, err := r.records.Company(ctx, store.CompanyName, name)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return govcon.Company{}, fmt.Errorf("looking up company by name: %w", err)
		}

		similar, err := r.records.SearchCompanies(ctx, name, store.SuggestionLimit)
		if err != nil {
			return govcon.Company{}, fmt.Errorf("searching companies: %w", err)
		}
		suggestions := make([]govcon.Suggestion, 0, len(similar))
		for _, s := range similar {
			suggestions = append(suggestions, govcon.Suggestion{
				Kind: govcon.KindCompany,
				ID:   s.ID,
				Hint: fmt.Sprintf("%s (UEI %s)", s.Name, s.UEI),
			})
		}
		return govcon.Company{}, govcon.NotFound(fmt.Sprintf("%s %q not found.", role.Label, name), suggestions...)
	}

	return govcon.Company{}, govcon.AmbiguousInput(role.Missing)
}

// Opportunity resolves ref. Solicitation number and title misses suggest
// up to store.SuggestionLimit opportunities containing the value.
func (r *Resolver) Opportunity(ctx context.Context, ref OpportunityRef) (govcon.Opportunity, error) {
	notice := strings.TrimSpace(ref.NoticeID)
	solicitation := strings.TrimSpace(ref.SolicitationNumber)
	title := strings.TrimSpace(ref.Title)

	switch {
	case notice != "":
		o, err := r.records.Opportunity(ctx, store.OpportunityNoticeID, notice)
		if errors.Is(err, store.ErrNotFound) {
			return govcon.Opportunity{}, govcon.NotFound(fmt.Sprintf("Opportunity notice_id %s not found.", notice))
		}
		if err != nil {
			return govcon.Opportunity{}, fmt.Errorf("looking up opportunity by notice id: %w", err)
		}
		return o, nil

	case solicitation != "":
		return r.opportunityWithSuggestions(ctx, store.OpportunitySolicitation, solicitation,
			fmt.Sprintf("Solicitation number %q not found.", solicitation),
			func(o govcon.Opportunity) string {
				return fmt.Sprintf("%s (%s - %s)", o.SolicitationNumber, o.NoticeID, o.Title)
			})

	case title != "":
		return r.opportunityWithSuggestions(ctx, store.OpportunityTitle, title,
			fmt.Sprintf("Opportunity titled %q not found.", title),
			func(o govcon.Opportunity) string {
				return fmt.Sprintf("%q (%s)", o.Title, o.NoticeID)
			})
	}

	return govcon.Opportunity{}, govcon.AmbiguousInput(missingOpportunity)
}

func (r *Resolver) opportunityWithSuggestions(
	ctx context.Context,
	field store.OpportunityField,
	value, message string,
	hint func(govcon.Opportunity) string,
) (govcon.Opportunity, error) {
	o, err := r.records.Opportunity(ctx, field, value)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return govcon.Opportunity{}, fmt.Errorf("looking up opportunity by %s: %w", field, err)
	}

	similar, err := r.records.SearchOpportunities(ctx, field, value, store.SuggestionLimit)
	if err != nil {
		return govcon.Opportunity{}, fmt.Errorf("searching opportunities: %w", err)
	}
	suggestions := make([]govcon.Suggestion, 0, len(similar))
	for _, s := range similar {
		suggestions = append(suggestions, govcon.Suggestion{
			Kind: govcon.KindOpportunity,
			ID:   s.NoticeID,
			Hint: hint(s),
		})
	}
	return govcon.Opportunity{}, govcon.NotFound(message, suggestions...)
}
