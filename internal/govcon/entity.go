package govcon

import (
	"strings"
)

// Kind discriminates the records the matcher works with.
type Kind string

const (
	KindCompany     Kind = "company"
	KindOpportunity Kind = "opportunity"
	KindNAICS       Kind = "naics"
)

// Company is a vendor that may pursue opportunities alone or as a joint-venture partner.
type Company struct {
	ID                string    `json:"id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Description       string    `json:"description,omitempty" yaml:"description"`
	UEI               string    `json:"uei,omitempty" yaml:"uei"`
	PrimaryNAICS      string    `json:"primaryNaics,omitempty" yaml:"primary_naics"`
	OtherNAICS        []string  `json:"otherNaics,omitempty" yaml:"other_naics"`
	EmployeeCount     int       `json:"employeeCount,omitempty" yaml:"employee_count"`
	AnnualRevenue     float64   `json:"annualRevenue,omitempty" yaml:"annual_revenue"`
	SBACertifications []string  `json:"sbaCertifications,omitempty" yaml:"sba_certifications"`
	Certifications    []string  `json:"certifications,omitempty" yaml:"certifications"`
	Embedding         []float32 `json:"-" yaml:"embedding"`
}

// NAICSCodes returns the primary code followed by the other codes, without blanks or duplicates.
func (c Company) NAICSCodes() []string {
	return DistinctCodes(append([]string{c.PrimaryNAICS}, c.OtherNAICS...))
}

// Opportunity is a contract solicitation identified by its notice id.
type Opportunity struct {
	NoticeID           string    `json:"noticeId" yaml:"notice_id"`
	SolicitationNumber string    `json:"solicitationNumber,omitempty" yaml:"solicitation_number"`
	Title              string    `json:"title" yaml:"title"`
	Description        string    `json:"description,omitempty" yaml:"description"`
	Agency             string    `json:"agency,omitempty" yaml:"agency"`
	NAICSCode          string    `json:"naicsCode,omitempty" yaml:"naics_code"`
	SecondaryNAICS     []string  `json:"secondaryNaics,omitempty" yaml:"secondary_naics"`
	SetAsideCode       string    `json:"setAsideCode,omitempty" yaml:"set_aside_code"`
	EstimatedValue     float64   `json:"estimatedValue,omitempty" yaml:"estimated_value"`
	Embedding          []float32 `json:"-" yaml:"embedding"`
}

// NAICSCode is an entry of the industry classification catalog.
type NAICSCode struct {
	Code        string    `json:"code" yaml:"code"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Level       int       `json:"level" yaml:"level"`
	Sector      string    `json:"sector,omitempty" yaml:"sector"`
	Embedding   []float32 `json:"-" yaml:"embedding"`
}

// Entity is a company or an opportunity. Exactly one of the pointers is set, matching Kind.
type Entity struct {
	Kind        Kind         `json:"kind"`
	Company     *Company     `json:"company,omitempty"`
	Opportunity *Opportunity `json:"opportunity,omitempty"`
}

func CompanyEntity(c Company) Entity {
	return Entity{Kind: KindCompany, Company: &c}
}

func OpportunityEntity(o Opportunity) Entity {
	return Entity{Kind: KindOpportunity, Opportunity: &o}
}

// ID returns the company id or the opportunity notice id.
func (e Entity) ID() string {
	switch e.Kind {
	case KindCompany:
		if e.Company != nil {
			return e.Company.ID
		}
	case KindOpportunity:
		if e.Opportunity != nil {
			return e.Opportunity.NoticeID
		}
	}
	return ""
}

// Label returns a human readable name of the entity.
func (e Entity) Label() string {
	switch e.Kind {
	case KindCompany:
		if e.Company != nil {
			return e.Company.Name
		}
	case KindOpportunity:
		if e.Opportunity != nil {
			return e.Opportunity.Title
		}
	}
	return ""
}

// Embedding returns the summary vector of the entity, nil when it has none.
func (e Entity) Embedding() []float32 {
	switch e.Kind {
	case KindCompany:
		if e.Company != nil {
			return e.Company.Embedding
		}
	case KindOpportunity:
		if e.Opportunity != nil {
			return e.Opportunity.Embedding
		}
	}
	return nil
}

// DistinctCodes trims the codes and drops blanks and repeats, keeping the first occurrence order.
func DistinctCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	result := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		result = append(result, code)
	}
	return result
}
