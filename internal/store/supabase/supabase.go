// Package supabase reads and writes records through the Supabase REST API.
// Nearest-neighbour search is not offered here; pair it with the qdrant
// preselector.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

const (
	companiesTable     = "companies"
	opportunitiesTable = "opportunities"
	naicsTable         = "naics"
)

// Config holds Supabase connection configuration.
type Config struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

// Client implements store.Records and store.Writer using Supabase.
type Client struct {
	client   *supabase.Client
	cache    *cache
	cacheTTL time.Duration
	now      func() time.Time
}

// cache keeps exact lookups by "<table>:<column>=<value>".
type cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry[any]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:   client,
		cacheTTL: cfg.CacheTTL,
		cache:    &cache{entries: make(map[string]*cacheEntry[any])},
		now:      time.Now,
	}, nil
}

type companyRow struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	UEI               *string  `json:"uei"`
	PrimaryNAICS      string   `json:"primary_naics"`
	OtherNAICS        []string `json:"other_naics"`
	EmployeeCount     int      `json:"employee_count"`
	AnnualRevenue     float64  `json:"annual_revenue"`
	SBACertifications []string `json:"sba_certifications"`
	Certifications    []string `json:"certifications"`
	Embedding         *string  `json:"embedding"`
}

type opportunityRow struct {
	NoticeID           string   `json:"notice_id"`
	SolicitationNumber string   `json:"solicitation_number"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Agency             string   `json:"agency"`
	NAICSCode          string   `json:"naics_code"`
	SecondaryNAICS     []string `json:"secondary_naics"`
	SetAsideCode       string   `json:"set_aside_code"`
	EstimatedValue     float64  `json:"estimated_value"`
	Embedding          *string  `json:"embedding"`
}

type naicsRow struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Level       int     `json:"level"`
	Sector      string  `json:"sector"`
	Embedding   *string `json:"embedding"`
}

func (c *Client) Company(ctx context.Context, field store.CompanyField, value string) (govcon.Company, error) {
	key := companiesTable + ":" + string(field) + "=" + value
	if cached, ok := c.fromCache(key).(govcon.Company); ok {
		return cached, nil
	}

	var rows []companyRow
	_, err := c.client.From(companiesTable).
		Select("*", "", false).
		Eq(string(field), value).
		ExecuteTo(&rows)
	if err != nil {
		return govcon.Company{}, fmt.Errorf("failed to get company by %s: %w", field, err)
	}
	if len(rows) == 0 {
		return govcon.Company{}, store.ErrNotFound
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	company, err := rows[0].company()
	if err != nil {
		return govcon.Company{}, err
	}

	c.addToCache(key, company)
	return company, nil
}

func (c *Client) SearchCompanies(ctx context.Context, fragment string, limit int) ([]govcon.Company, error) {
	var rows []companyRow
	_, err := c.client.From(companiesTable).
		Select("*", "", false).
		Ilike("name", likePattern(fragment)).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search companies: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return toCompanies(rows)
}

func (c *Client) Opportunity(ctx context.Context, field store.OpportunityField, value string) (govcon.Opportunity, error) {
	key := opportunitiesTable + ":" + string(field) + "=" + value
	if cached, ok := c.fromCache(key).(govcon.Opportunity); ok {
		return cached, nil
	}

	var rows []opportunityRow
	_, err := c.client.From(opportunitiesTable).
		Select("*", "", false).
		Eq(string(field), value).
		ExecuteTo(&rows)
	if err != nil {
		return govcon.Opportunity{}, fmt.Errorf("failed to get opportunity by %s: %w", field, err)
	}
	if len(rows) == 0 {
		return govcon.Opportunity{}, store.ErrNotFound
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].NoticeID < rows[j].NoticeID })
	opportunity, err := rows[0].opportunity()
	if err != nil {
		return govcon.Opportunity{}, err
	}

	c.addToCache(key, opportunity)
	return opportunity, nil
}

func (c *Client) SearchOpportunities(ctx context.Context, field store.OpportunityField, fragment string, limit int) ([]govcon.Opportunity, error) {
	var rows []opportunityRow
	_, err := c.client.From(opportunitiesTable).
		Select("*", "", false).
		Ilike(string(field), likePattern(fragment)).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search opportunities: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].NoticeID < rows[j].NoticeID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return toOpportunities(rows)
}

func (c *Client) CompaniesByID(ctx context.Context, ids []string) ([]govcon.Company, error) {
	if len(ids) == 0 {
		return []govcon.Company{}, nil
	}

	var rows []companyRow
	_, err := c.client.From(companiesTable).
		Select("*", "", false).
		In("id", ids).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get companies: %w", err)
	}
	return toCompanies(rows)
}

func (c *Client) OpportunitiesByID(ctx context.Context, noticeIDs []string) ([]govcon.Opportunity, error) {
	if len(noticeIDs) == 0 {
		return []govcon.Opportunity{}, nil
	}

	var rows []opportunityRow
	_, err := c.client.From(opportunitiesTable).
		Select("*", "", false).
		In("notice_id", noticeIDs).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunities: %w", err)
	}
	return toOpportunities(rows)
}

func (c *Client) NAICSByCode(ctx context.Context, codes []string) ([]govcon.NAICSCode, error) {
	if len(codes) == 0 {
		return []govcon.NAICSCode{}, nil
	}

	var rows []naicsRow
	_, err := c.client.From(naicsTable).
		Select("*", "", false).
		In("code", codes).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get naics codes: %w", err)
	}

	result := make([]govcon.NAICSCode, 0, len(rows))
	for _, r := range rows {
		v, err := parseEmbedding(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding of %s: %w", r.Code, err)
		}
		result = append(result, govcon.NAICSCode{
			Code:        r.Code,
			Title:       r.Title,
			Description: r.Description,
			Level:       r.Level,
			Sector:      r.Sector,
			Embedding:   v,
		})
	}
	return result, nil
}

func (c *Client) UpsertCompany(ctx context.Context, company govcon.Company) error {
	if strings.TrimSpace(company.ID) == "" {
		return errors.New("company id is required")
	}

	row := companyRow{
		ID:                company.ID,
		Name:              company.Name,
		Description:       company.Description,
		PrimaryNAICS:      company.PrimaryNAICS,
		OtherNAICS:        nonNil(company.OtherNAICS),
		EmployeeCount:     company.EmployeeCount,
		AnnualRevenue:     company.AnnualRevenue,
		SBACertifications: nonNil(company.SBACertifications),
		Certifications:    nonNil(company.Certifications),
		Embedding:         formatEmbedding(company.Embedding),
	}
	if company.UEI != "" {
		row.UEI = &company.UEI
	}

	if _, _, err := c.client.From(companiesTable).Upsert(row, "id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", company.ID, err)
	}
	c.invalidate(companiesTable + ":")
	return nil
}

func (c *Client) UpsertOpportunity(ctx context.Context, o govcon.Opportunity) error {
	if strings.TrimSpace(o.NoticeID) == "" {
		return errors.New("opportunity notice id is required")
	}

	row := opportunityRow{
		NoticeID:           o.NoticeID,
		SolicitationNumber: o.SolicitationNumber,
		Title:              o.Title,
		Description:        o.Description,
		Agency:             o.Agency,
		NAICSCode:          o.NAICSCode,
		SecondaryNAICS:     nonNil(o.SecondaryNAICS),
		SetAsideCode:       o.SetAsideCode,
		EstimatedValue:     o.EstimatedValue,
		Embedding:          formatEmbedding(o.Embedding),
	}

	if _, _, err := c.client.From(opportunitiesTable).Upsert(row, "notice_id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to upsert opportunity %s: %w", o.NoticeID, err)
	}
	c.invalidate(opportunitiesTable + ":")
	return nil
}

func (c *Client) UpsertNAICS(ctx context.Context, n govcon.NAICSCode) error {
	if strings.TrimSpace(n.Code) == "" {
		return errors.New("naics code is required")
	}

	row := naicsRow{
		Code:        n.Code,
		Title:       n.Title,
		Description: n.Description,
		Level:       n.Level,
		Sector:      n.Sector,
		Embedding:   formatEmbedding(n.Embedding),
	}

	if _, _, err := c.client.From(naicsTable).Upsert(row, "code", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to upsert naics %s: %w", n.Code, err)
	}
	return nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

func (c *Client) fromCache(key string) any {
	c.cache.mu.RLock()
	defer c.cache.mu.RUnlock()

	if e, ok := c.cache.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			return e.value
		}
	}
	return nil
}

func (c *Client) addToCache(key string, value any) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	c.cache.entries[key] = &cacheEntry[any]{
		value:     value,
		expiresAt: c.now().Add(c.cacheTTL),
	}
}

func (c *Client) invalidate(prefix string) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	for key := range c.cache.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache.entries, key)
		}
	}
}

func (r companyRow) company() (govcon.Company, error) {
	v, err := parseEmbedding(r.Embedding)
	if err != nil {
		return govcon.Company{}, fmt.Errorf("failed to decode embedding of %s: %w", r.ID, err)
	}

	c := govcon.Company{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		PrimaryNAICS:      r.PrimaryNAICS,
		OtherNAICS:        r.OtherNAICS,
		EmployeeCount:     r.EmployeeCount,
		AnnualRevenue:     r.AnnualRevenue,
		SBACertifications: r.SBACertifications,
		Certifications:    r.Certifications,
		Embedding:         v,
	}
	if r.UEI != nil {
		c.UEI = *r.UEI
	}
	return c, nil
}

func (r opportunityRow) opportunity() (govcon.Opportunity, error) {
	v, err := parseEmbedding(r.Embedding)
	if err != nil {
		return govcon.Opportunity{}, fmt.Errorf("failed to decode embedding of %s: %w", r.NoticeID, err)
	}

	return govcon.Opportunity{
		NoticeID:           r.NoticeID,
		SolicitationNumber: r.SolicitationNumber,
		Title:              r.Title,
		Description:        r.Description,
		Agency:             r.Agency,
		NAICSCode:          r.NAICSCode,
		SecondaryNAICS:     r.SecondaryNAICS,
		SetAsideCode:       r.SetAsideCode,
		EstimatedValue:     r.EstimatedValue,
		Embedding:          v,
	}, nil
}

func toCompanies(rows []companyRow) ([]govcon.Company, error) {
	result := make([]govcon.Company, 0, len(rows))
	for _, r := range rows {
		c, err := r.company()
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func toOpportunities(rows []opportunityRow) ([]govcon.Opportunity, error) {
	result := make([]govcon.Opportunity, 0, len(rows))
	for _, r := range rows {
		o, err := r.opportunity()
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

// pgvector columns travel as their text form.
func parseEmbedding(raw *string) ([]float32, error) {
	if raw == nil {
		return nil, nil
	}
	return store.ParseVector(*raw)
}

func formatEmbedding(v []float32) *string {
	if len(v) == 0 {
		return nil
	}
	s := store.FormatVector(v)
	return &s
}

// likePattern wraps the fragment for PostgREST ilike, where * is the wildcard.
func likePattern(fragment string) string {
	return "*" + strings.ReplaceAll(fragment, "*", "") + "*"
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var (
	_ store.Records = (*Client)(nil)
	_ store.Writer  = (*Client)(nil)
)
