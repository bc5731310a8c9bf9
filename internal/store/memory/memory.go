// Package memory keeps records in process memory. It backs local runs from a
// YAML seed file and the tests of packages that need a store.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

// Dataset is the layout of a seed file.
type Dataset struct {
	Companies     []govcon.Company     `yaml:"companies"`
	Opportunities []govcon.Opportunity `yaml:"opportunities"`
	NAICS         []govcon.NAICSCode   `yaml:"naics"`
}

// Store is a thread-safe in-memory implementation of store.Records, store.Writer and store.Preselector.
type Store struct {
	mu            sync.RWMutex
	companies     map[string]govcon.Company
	opportunities map[string]govcon.Opportunity
	codes         map[string]govcon.NAICSCode
}

func New(data Dataset) *Store {
	s := &Store{
		companies:     make(map[string]govcon.Company),
		opportunities: make(map[string]govcon.Opportunity),
		codes:         make(map[string]govcon.NAICSCode),
	}
	for _, c := range data.Companies {
		s.companies[c.ID] = c
	}
	for _, o := range data.Opportunities {
		s.opportunities[o.NoticeID] = o
	}
	for _, n := range data.NAICS {
		s.codes[n.Code] = n
	}
	return s
}

// Load reads a YAML seed file.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %q: %w", path, err)
	}

	var data Dataset
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing seed file %q: %w", path, err)
	}

	return New(data), nil
}

func (s *Store) Company(_ context.Context, field store.CompanyField, value string) (govcon.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if field == store.CompanyID {
		if c, ok := s.companies[value]; ok {
			return c, nil
		}
		return govcon.Company{}, store.ErrNotFound
	}

	for _, c := range s.sortedCompanies() {
		switch field {
		case store.CompanyUEI:
			if c.UEI != "" && c.UEI == value {
				return c, nil
			}
		case store.CompanyName:
			if c.Name == value {
				return c, nil
			}
		default:
			return govcon.Company{}, fmt.Errorf("unsupported company field %q", field)
		}
	}

	return govcon.Company{}, store.ErrNotFound
}

func (s *Store) SearchCompanies(_ context.Context, fragment string, limit int) ([]govcon.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []govcon.Company
	for _, c := range s.sortedCompanies() {
		if limit > 0 && len(found) >= limit {
			break
		}
		if govcon.ContainsFold(c.Name, fragment) {
			found = append(found, c)
		}
	}
	return found, nil
}

func (s *Store) Opportunity(_ context.Context, field store.OpportunityField, value string) (govcon.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if field == store.OpportunityNoticeID {
		if o, ok := s.opportunities[value]; ok {
			return o, nil
		}
		return govcon.Opportunity{}, store.ErrNotFound
	}

	for _, o := range s.sortedOpportunities() {
		v, err := opportunityField(o, field)
		if err != nil {
			return govcon.Opportunity{}, err
		}
		if v != "" && v == value {
			return o, nil
		}
	}

	return govcon.Opportunity{}, store.ErrNotFound
}

func (s *Store) SearchOpportunities(_ context.Context, field store.OpportunityField, fragment string, limit int) ([]govcon.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []govcon.Opportunity
	for _, o := range s.sortedOpportunities() {
		if limit > 0 && len(found) >= limit {
			break
		}
		v, err := opportunityField(o, field)
		if err != nil {
			return nil, err
		}
		if govcon.ContainsFold(v, fragment) {
			found = append(found, o)
		}
	}
	return found, nil
}

func (s *Store) CompaniesByID(_ context.Context, ids []string) ([]govcon.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]govcon.Company, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.companies[id]; ok {
			found = append(found, c)
		}
	}
	return found, nil
}

func (s *Store) OpportunitiesByID(_ context.Context, noticeIDs []string) ([]govcon.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]govcon.Opportunity, 0, len(noticeIDs))
	for _, id := range noticeIDs {
		if o, ok := s.opportunities[id]; ok {
			found = append(found, o)
		}
	}
	return found, nil
}

func (s *Store) NAICSByCode(_ context.Context, codes []string) ([]govcon.NAICSCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]govcon.NAICSCode, 0, len(codes))
	for _, code := range codes {
		if n, ok := s.codes[code]; ok {
			found = append(found, n)
		}
	}
	return found, nil
}

func (s *Store) UpsertCompany(_ context.Context, c govcon.Company) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("company id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
	return nil
}

func (s *Store) UpsertOpportunity(_ context.Context, o govcon.Opportunity) error {
	if strings.TrimSpace(o.NoticeID) == "" {
		return fmt.Errorf("opportunity notice id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities[o.NoticeID] = o
	return nil
}

func (s *Store) UpsertNAICS(_ context.Context, n govcon.NAICSCode) error {
	if strings.TrimSpace(n.Code) == "" {
		return fmt.Errorf("naics code is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[n.Code] = n
	return nil
}

// Preselect ranks every stored record of the pool by brute-force cosine distance.
func (s *Store) Preselect(_ context.Context, q store.Query) ([]store.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []store.Vectored
	switch q.Pool {
	case govcon.KindCompany:
		for id, c := range s.companies {
			candidates = append(candidates, store.Vectored{ID: id, Vector: c.Embedding})
		}
	case govcon.KindOpportunity:
		for id, o := range s.opportunities {
			candidates = append(candidates, store.Vectored{ID: id, Vector: o.Embedding})
		}
	case govcon.KindNAICS:
		levels := make(map[int]struct{}, len(q.Levels))
		for _, l := range q.Levels {
			levels[l] = struct{}{}
		}
		for code, n := range s.codes {
			if _, ok := levels[n.Level]; len(levels) > 0 && !ok {
				continue
			}
			candidates = append(candidates, store.Vectored{ID: code, Vector: n.Embedding})
		}
	default:
		return nil, fmt.Errorf("unsupported pool %q", q.Pool)
	}

	return store.Nearest(q.Vector, candidates, q.Exclude, q.Limit), nil
}

func (s *Store) sortedCompanies() []govcon.Company {
	out := make([]govcon.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) sortedOpportunities() []govcon.Opportunity {
	out := make([]govcon.Opportunity, 0, len(s.opportunities))
	for _, o := range s.opportunities {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoticeID < out[j].NoticeID })
	return out
}

func opportunityField(o govcon.Opportunity, field store.OpportunityField) (string, error) {
	switch field {
	case store.OpportunityNoticeID:
		return o.NoticeID, nil
	case store.OpportunitySolicitation:
		return o.SolicitationNumber, nil
	case store.OpportunityTitle:
		return o.Title, nil
	default:
		return "", fmt.Errorf("unsupported opportunity field %q", field)
	}
}

var (
	_ store.Records     = (*Store)(nil)
	_ store.Writer      = (*Store)(nil)
	_ store.Preselector = (*Store)(nil)
)
