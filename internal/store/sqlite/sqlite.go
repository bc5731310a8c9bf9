// Package sqlite persists records in a single SQLite file. Nearest-neighbour
// preselection is a brute-force cosine scan over the stored embeddings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	uei                TEXT UNIQUE,
	primary_naics      TEXT NOT NULL DEFAULT '',
	other_naics        TEXT NOT NULL DEFAULT '[]',
	employee_count     INTEGER NOT NULL DEFAULT 0,
	annual_revenue     REAL NOT NULL DEFAULT 0,
	sba_certifications TEXT NOT NULL DEFAULT '[]',
	certifications     TEXT NOT NULL DEFAULT '[]',
	embedding          TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS opportunities (
	notice_id           TEXT PRIMARY KEY,
	solicitation_number TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	agency              TEXT NOT NULL DEFAULT '',
	naics_code          TEXT NOT NULL DEFAULT '',
	secondary_naics     TEXT NOT NULL DEFAULT '[]',
	set_aside_code      TEXT NOT NULL DEFAULT '',
	estimated_value     REAL NOT NULL DEFAULT 0,
	embedding           TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS naics (
	code        TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	level       INTEGER NOT NULL,
	sector      TEXT NOT NULL DEFAULT '',
	embedding   TEXT NOT NULL DEFAULT '[]'
);
`

// Store implements store.Records, store.Writer and store.Preselector on SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating when needed) the database file and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type companyRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Description       string         `db:"description"`
	UEI               sql.NullString `db:"uei"`
	PrimaryNAICS      string         `db:"primary_naics"`
	OtherNAICS        string         `db:"other_naics"`
	EmployeeCount     int            `db:"employee_count"`
	AnnualRevenue     float64        `db:"annual_revenue"`
	SBACertifications string         `db:"sba_certifications"`
	Certifications    string         `db:"certifications"`
	Embedding         string         `db:"embedding"`
}

type opportunityRow struct {
	NoticeID           string  `db:"notice_id"`
	SolicitationNumber string  `db:"solicitation_number"`
	Title              string  `db:"title"`
	Description        string  `db:"description"`
	Agency             string  `db:"agency"`
	NAICSCode          string  `db:"naics_code"`
	SecondaryNAICS     string  `db:"secondary_naics"`
	SetAsideCode       string  `db:"set_aside_code"`
	EstimatedValue     float64 `db:"estimated_value"`
	Embedding          string  `db:"embedding"`
}

type naicsRow struct {
	Code        string `db:"code"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Level       int    `db:"level"`
	Sector      string `db:"sector"`
	Embedding   string `db:"embedding"`
}

var companyColumns = map[store.CompanyField]string{
	store.CompanyID:   "id",
	store.CompanyUEI:  "uei",
	store.CompanyName: "name",
}

var opportunityColumns = map[store.OpportunityField]string{
	store.OpportunityNoticeID:     "notice_id",
	store.OpportunitySolicitation: "solicitation_number",
	store.OpportunityTitle:        "title",
}

func (s *Store) Company(ctx context.Context, field store.CompanyField, value string) (govcon.Company, error) {
	column, ok := companyColumns[field]
	if !ok {
		return govcon.Company{}, fmt.Errorf("unsupported company field %q", field)
	}

	var row companyRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM companies WHERE `+column+` = ? LIMIT 1`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return govcon.Company{}, store.ErrNotFound
	}
	if err != nil {
		return govcon.Company{}, fmt.Errorf("get company by %s: %w", field, err)
	}

	return row.company()
}

func (s *Store) SearchCompanies(ctx context.Context, fragment string, limit int) ([]govcon.Company, error) {
	var rows []companyRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM companies WHERE name LIKE '%' || ? || '%' ESCAPE '\' ORDER BY id LIMIT ?`, escapeLike(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("search companies: %w", err)
	}
	return companies(rows)
}

func (s *Store) Opportunity(ctx context.Context, field store.OpportunityField, value string) (govcon.Opportunity, error) {
	column, ok := opportunityColumns[field]
	if !ok {
		return govcon.Opportunity{}, fmt.Errorf("unsupported opportunity field %q", field)
	}

	var row opportunityRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM opportunities WHERE `+column+` = ? LIMIT 1`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return govcon.Opportunity{}, store.ErrNotFound
	}
	if err != nil {
		return govcon.Opportunity{}, fmt.Errorf("get opportunity by %s: %w", field, err)
	}

	return row.opportunity()
}

func (s *Store) SearchOpportunities(ctx context.Context, field store.OpportunityField, fragment string, limit int) ([]govcon.Opportunity, error) {
	column, ok := opportunityColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported opportunity field %q", field)
	}

	var rows []opportunityRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM opportunities WHERE `+column+` LIKE '%' || ? || '%' ESCAPE '\' ORDER BY notice_id LIMIT ?`, escapeLike(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("search opportunities: %w", err)
	}
	return opportunities(rows)
}

func (s *Store) CompaniesByID(ctx context.Context, ids []string) ([]govcon.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM companies WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build companies query: %w", err)
	}

	var rows []companyRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get companies: %w", err)
	}
	return companies(rows)
}

func (s *Store) OpportunitiesByID(ctx context.Context, noticeIDs []string) ([]govcon.Opportunity, error) {
	if len(noticeIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM opportunities WHERE notice_id IN (?)`, noticeIDs)
	if err != nil {
		return nil, fmt.Errorf("build opportunities query: %w", err)
	}

	var rows []opportunityRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get opportunities: %w", err)
	}
	return opportunities(rows)
}

func (s *Store) NAICSByCode(ctx context.Context, codes []string) ([]govcon.NAICSCode, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM naics WHERE code IN (?)`, codes)
	if err != nil {
		return nil, fmt.Errorf("build naics query: %w", err)
	}

	var rows []naicsRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get naics codes: %w", err)
	}

	result := make([]govcon.NAICSCode, 0, len(rows))
	for _, row := range rows {
		code, err := row.naics()
		if err != nil {
			return nil, err
		}
		result = append(result, code)
	}
	return result, nil
}

func (s *Store) UpsertCompany(ctx context.Context, c govcon.Company) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("company id is required")
	}

	var uei sql.NullString
	if c.UEI != "" {
		uei = sql.NullString{String: c.UEI, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO companies
		(id, name, description, uei, primary_naics, other_naics, employee_count, annual_revenue, sba_certifications, certifications, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, uei, c.PrimaryNAICS, encodeList(c.OtherNAICS), c.EmployeeCount, c.AnnualRevenue,
		encodeList(c.SBACertifications), encodeList(c.Certifications), store.FormatVector(c.Embedding))
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) UpsertOpportunity(ctx context.Context, o govcon.Opportunity) error {
	if strings.TrimSpace(o.NoticeID) == "" {
		return errors.New("opportunity notice id is required")
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO opportunities
		(notice_id, solicitation_number, title, description, agency, naics_code, secondary_naics, set_aside_code, estimated_value, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.NoticeID, o.SolicitationNumber, o.Title, o.Description, o.Agency, o.NAICSCode, encodeList(o.SecondaryNAICS),
		o.SetAsideCode, o.EstimatedValue, store.FormatVector(o.Embedding))
	if err != nil {
		return fmt.Errorf("upsert opportunity %s: %w", o.NoticeID, err)
	}
	return nil
}

func (s *Store) UpsertNAICS(ctx context.Context, n govcon.NAICSCode) error {
	if strings.TrimSpace(n.Code) == "" {
		return errors.New("naics code is required")
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO naics (code, title, description, level, sector, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Code, n.Title, n.Description, n.Level, n.Sector, store.FormatVector(n.Embedding))
	if err != nil {
		return fmt.Errorf("upsert naics %s: %w", n.Code, err)
	}
	return nil
}

type vectorRow struct {
	ID        string `db:"id"`
	Level     int    `db:"level"`
	Embedding string `db:"embedding"`
}

// Preselect scans every embedded record of the pool.
func (s *Store) Preselect(ctx context.Context, q store.Query) ([]store.Neighbor, error) {
	var query string
	switch q.Pool {
	case govcon.KindCompany:
		query = `SELECT id, 0 AS level, embedding FROM companies WHERE embedding != '[]'`
	case govcon.KindOpportunity:
		query = `SELECT notice_id AS id, 0 AS level, embedding FROM opportunities WHERE embedding != '[]'`
	case govcon.KindNAICS:
		query = `SELECT code AS id, level, embedding FROM naics WHERE embedding != '[]'`
	default:
		return nil, fmt.Errorf("unsupported pool %q", q.Pool)
	}

	var rows []vectorRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("scan %s embeddings: %w", q.Pool, err)
	}

	levels := make(map[int]struct{}, len(q.Levels))
	for _, l := range q.Levels {
		levels[l] = struct{}{}
	}

	candidates := make([]store.Vectored, 0, len(rows))
	for _, row := range rows {
		if _, ok := levels[row.Level]; q.Pool == govcon.KindNAICS && len(levels) > 0 && !ok {
			continue
		}
		v, err := store.ParseVector(row.Embedding)
		if err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", row.ID, err)
		}
		candidates = append(candidates, store.Vectored{ID: row.ID, Vector: v})
	}

	return store.Nearest(q.Vector, candidates, q.Exclude, q.Limit), nil
}

func (r companyRow) company() (govcon.Company, error) {
	c := govcon.Company{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		UEI:           r.UEI.String,
		PrimaryNAICS:  r.PrimaryNAICS,
		EmployeeCount: r.EmployeeCount,
		AnnualRevenue: r.AnnualRevenue,
	}

	var err error
	if c.OtherNAICS, err = decodeList(r.OtherNAICS); err != nil {
		return c, fmt.Errorf("decode other_naics of %s: %w", r.ID, err)
	}
	if c.SBACertifications, err = decodeList(r.SBACertifications); err != nil {
		return c, fmt.Errorf("decode sba_certifications of %s: %w", r.ID, err)
	}
	if c.Certifications, err = decodeList(r.Certifications); err != nil {
		return c, fmt.Errorf("decode certifications of %s: %w", r.ID, err)
	}
	if c.Embedding, err = store.ParseVector(r.Embedding); err != nil {
		return c, fmt.Errorf("decode embedding of %s: %w", r.ID, err)
	}
	return c, nil
}

func (r opportunityRow) opportunity() (govcon.Opportunity, error) {
	o := govcon.Opportunity{
		NoticeID:           r.NoticeID,
		SolicitationNumber: r.SolicitationNumber,
		Title:              r.Title,
		Description:        r.Description,
		Agency:             r.Agency,
		NAICSCode:          r.NAICSCode,
		SetAsideCode:       r.SetAsideCode,
		EstimatedValue:     r.EstimatedValue,
	}

	var err error
	if o.SecondaryNAICS, err = decodeList(r.SecondaryNAICS); err != nil {
		return o, fmt.Errorf("decode secondary_naics of %s: %w", r.NoticeID, err)
	}
	if o.Embedding, err = store.ParseVector(r.Embedding); err != nil {
		return o, fmt.Errorf("decode embedding of %s: %w", r.NoticeID, err)
	}
	return o, nil
}

func (r naicsRow) naics() (govcon.NAICSCode, error) {
	v, err := store.ParseVector(r.Embedding)
	if err != nil {
		return govcon.NAICSCode{}, fmt.Errorf("decode embedding of %s: %w", r.Code, err)
	}
	return govcon.NAICSCode{
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		Level:       r.Level,
		Sector:      r.Sector,
		Embedding:   v,
	}, nil
}

func companies(rows []companyRow) ([]govcon.Company, error) {
	result := make([]govcon.Company, 0, len(rows))
	for _, row := range rows {
		c, err := row.company()
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func opportunities(rows []opportunityRow) ([]govcon.Opportunity, error) {
	result := make([]govcon.Opportunity, 0, len(rows))
	for _, row := range rows {
		o, err := row.opportunity()
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, _ := json.Marshal(values)
	return string(raw)
}

func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

var (
	_ store.Records     = (*Store)(nil)
	_ store.Writer      = (*Store)(nil)
	_ store.Preselector = (*Store)(nil)
)

// escapeLike makes the LIKE wildcards in s match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
