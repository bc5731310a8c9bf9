// Package postgres stores records in PostgreSQL and answers nearest-neighbour
// queries with the pgvector cosine operator.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/store"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	uei                TEXT UNIQUE,
	primary_naics      TEXT NOT NULL DEFAULT '',
	other_naics        TEXT[] NOT NULL DEFAULT '{}',
	employee_count     INTEGER NOT NULL DEFAULT 0,
	annual_revenue     DOUBLE PRECISION NOT NULL DEFAULT 0,
	sba_certifications TEXT[] NOT NULL DEFAULT '{}',
	certifications     TEXT[] NOT NULL DEFAULT '{}',
	embedding          vector
);

CREATE TABLE IF NOT EXISTS opportunities (
	notice_id           TEXT PRIMARY KEY,
	solicitation_number TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	agency              TEXT NOT NULL DEFAULT '',
	naics_code          TEXT NOT NULL DEFAULT '',
	secondary_naics     TEXT[] NOT NULL DEFAULT '{}',
	set_aside_code      TEXT NOT NULL DEFAULT '',
	estimated_value     DOUBLE PRECISION NOT NULL DEFAULT 0,
	embedding           vector
);

CREATE TABLE IF NOT EXISTS naics (
	code        TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	level       INTEGER NOT NULL,
	sector      TEXT NOT NULL DEFAULT '',
	embedding   vector
);
`

const (
	companyColumns = `id, name, description, COALESCE(uei, ''), primary_naics, other_naics,
		employee_count, annual_revenue, sba_certifications, certifications, COALESCE(embedding::text, '')`
	opportunityColumns = `notice_id, solicitation_number, title, description, agency, naics_code,
		secondary_naics, set_aside_code, estimated_value, COALESCE(embedding::text, '')`
	naicsColumns = `code, title, description, level, sector, COALESCE(embedding::text, '')`
)

// Store is a PostgreSQL-backed implementation of store.Records, store.Writer and store.Preselector.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.Records     = (*Store)(nil)
	_ store.Writer      = (*Store)(nil)
	_ store.Preselector = (*Store)(nil)
)

// New connects a pool and optionally applies the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: connect")
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "postgres: apply schema")
		}
	}

	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func companyColumn(field store.CompanyField) (string, error) {
	switch field {
	case store.CompanyID:
		return "id", nil
	case store.CompanyUEI:
		return "uei", nil
	case store.CompanyName:
		return "name", nil
	}
	return "", eris.Errorf("postgres: unsupported company field %q", field)
}

func opportunityColumn(field store.OpportunityField) (string, error) {
	switch field {
	case store.OpportunityNoticeID:
		return "notice_id", nil
	case store.OpportunitySolicitation:
		return "solicitation_number", nil
	case store.OpportunityTitle:
		return "title", nil
	}
	return "", eris.Errorf("postgres: unsupported opportunity field %q", field)
}

func (s *Store) Company(ctx context.Context, field store.CompanyField, value string) (govcon.Company, error) {
	column, err := companyColumn(field)
	if err != nil {
		return govcon.Company{}, err
	}

	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE `+column+` = $1 ORDER BY id LIMIT 1`, value)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return govcon.Company{}, store.ErrNotFound
	}
	if err != nil {
		return govcon.Company{}, eris.Wrapf(err, "postgres: get company by %s", field)
	}
	return c, nil
}

func (s *Store) SearchCompanies(ctx context.Context, fragment string, limit int) ([]govcon.Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies
		WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT $2`, escapeLike(fragment), limitArg(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search companies")
	}
	return collectCompanies(rows)
}

func (s *Store) Opportunity(ctx context.Context, field store.OpportunityField, value string) (govcon.Opportunity, error) {
	column, err := opportunityColumn(field)
	if err != nil {
		return govcon.Opportunity{}, err
	}

	row := s.pool.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE `+column+` = $1 ORDER BY notice_id LIMIT 1`, value)
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return govcon.Opportunity{}, store.ErrNotFound
	}
	if err != nil {
		return govcon.Opportunity{}, eris.Wrapf(err, "postgres: get opportunity by %s", field)
	}
	return o, nil
}

func (s *Store) SearchOpportunities(ctx context.Context, field store.OpportunityField, fragment string, limit int) ([]govcon.Opportunity, error) {
	column, err := opportunityColumn(field)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+opportunityColumns+` FROM opportunities
		WHERE `+column+` ILIKE '%' || $1 || '%' ORDER BY notice_id LIMIT $2`, escapeLike(fragment), limitArg(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search opportunities")
	}
	return collectOpportunities(rows)
}

func (s *Store) CompaniesByID(ctx context.Context, ids []string) ([]govcon.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get companies")
	}
	return collectCompanies(rows)
}

func (s *Store) OpportunitiesByID(ctx context.Context, noticeIDs []string) ([]govcon.Opportunity, error) {
	if len(noticeIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE notice_id = ANY($1)`, noticeIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get opportunities")
	}
	return collectOpportunities(rows)
}

func (s *Store) NAICSByCode(ctx context.Context, codes []string) ([]govcon.NAICSCode, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+naicsColumns+` FROM naics WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get naics codes")
	}
	defer rows.Close()

	var result []govcon.NAICSCode
	for rows.Next() {
		var (
			n   govcon.NAICSCode
			vec string
		)
		if err := rows.Scan(&n.Code, &n.Title, &n.Description, &n.Level, &n.Sector, &vec); err != nil {
			return nil, eris.Wrap(err, "postgres: scan naics")
		}
		if n.Embedding, err = store.ParseVector(vec); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode embedding of %s", n.Code)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate naics")
	}
	return result, nil
}

func (s *Store) UpsertCompany(ctx context.Context, c govcon.Company) error {
	if strings.TrimSpace(c.ID) == "" {
		return eris.New("postgres: company id is required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (id, name, description, uei, primary_naics, other_naics, employee_count,
			annual_revenue, sba_certifications, certifications, embedding)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11::vector)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, uei = EXCLUDED.uei,
			primary_naics = EXCLUDED.primary_naics, other_naics = EXCLUDED.other_naics,
			employee_count = EXCLUDED.employee_count, annual_revenue = EXCLUDED.annual_revenue,
			sba_certifications = EXCLUDED.sba_certifications, certifications = EXCLUDED.certifications,
			embedding = EXCLUDED.embedding`,
		c.ID, c.Name, c.Description, c.UEI, c.PrimaryNAICS, nonNil(c.OtherNAICS), c.EmployeeCount,
		c.AnnualRevenue, nonNil(c.SBACertifications), nonNil(c.Certifications), vectorArg(c.Embedding))
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert company %s", c.ID)
	}
	return nil
}

func (s *Store) UpsertOpportunity(ctx context.Context, o govcon.Opportunity) error {
	if strings.TrimSpace(o.NoticeID) == "" {
		return eris.New("postgres: opportunity notice id is required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (notice_id, solicitation_number, title, description, agency, naics_code,
			secondary_naics, set_aside_code, estimated_value, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
		ON CONFLICT (notice_id) DO UPDATE SET
			solicitation_number = EXCLUDED.solicitation_number, title = EXCLUDED.title,
			description = EXCLUDED.description, agency = EXCLUDED.agency, naics_code = EXCLUDED.naics_code,
			secondary_naics = EXCLUDED.secondary_naics, set_aside_code = EXCLUDED.set_aside_code,
			estimated_value = EXCLUDED.estimated_value, embedding = EXCLUDED.embedding`,
		o.NoticeID, o.SolicitationNumber, o.Title, o.Description, o.Agency, o.NAICSCode,
		nonNil(o.SecondaryNAICS), o.SetAsideCode, o.EstimatedValue, vectorArg(o.Embedding))
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert opportunity %s", o.NoticeID)
	}
	return nil
}

func (s *Store) UpsertNAICS(ctx context.Context, n govcon.NAICSCode) error {
	if strings.TrimSpace(n.Code) == "" {
		return eris.New("postgres: naics code is required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO naics (code, title, description, level, sector, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (code) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, level = EXCLUDED.level,
			sector = EXCLUDED.sector, embedding = EXCLUDED.embedding`,
		n.Code, n.Title, n.Description, n.Level, n.Sector, vectorArg(n.Embedding))
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert naics %s", n.Code)
	}
	return nil
}

// Preselect orders the pool by pgvector cosine distance (<=>) to the query vector.
func (s *Store) Preselect(ctx context.Context, q store.Query) ([]store.Neighbor, error) {
	var table, key, extra string
	switch q.Pool {
	case govcon.KindCompany:
		table, key = "companies", "id"
	case govcon.KindOpportunity:
		table, key = "opportunities", "notice_id"
	case govcon.KindNAICS:
		table, key = "naics", "code"
		extra = " AND (cardinality($4::int[]) = 0 OR level = ANY($4::int[]))"
	default:
		return nil, eris.Errorf("postgres: unsupported pool %q", q.Pool)
	}

	query := `SELECT ` + key + `, embedding <=> $1::vector AS distance FROM ` + table + `
		WHERE embedding IS NOT NULL AND NOT (` + key + ` = ANY($2))` + extra + `
		ORDER BY distance, ` + key + ` LIMIT $3`

	args := []any{store.FormatVector(q.Vector), nonNil(q.Exclude), limitArg(q.Limit)}
	if q.Pool == govcon.KindNAICS {
		levels := q.Levels
		if levels == nil {
			levels = []int{}
		}
		args = append(args, levels)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: preselect %s", q.Pool)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, eris.Wrap(err, "postgres: scan neighbor")
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate neighbors")
	}
	return neighbors, nil
}

func scanCompany(row pgx.Row) (govcon.Company, error) {
	var (
		c   govcon.Company
		vec string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.UEI, &c.PrimaryNAICS, &c.OtherNAICS,
		&c.EmployeeCount, &c.AnnualRevenue, &c.SBACertifications, &c.Certifications, &vec); err != nil {
		return govcon.Company{}, err
	}

	var err error
	if c.Embedding, err = store.ParseVector(vec); err != nil {
		return govcon.Company{}, eris.Wrapf(err, "decode embedding of %s", c.ID)
	}
	return c, nil
}

func scanOpportunity(row pgx.Row) (govcon.Opportunity, error) {
	var (
		o   govcon.Opportunity
		vec string
	)
	if err := row.Scan(&o.NoticeID, &o.SolicitationNumber, &o.Title, &o.Description, &o.Agency, &o.NAICSCode,
		&o.SecondaryNAICS, &o.SetAsideCode, &o.EstimatedValue, &vec); err != nil {
		return govcon.Opportunity{}, err
	}

	var err error
	if o.Embedding, err = store.ParseVector(vec); err != nil {
		return govcon.Opportunity{}, eris.Wrapf(err, "decode embedding of %s", o.NoticeID)
	}
	return o, nil
}

func collectCompanies(rows pgx.Rows) ([]govcon.Company, error) {
	defer rows.Close()

	var result []govcon.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate companies")
	}
	return result, nil
}

func collectOpportunities(rows pgx.Rows) ([]govcon.Opportunity, error) {
	defer rows.Close()

	var result []govcon.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate opportunities")
	}
	return result, nil
}

// vectorArg returns nil for an empty vector so the column stays NULL.
func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return store.FormatVector(v)
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
