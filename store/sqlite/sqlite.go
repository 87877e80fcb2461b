/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements policy.Store / policy.AdminStore plus the project and
  company records the admin API manages. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  policy_rules: One row per (city, year, period); all twenty contribution
                figures stored as TEXT-encoded decimals to keep exact
                values (rates like 0.0032 must round-trip)
  projects:     Admin grouping of companies
  companies:    Companies attached to a project

UNIQUENESS:
  A UNIQUE index on (city, year, period) is the store-side half of
  duplicate protection: two concurrent imports of the same triple race,
  and this index rejects the loser. The importer surfaces that rejection
  as a per-row store failure.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - policy/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shebao/policy-engine/policy"
)

// Store implements policy.AdminStore plus project/company persistence.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema. The twenty figure columns come
// from the shared column vocabulary so schema and sheet cannot drift.
func (s *Store) migrate() error {
	var figureCols strings.Builder
	for _, col := range policy.NumericColumns() {
		figureCols.WriteString(fmt.Sprintf("\t\t%s TEXT NOT NULL DEFAULT '0',\n", col))
	}

	schema := fmt.Sprintf(`
	-- Policy rules: one row per (city, year, period)
	CREATE TABLE IF NOT EXISTS policy_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		city TEXT NOT NULL,
		year INTEGER NOT NULL,
		period TEXT NOT NULL,
		effective_start TEXT NOT NULL,
		effective_end TEXT NOT NULL,
%s		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- The triple is the conceptual identity; the derived id is its slug.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_policy_rules_triple
		ON policy_rules(city, year, period);
	CREATE INDEX IF NOT EXISTS idx_policy_rules_city
		ON policy_rules(city);
	CREATE INDEX IF NOT EXISTS idx_policy_rules_year_period
		ON policy_rules(year, period);

	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Companies (attached to a project)
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		city TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_companies_project
		ON companies(project_id);
	`, figureCols.String())

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POLICY RULES (policy.AdminStore interface)
// =============================================================================

func ruleColumns() []string {
	cols := []string{"id", "name", "city", "year", "period", "effective_start", "effective_end"}
	cols = append(cols, policy.NumericColumns()...)
	return append(cols, "created_at", "updated_at")
}

// FindRule returns the rule for the triple, or (nil, nil) when absent.
func (s *Store) FindRule(ctx context.Context, city string, year int, period policy.Period) (*policy.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM policy_rules WHERE city = ? AND year = ? AND period = ?`,
		strings.Join(ruleColumns(), ", "))
	return s.queryRule(ctx, query, city, year, string(period))
}

// GetRule returns the rule with the given id, or (nil, nil) when absent.
func (s *Store) GetRule(ctx context.Context, id string) (*policy.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM policy_rules WHERE id = ?`,
		strings.Join(ruleColumns(), ", "))
	return s.queryRule(ctx, query, id)
}

// InsertRule persists a rule and returns the stored record. A unique
// constraint violation on the triple maps to policy.ErrRuleExists.
func (s *Store) InsertRule(ctx context.Context, rule policy.Rule) (*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols := ruleColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO policy_rules (%s) VALUES (%s)`,
		strings.Join(cols, ", "), placeholders)

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	args := []any{
		rule.ID,
		rule.Name,
		rule.City,
		rule.Year,
		string(rule.Period),
		rule.EffectiveStart.Format(time.DateOnly),
		rule.EffectiveEnd.Format(time.DateOnly),
	}
	for _, col := range policy.NumericColumns() {
		d, _ := rule.Figure(col)
		args = append(args, d.String())
	}
	args = append(args,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return nil, policy.ErrRuleExists
		}
		return nil, fmt.Errorf("failed to insert policy rule: %w", err)
	}
	return &rule, nil
}

// ListRules returns all rules ordered by year desc, period desc, city asc.
func (s *Store) ListRules(ctx context.Context) ([]policy.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM policy_rules ORDER BY year DESC, period DESC, city ASC`,
		strings.Join(ruleColumns(), ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy rules: %w", err)
	}
	defer rows.Close()

	var rules []policy.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM policy_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return policy.ErrRuleNotFound
	}
	return nil
}

func (s *Store) queryRule(ctx context.Context, query string, args ...any) (*policy.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy rule: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRule(rows)
}

func scanRule(rows *sql.Rows) (*policy.Rule, error) {
	var (
		rule             policy.Rule
		period           string
		start, end       string
		created, updated string
	)

	numeric := policy.NumericColumns()
	figureVals := make([]string, len(numeric))

	dest := []any{&rule.ID, &rule.Name, &rule.City, &rule.Year, &period, &start, &end}
	for i := range figureVals {
		dest = append(dest, &figureVals[i])
	}
	dest = append(dest, &created, &updated)

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan policy rule: %w", err)
	}

	rule.Period = policy.Period(period)
	rule.EffectiveStart, _ = time.Parse(time.DateOnly, start)
	rule.EffectiveEnd, _ = time.Parse(time.DateOnly, end)
	rule.CreatedAt, _ = time.Parse(time.RFC3339, created)
	rule.UpdatedAt, _ = time.Parse(time.RFC3339, updated)

	rule.Figures = make(map[policy.Category]policy.Figures, len(policy.Categories()))
	for i, col := range numeric {
		d, err := decimal.NewFromString(figureVals[i])
		if err != nil {
			return nil, fmt.Errorf("corrupt figure %s: %w", col, err)
		}
		cat, part := splitColumn(col)
		f := rule.Figures[cat]
		switch part {
		case policy.PartBaseFloor:
			f.BaseFloor = d
		case policy.PartBaseCap:
			f.BaseCap = d
		case policy.PartRateStaff:
			f.RateStaff = d
		case policy.PartRateEnterprise:
			f.RateEnterprise = d
		}
		rule.Figures[cat] = f
	}
	return &rule, nil
}

// splitColumn reverses policy.Column for the known figure columns.
func splitColumn(col string) (policy.Category, string) {
	for _, cat := range policy.Categories() {
		prefix := string(cat) + "_"
		if strings.HasPrefix(col, prefix) {
			return cat, strings.TrimPrefix(col, prefix)
		}
	}
	return "", col
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// =============================================================================
// PROJECTS
// =============================================================================

// Project groups companies for one engagement.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveProject inserts or updates a project.
func (s *Store) SaveProject(ctx context.Context, p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Description, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetProject returns a project by id, or (nil, nil) when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanProject(rows)
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and its companies.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM companies WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project companies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return tx.Commit()
}

func scanProject(rows *sql.Rows) (*Project, error) {
	var (
		p                Project
		desc             sql.NullString
		created, updated string
	)
	if err := rows.Scan(&p.ID, &p.Name, &desc, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.Description = desc.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &p, nil
}

// =============================================================================
// COMPANIES
// =============================================================================

// Company is one company under a project.
type Company struct {
	ID        string
	ProjectID string
	Name      string
	City      string
	CreatedAt time.Time
}

// SaveCompany inserts a company.
func (s *Store) SaveCompany(ctx context.Context, c Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, project_id, name, city, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Name, c.City, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

// GetCompany returns a company by id, or (nil, nil) when absent.
func (s *Store) GetCompany(ctx context.Context, id string) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, city, created_at FROM companies WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		c       Company
		city    sql.NullString
		created string
	)
	if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &city, &created); err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}
	c.City = city.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &c, nil
}

// ListCompanies returns companies, optionally filtered by project.
func (s *Store) ListCompanies(ctx context.Context, projectID string) ([]Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, project_id, name, city, created_at FROM companies`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var (
			c       Company
			city    sql.NullString
			created string
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &city, &created); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		c.City = city.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, created)
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// DeleteCompany removes a company by id.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}
