package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jortvara/caesync/internal/core/domain"
)

type CatalogRepository struct {
	db       *sql.DB
	location string
}

func NewCatalogRepository(db *sql.DB, location string) *CatalogRepository {
	return &CatalogRepository{db: db, location: location}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across planner/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_types (
	type_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	scope TEXT NOT NULL,
	validity_policy JSONB NOT NULL,
	platform_aliases JSONB NOT NULL DEFAULT '[]'::jsonb,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY,
	type_id TEXT NOT NULL,
	scope TEXT NOT NULL,
	company_key TEXT,
	person_key TEXT,
	storage_key TEXT,
	extracted JSONB NOT NULL DEFAULT '{}'::jsonb,
	computed_validity JSONB NOT NULL DEFAULT '{}'::jsonb,
	period_kind TEXT,
	period_key TEXT,
	needs_period BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type_id);
CREATE INDEX IF NOT EXISTS idx_documents_period ON documents(period_key);

CREATE TABLE IF NOT EXISTS learned_hints (
	hint_id TEXT PRIMARY KEY,
	context JSONB NOT NULL,
	normalized_label TEXT NOT NULL,
	strength TEXT NOT NULL,
	target_doc_id TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	disabled_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_hints_label ON learned_hints(normalized_label);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Location() string { return r.location }

func (r *CatalogRepository) GetType(ctx context.Context, typeID string) (*domain.DocumentType, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT type_id, name, scope, validity_policy, platform_aliases, active, created_at, updated_at
FROM document_types
WHERE type_id = $1
`, typeID)

	t, err := scanType(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTypeNotFound, "postgres.GetType", fmt.Errorf("type %q", typeID))
		}
		return nil, fmt.Errorf("get type: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanType(row rowScanner) (*domain.DocumentType, error) {
	var (
		t       domain.DocumentType
		policy  []byte
		aliases []byte
	)
	if err := row.Scan(&t.TypeID, &t.Name, &t.Scope, &policy, &aliases, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(policy, &t.ValidityPolicy); err != nil {
		return nil, fmt.Errorf("decode validity policy: %w", err)
	}
	if err := json.Unmarshal(aliases, &t.PlatformAliases); err != nil {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}
	return &t, nil
}

func (r *CatalogRepository) ListTypes(ctx context.Context, includeInactive bool) ([]domain.DocumentType, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT type_id, name, scope, validity_policy, platform_aliases, active, created_at, updated_at
FROM document_types
WHERE active OR $1
ORDER BY type_id
`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) CreateType(ctx context.Context, t *domain.DocumentType) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	policy, err := json.Marshal(t.ValidityPolicy)
	if err != nil {
		return fmt.Errorf("encode validity policy: %w", err)
	}
	aliases, err := json.Marshal(aliasesOrEmpty(t.PlatformAliases))
	if err != nil {
		return fmt.Errorf("encode aliases: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_types (type_id, name, scope, validity_policy, platform_aliases, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, t.TypeID, t.Name, t.Scope, policy, aliases, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create type: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpdateType(ctx context.Context, t *domain.DocumentType) error {
	policy, err := json.Marshal(t.ValidityPolicy)
	if err != nil {
		return fmt.Errorf("encode validity policy: %w", err)
	}
	aliases, err := json.Marshal(aliasesOrEmpty(t.PlatformAliases))
	if err != nil {
		return fmt.Errorf("encode aliases: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE document_types
SET name = $2, scope = $3, validity_policy = $4, platform_aliases = $5, active = $6, updated_at = $7
WHERE type_id = $1
`, t.TypeID, t.Name, t.Scope, policy, aliases, t.Active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update type: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update type rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrTypeNotFound, "postgres.UpdateType", fmt.Errorf("type %q", t.TypeID))
	}
	return nil
}

func aliasesOrEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func (r *CatalogRepository) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentInstance, error) {
	query := `
SELECT doc_id, type_id, scope, COALESCE(company_key, ''), COALESCE(person_key, ''), COALESCE(storage_key, ''),
       extracted, computed_validity, COALESCE(period_kind, ''), COALESCE(period_key, ''), needs_period,
       status, created_at, updated_at
FROM documents
WHERE TRUE
`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.TypeIDs) > 0 {
		ids, err := json.Marshal(filter.TypeIDs)
		if err != nil {
			return nil, fmt.Errorf("encode type filter: %w", err)
		}
		query += fmt.Sprintf(" AND type_id IN (SELECT jsonb_array_elements_text(%s::jsonb))", arg(ids))
	}
	if filter.CompanyKey != "" {
		query += fmt.Sprintf(" AND company_key = %s", arg(filter.CompanyKey))
	}
	if filter.PersonKey != "" {
		query += fmt.Sprintf(" AND person_key = %s", arg(filter.PersonKey))
	}
	if filter.PeriodKey != "" {
		query += fmt.Sprintf(" AND period_key = %s", arg(filter.PeriodKey))
	}
	if len(filter.Statuses) > 0 {
		statuses, err := json.Marshal(filter.Statuses)
		if err != nil {
			return nil, fmt.Errorf("encode status filter: %w", err)
		}
		query += fmt.Sprintf(" AND status IN (SELECT jsonb_array_elements_text(%s::jsonb))", arg(statuses))
	}
	query += " ORDER BY doc_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentInstance
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(row rowScanner) (*domain.DocumentInstance, error) {
	var (
		d         domain.DocumentInstance
		extracted []byte
		validity  []byte
	)
	if err := row.Scan(
		&d.DocID,
		&d.TypeID,
		&d.Scope,
		&d.CompanyKey,
		&d.PersonKey,
		&d.StorageKey,
		&extracted,
		&validity,
		&d.PeriodKind,
		&d.PeriodKey,
		&d.NeedsPeriod,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(extracted, &d.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted: %w", err)
	}
	if err := json.Unmarshal(validity, &d.Validity); err != nil {
		return nil, fmt.Errorf("decode validity: %w", err)
	}
	return &d, nil
}

func (r *CatalogRepository) GetDocument(ctx context.Context, docID string) (*domain.DocumentInstance, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT doc_id, type_id, scope, COALESCE(company_key, ''), COALESCE(person_key, ''), COALESCE(storage_key, ''),
       extracted, computed_validity, COALESCE(period_kind, ''), COALESCE(period_key, ''), needs_period,
       status, created_at, updated_at
FROM documents
WHERE doc_id = $1
`, docID)

	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "postgres.GetDocument", fmt.Errorf("document %q", docID))
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// SaveDocument upserts. The status guard runs inside the UPDATE predicate so a
// concurrent writer can never regress the lifecycle.
func (r *CatalogRepository) SaveDocument(ctx context.Context, doc *domain.DocumentInstance) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	extracted, err := json.Marshal(doc.Extracted)
	if err != nil {
		return fmt.Errorf("encode extracted: %w", err)
	}
	validity, err := json.Marshal(doc.Validity)
	if err != nil {
		return fmt.Errorf("encode validity: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO documents (doc_id, type_id, scope, company_key, person_key, storage_key,
	extracted, computed_validity, period_kind, period_key, needs_period, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (doc_id) DO UPDATE SET
	type_id = EXCLUDED.type_id,
	scope = EXCLUDED.scope,
	company_key = EXCLUDED.company_key,
	person_key = EXCLUDED.person_key,
	storage_key = EXCLUDED.storage_key,
	extracted = EXCLUDED.extracted,
	computed_validity = EXCLUDED.computed_validity,
	period_kind = EXCLUDED.period_kind,
	period_key = EXCLUDED.period_key,
	needs_period = EXCLUDED.needs_period,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at
WHERE CASE documents.status
	WHEN 'draft' THEN 0
	WHEN 'reviewed' THEN 1
	WHEN 'ready_to_submit' THEN 2
	WHEN 'submitted' THEN 3
	END <= CASE EXCLUDED.status
	WHEN 'draft' THEN 0
	WHEN 'reviewed' THEN 1
	WHEN 'ready_to_submit' THEN 2
	WHEN 'submitted' THEN 3
	END
`, doc.DocID, doc.TypeID, doc.Scope, doc.CompanyKey, doc.PersonKey, doc.StorageKey,
		extracted, validity, doc.PeriodKind, doc.PeriodKey, doc.NeedsPeriod, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save document rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "postgres.SaveDocument",
			fmt.Errorf("status regression rejected for %q", doc.DocID))
	}
	return nil
}
