package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

const tenderColumns = `id, external_id, source, title, agency, description, status, value, location,
	publish_date, close_date, categories, match_score,
	ai_summary, ai_categories, ai_enriched, ai_enriched_at, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type TenderRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTenderRepository(db *sql.DB) *TenderRepository {
	return &TenderRepository{db: db, now: time.Now}
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

func (r *TenderRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026061501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tenders (
	id BIGSERIAL PRIMARY KEY,
	external_id TEXT,
	source TEXT NOT NULL,
	title TEXT NOT NULL,
	agency TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Open',
	value NUMERIC(15,2),
	location TEXT,
	publish_date TIMESTAMPTZ,
	close_date TIMESTAMPTZ,
	categories JSONB NOT NULL DEFAULT '[]'::jsonb,
	match_score INTEGER NOT NULL DEFAULT 0,
	ai_summary TEXT,
	ai_categories JSONB,
	ai_enriched BOOLEAN NOT NULL DEFAULT FALSE,
	ai_enriched_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE tenders DROP CONSTRAINT IF EXISTS tenders_external_id_key;
CREATE UNIQUE INDEX IF NOT EXISTS idx_tenders_source_external_id ON tenders(source, external_id);
CREATE INDEX IF NOT EXISTS idx_tenders_source ON tenders(source);
CREATE INDEX IF NOT EXISTS idx_tenders_unenriched ON tenders(id) WHERE ai_enriched = FALSE;
CREATE INDEX IF NOT EXISTS idx_tenders_publish_date ON tenders(publish_date DESC);
CREATE INDEX IF NOT EXISTS idx_tenders_categories ON tenders USING GIN (categories);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// GetByExternalID looks a tender up by its source-scoped natural key.
func (r *TenderRepository) GetByExternalID(ctx context.Context, source, externalID string) (*domain.Tender, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenderColumns+` FROM tenders WHERE source = $1 AND external_id = $2`, source, externalID)
	tender, err := scanTender(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTenderNotFound, "get tender by external id", fmt.Errorf("source=%s external_id=%s", source, externalID))
		}
		return nil, fmt.Errorf("scan tender: %w", err)
	}
	return tender, nil
}

func (r *TenderRepository) GetByID(ctx context.Context, id int64) (*domain.Tender, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenderColumns+` FROM tenders WHERE id = $1`, id)
	tender, err := scanTender(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTenderNotFound, "get tender", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("scan tender: %w", err)
	}
	return tender, nil
}

func (r *TenderRepository) Create(ctx context.Context, c domain.TenderCandidate) (*domain.Tender, error) {
	categories, err := json.Marshal(nonNilStrings(c.Categories))
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}
	now := r.now().UTC()

	row := r.db.QueryRowContext(ctx, `
INSERT INTO tenders (
	external_id, source, title, agency, description, status, value, location,
	publish_date, close_date, categories, match_score, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,$12,$12)
RETURNING `+tenderColumns,
		nullString(c.ExternalID), c.Source, c.Title, c.Agency, c.Description, string(c.Status),
		nullString(c.Value), nullString(c.Location), nullTime(c.PublishDate), nullTime(c.CloseDate),
		categories, now,
	)
	tender, err := scanTender(row)
	if err != nil {
		return nil, fmt.Errorf("insert tender: %w", err)
	}
	return tender, nil
}

// Update replaces the source-owned columns. The ai_* columns are not part
// of the statement and keep whatever enrichment wrote.
func (r *TenderRepository) Update(ctx context.Context, id int64, c domain.TenderCandidate) (*domain.Tender, error) {
	categories, err := json.Marshal(nonNilStrings(c.Categories))
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE tenders
SET source = $2, title = $3, agency = $4, description = $5, status = $6, value = $7,
	location = $8, publish_date = $9, close_date = $10, categories = $11, updated_at = $12
WHERE id = $1
RETURNING `+tenderColumns,
		id, c.Source, c.Title, c.Agency, c.Description, string(c.Status), nullString(c.Value),
		nullString(c.Location), nullTime(c.PublishDate), nullTime(c.CloseDate), categories, r.now().UTC(),
	)
	tender, err := scanTender(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTenderNotFound, "update tender", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("update tender: %w", err)
	}
	return tender, nil
}

func (r *TenderRepository) ListUnenriched(ctx context.Context, limit int) ([]domain.Tender, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+tenderColumns+`
FROM tenders
WHERE ai_enriched = FALSE
ORDER BY id ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unenriched tenders: %w", err)
	}
	return collectTenders(rows)
}

func (r *TenderRepository) SaveEnrichment(ctx context.Context, id int64, e domain.Enrichment) error {
	categories, err := json.Marshal(nonNilStrings(e.Categories))
	if err != nil {
		return fmt.Errorf("marshal ai categories: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE tenders
SET ai_summary = $2, ai_categories = $3, ai_enriched = TRUE, ai_enriched_at = $4, updated_at = $5
WHERE id = $1
`, id, nullString(e.Summary), categories, e.EnrichedAt.UTC(), r.now().UTC())
	if err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save enrichment rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrTenderNotFound, "save enrichment", fmt.Errorf("id=%d", id))
	}
	return nil
}

func (r *TenderRepository) List(ctx context.Context, filter domain.TenderFilter) (*domain.TenderPage, error) {
	page, limit := normalizePaging(filter.Page, filter.Limit)
	where, err := filterConditions(filter)
	if err != nil {
		return nil, err
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("tenders").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tenders: %w", err)
	}

	listSQL, listArgs, err := psql.Select(tenderColumns).From("tenders").Where(where).
		OrderBy("publish_date DESC NULLS LAST", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	tenders, err := collectTenders(rows)
	if err != nil {
		return nil, err
	}
	return &domain.TenderPage{Tenders: tenders, Total: total, Page: page, Limit: limit}, nil
}

func (r *TenderRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count tenders: %w", err)
	}
	return total, nil
}

func filterConditions(filter domain.TenderFilter) (sq.And, error) {
	where := sq.And{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
			sq.ILike{"agency": pattern},
		})
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		where = append(where, sq.Eq{"source": source})
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		containment, err := json.Marshal([]string{category})
		if err != nil {
			return nil, fmt.Errorf("marshal category filter: %w", err)
		}
		where = append(where, sq.Or{
			sq.Expr("categories @> ?::jsonb", string(containment)),
			sq.Expr("ai_categories @> ?::jsonb", string(containment)),
		})
	}
	return where, nil
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
