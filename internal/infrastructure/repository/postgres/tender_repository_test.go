package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

var testColumns = []string{
	"id", "external_id", "source", "title", "agency", "description", "status", "value", "location",
	"publish_date", "close_date", "categories", "match_score",
	"ai_summary", "ai_categories", "ai_enriched", "ai_enriched_at", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T, matchers ...sqlmock.QueryMatcher) (*TenderRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	var (
		db   *sql.DB
		mock sqlmock.Sqlmock
		err  error
	)
	if len(matchers) > 0 {
		db, mock, err = sqlmock.New(sqlmock.QueryMatcherOption(matchers[0]))
	} else {
		db, mock, err = sqlmock.New()
	}
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewTenderRepository(db)
	repo.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func tenderRow(id int64, values ...driver.Value) *sqlmock.Rows {
	published := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC)
	row := []driver.Value{
		id, "CN100", "AusTender", "Road resurfacing", "Department of Infrastructure", "Resurfacing works", "Open",
		"1500.00", nil, published, nil, []byte(`["Construction"]`), int64(0),
		nil, nil, false, nil, created, created,
	}
	copy(row[13:], values)
	return sqlmock.NewRows(testColumns).AddRow(row...)
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, external_id, source").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if !domain.IsKind(err, domain.ErrTenderNotFound) {
		t.Fatalf("expected ErrTenderNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByExternalIDScansEnrichedRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	enrichedAt := time.Date(2026, 5, 22, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("FROM tenders WHERE source = \\$1 AND external_id = \\$2").
		WithArgs("AusTender", "CN100").
		WillReturnRows(tenderRow(7, "Resurface 4km of highway.", []byte(`["Construction","Transport"]`), true, enrichedAt))

	got, err := repo.GetByExternalID(context.Background(), "AusTender", "CN100")
	if err != nil {
		t.Fatalf("GetByExternalID() error = %v", err)
	}
	if got.ID != 7 || got.Value != "1500.00" || got.Location != "" || got.CloseDate != nil {
		t.Fatalf("unexpected scan: %+v", got)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "Construction" {
		t.Fatalf("unexpected categories: %v", got.Categories)
	}
	if !got.AIEnriched || got.AISummary != "Resurface 4km of highway." || len(got.AICategories) != 2 {
		t.Fatalf("unexpected ai fields: %+v", got)
	}
	if got.AIEnrichedAt == nil || !got.AIEnrichedAt.Equal(enrichedAt) {
		t.Fatalf("unexpected ai_enriched_at: %v", got.AIEnrichedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateStoresAbsentOptionalFieldsAsNull(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO tenders").
		WithArgs(nil, "NSW eTendering", "Untitled Tender", "NSW Government", "Cleaning services", "Open",
			nil, nil, nil, nil, []byte(`["Government Procurement"]`), sqlmock.AnyArg()).
		WillReturnRows(tenderRow(11))

	_, err := repo.Create(context.Background(), domain.TenderCandidate{
		Source:      "NSW eTendering",
		Title:       "Untitled Tender",
		Agency:      "NSW Government",
		Description: "Cleaning services",
		Status:      domain.StatusOpen,
		Categories:  []string{domain.SentinelCategory},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateNeverWritesEnrichmentColumns(t *testing.T) {
	matcher := sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
		if !strings.Contains(actualSQL, expectedSQL) {
			return fmt.Errorf("query %q does not contain %q", actualSQL, expectedSQL)
		}
		set := actualSQL[strings.Index(actualSQL, "SET"):strings.Index(actualSQL, "WHERE")]
		if strings.Contains(set, "ai_") {
			return fmt.Errorf("update touches enrichment columns: %s", set)
		}
		return nil
	})
	repo, mock, done := newRepoWithMock(t, matcher)
	defer done()

	mock.ExpectQuery("UPDATE tenders").
		WithArgs(int64(7), "AusTender", "Road resurfacing", "Department of Infrastructure", "Resurfacing works",
			"Awarded", "2000", nil, nil, nil, []byte(`["Construction"]`), sqlmock.AnyArg()).
		WillReturnRows(tenderRow(7, "kept summary", []byte(`["Construction"]`), true, time.Now()))

	got, err := repo.Update(context.Background(), 7, domain.TenderCandidate{
		ExternalID:  "CN100",
		Source:      "AusTender",
		Title:       "Road resurfacing",
		Agency:      "Department of Infrastructure",
		Description: "Resurfacing works",
		Status:      domain.StatusAwarded,
		Value:       "2000",
		Categories:  []string{"Construction"},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.AISummary != "kept summary" {
		t.Fatalf("expected enrichment to survive update, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveEnrichmentReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE tenders").
		WithArgs(int64(99), "summary", []byte(`["Other"]`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveEnrichment(context.Background(), 99, domain.Enrichment{
		Summary:    "summary",
		Categories: []string{"Other"},
		EnrichedAt: time.Now(),
	})
	if !domain.IsKind(err, domain.ErrTenderNotFound) {
		t.Fatalf("expected ErrTenderNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUnenrichedOrdersByIDWithLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := tenderRow(1)
	mock.ExpectQuery(`WHERE ai_enriched = FALSE\s+ORDER BY id ASC\s+LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(rows)

	got, err := repo.ListUnenriched(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListUnenriched() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected tenders: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAppliesFiltersAndPaging(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	category := `["IT Services"]`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tenders WHERE")).
		WithArgs("%road\\_works%", "%road\\_works%", "%road\\_works%", "AusTender", category, category).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY publish_date DESC NULLS LAST, id DESC LIMIT 20 OFFSET 20")).
		WithArgs("%road\\_works%", "%road\\_works%", "%road\\_works%", "AusTender", category, category).
		WillReturnRows(tenderRow(21))

	page, err := repo.List(context.Background(), domain.TenderFilter{
		Search:   "road_works",
		Source:   "AusTender",
		Category: "IT Services",
		Page:     2,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 21 || page.Page != 2 || page.Limit != 20 || len(page.Tenders) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNormalizePagingClampsLimit(t *testing.T) {
	page, limit := normalizePaging(0, 500)
	if page != 1 || limit != maxPageLimit {
		t.Fatalf("normalizePaging(0, 500) = %d, %d", page, limit)
	}
}

func TestEnsureSchemaScopesExternalIDBySource(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(2026061501)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tenders_source_external_id ON tenders\(source, external_id\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
