package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jortvara/caesync/internal/core/domain"
)

func newCatalogWithMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CatalogRepository{db: db, location: "postgres://catalog"}, mock, func() { _ = db.Close() }
}

func TestGetTypeReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT type_id, name, scope").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetType(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTypeDecodesJSONColumns(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"type_id", "name", "scope", "validity_policy", "platform_aliases", "active", "created_at", "updated_at",
	}).AddRow(
		"recibo_autonomos", "Recibo autónomos", "company",
		[]byte(`{"basis":"issue_date","mode":"monthly","grace_days":5}`),
		[]byte(`["T104.0"]`),
		true, now, now,
	)
	mock.ExpectQuery("SELECT type_id, name, scope").
		WithArgs("recibo_autonomos").
		WillReturnRows(rows)

	got, err := repo.GetType(context.Background(), "recibo_autonomos")
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	if got.ValidityPolicy.Mode != domain.ModeMonthly || got.ValidityPolicy.GraceDays != 5 {
		t.Fatalf("validity policy not decoded: %+v", got.ValidityPolicy)
	}
	if len(got.PlatformAliases) != 1 || got.PlatformAliases[0] != "T104.0" {
		t.Fatalf("aliases not decoded: %+v", got.PlatformAliases)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateTypeReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE document_types").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateType(context.Background(), &domain.DocumentType{TypeID: "missing"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDocumentRejectsStatusRegression(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	// zero rows affected means the upsert predicate blocked a regression
	mock.ExpectExec("INSERT INTO documents").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveDocument(context.Background(), &domain.DocumentInstance{
		DocID:  "d1",
		TypeID: "t1",
		Scope:  domain.ScopeCompany,
		Status: domain.StatusDraft,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListDocumentsAppliesFilters(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"doc_id", "type_id", "scope", "company_key", "person_key", "storage_key",
		"extracted", "computed_validity", "period_kind", "period_key", "needs_period",
		"status", "created_at", "updated_at",
	}).AddRow(
		"d1", "t1", "company", "acme", "", "2024/01/recibo.pdf",
		[]byte(`{}`), []byte(`{"confidence":1}`), "month", "2024-01", false,
		"reviewed", now, now,
	)
	mock.ExpectQuery("SELECT doc_id, type_id, scope").
		WillReturnRows(rows)

	got, err := repo.ListDocuments(context.Background(), domain.DocumentFilter{
		TypeIDs:    []string{"t1"},
		CompanyKey: "acme",
		PeriodKey:  "2024-01",
	})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(got) != 1 || got[0].DocID != "d1" || got[0].Validity.Confidence != 1 {
		t.Fatalf("unexpected documents: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS document_types").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
