package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newMockCartStore(t *testing.T) (*CartStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewCartStore(&Store{db: db}), mock
}

func TestCartStore_SaveUpsertsWithSchemaVersion(t *testing.T) {
	carts, mock := newMockCartStore(t)

	payload := []byte(`{"version":1,"items":[]}`)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cart_snapshots (session_id, payload, schema_version, updated_at)`)).
		WithArgs("session-1", payload, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := carts.Save(context.Background(), "session-1", payload); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCartStore_LoadMapsNoRows(t *testing.T) {
	carts, mock := newMockCartStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload`)).
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`[]`)))

	if _, err := carts.Load(context.Background(), "missing"); !errors.Is(err, domain.ErrCartSnapshotNotFound) {
		t.Fatalf("expected ErrCartSnapshotNotFound, got %v", err)
	}

	payload, err := carts.Load(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(payload) != `[]` {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCartStore_WrapsDriverErrors(t *testing.T) {
	carts, mock := newMockCartStore(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cart_snapshots`)).WillReturnError(boom)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_snapshots`)).WithArgs("session-1").WillReturnError(boom)

	if err := carts.Save(context.Background(), "session-1", []byte(`{}`)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if err := carts.Delete(context.Background(), "session-1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
