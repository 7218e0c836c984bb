package sqlexport

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kernelgate/governor/pkg/ledger"
)

func TestInitCreatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := New(db).Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func sampleBundle() ledger.Bundle {
	return ledger.Bundle{
		KernelID:   "k1",
		VariantTag: "strict",
		RootHash:   "deadbeef",
		Entries: []ledger.Entry{
			{
				PrevHash: "0", EntryHash: "abc", RequestID: "r1", Actor: "alice",
				Intent: "hi", Decision: ledger.Allow, StateFrom: "IDLE", StateTo: "IDLE",
				TimestampMs: 1000,
			},
		},
		ExportedAtMs: 2000,
	}
}

func TestExportPersistsEntriesAndBundle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM governor_entries").WithArgs("k1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO governor_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO governor_bundles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := New(db).Export(context.Background(), sampleBundle()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExportRollsBackOnEntryInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM governor_entries").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO governor_entries").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	if err := New(db).Export(context.Background(), sampleBundle()); err == nil {
		t.Fatal("expected export to fail when an entry insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
