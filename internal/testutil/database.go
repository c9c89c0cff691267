// Package testutil provides shared test helpers for run history databases.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/service"
	"github.com/Veraticus/contaflow/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Runs           []*model.RunReport
	SkipMigrations bool
}

// SetupTestDB creates a migrated database in the test's temp directory.
// It is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.MustSaveRun(report)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	for _, run := range opts.Runs {
		db.MustSaveRun(run)
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustSaveRun stores report or fails the test.
func (db *TestDB) MustSaveRun(report *model.RunReport) {
	db.t.Helper()
	if err := db.Storage.SaveRun(context.Background(), report); err != nil {
		db.t.Fatalf("failed to save run %s: %v", report.Summary.RunID, err)
	}
}

// MustGetRows returns every stored row of a run or fails the test.
func (db *TestDB) MustGetRows(runID string) []model.Row {
	db.t.Helper()
	rows, err := db.Storage.GetClassifications(context.Background(), runID, "", "")
	if err != nil {
		db.t.Fatalf("failed to load classifications for %s: %v", runID, err)
	}
	return rows
}
