// Package testutil provides a seeded registry database for tests.
package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/tariff/internal/model"
	"github.com/Veraticus/tariff/internal/storage"
)

// TestDB is a migrated SQLite database in the test's temp directory.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Codes   []model.CommodityCode
}

// SetupTestDB creates a database seeded with codes. The database is closed
// when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.SampleCodes()...)
//	candidates, _ := db.Storage.FindCandidates(ctx, []string{"847130"})
func SetupTestDB(t *testing.T, codes ...model.CommodityCode) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tariff.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	for i := range codes {
		if err := store.SaveCommodityCode(ctx, &codes[i]); err != nil {
			t.Fatalf("failed to seed commodity code %s: %v", codes[i].Code, err)
		}
		db.Codes = append(db.Codes, codes[i])
	}
	return db
}

// MustFindCandidates returns the candidates for codes or fails the test.
func (db *TestDB) MustFindCandidates(codes ...string) []model.CommodityCandidate {
	db.t.Helper()

	candidates, err := db.Storage.FindCandidates(context.Background(), codes)
	if err != nil {
		db.t.Fatalf("failed to find candidates for %s: %v", strings.Join(codes, ","), err)
	}
	return candidates
}
