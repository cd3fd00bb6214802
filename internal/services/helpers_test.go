package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"gorm.io/gorm"

	"tally/internal/clock"
	"tally/internal/models"
	"tally/internal/testutil"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func reloadAccount(t *testing.T, db *gorm.DB, id string) models.Account {
	t.Helper()
	var account models.Account
	if err := db.First(&account, "id = ?", id).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	return account
}

func reloadTemplate(t *testing.T, db *gorm.DB, id string) models.RecurringTemplate {
	t.Helper()
	var tmpl models.RecurringTemplate
	if err := db.First(&tmpl, "id = ?", id).Error; err != nil {
		t.Fatalf("reload template: %v", err)
	}
	return tmpl
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func assertTime(t *testing.T, field string, want, got time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", field, got.UTC(), want.UTC())
	}
}

// ledgerEnv wires the services against a fresh database and a fixed clock.
type ledgerEnv struct {
	db           *gorm.DB
	clock        *clock.Fixed
	accounts     AccountServicer
	categories   CategoryServicer
	transactions TransactionServicer
	recurring    *recurringService
	positions    PositionServicer
	snapshots    SnapshotServicer
}

func newLedgerEnv(t *testing.T, now time.Time) *ledgerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	clk := clock.NewFixed(now)
	accounts := NewAccountService(db)
	return &ledgerEnv{
		db:           db,
		clock:        clk,
		accounts:     accounts,
		categories:   NewCategoryService(db),
		transactions: NewTransactionService(db, accounts, clk),
		recurring:    NewRecurringService(db, accounts, clk, 1).(*recurringService),
		positions:    NewPositionService(db, clk),
		snapshots:    NewSnapshotService(db, clk),
	}
}
