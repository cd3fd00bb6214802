package testutil_test

import (
	"testing"
	"time"

	"tally/internal/errors"
	"tally/internal/models"
	"tally/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"accounts", "categories", "transactions", "recurring_templates", "investment_positions", "position_trades", "position_prices", "monthly_snapshots", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	a := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, a)
	b := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, b)

	testutil.CreateTestCashAccount(t, a)

	var count int64
	b.Model(&models.Account{}).Count(&count)
	if count != 0 {
		t.Errorf("expected second database to be empty, found %d accounts", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	account := testutil.CreateTestAccount(t, db, models.AccountTypeBank, "5000.25")
	if account.ID == "" {
		t.Fatal("account should have an ID")
	}

	var reloaded models.Account
	if err := db.First(&reloaded, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	testutil.AssertDecimal(t, "balance", "5000.25", reloaded.Balance)
	if !reloaded.IncludeInTotal || !reloaded.IsActive {
		t.Errorf("expected account to be active and included, got %+v", reloaded)
	}

	category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	if category.Type != models.CategoryTypeExpense {
		t.Errorf("expected expense category, got %s", category.Type)
	}

	now := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	tx := testutil.CreateTestTransaction(t, db, account.ID, models.TransactionTypeIncome, "10", now)
	testutil.AssertDecimal(t, "amount", "10", tx.Amount)

	tmpl := testutil.CreateTestTemplate(t, db, account.ID, 31, now)
	if !tmpl.NextExecutionDate.Equal(now) {
		t.Errorf("expected next execution %s, got %s", now, tmpl.NextExecutionDate)
	}

	inv := testutil.CreateTestInvestmentAccount(t, db)
	pos := testutil.CreateTestPosition(t, db, inv.ID, "ACME", "10", "12.5")
	testutil.AssertDecimal(t, "principal", "125", pos.Principal)
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrPositionNotFound, "POSITION_NOT_FOUND")
	testutil.AssertAppError(t, errors.Wrap(errors.ErrInternalServer, nil), "INTERNAL_ERROR")
}
