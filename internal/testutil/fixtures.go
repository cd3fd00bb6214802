package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/calendar"
	"tally/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates an active account of the given type and balance,
// included in totals, with the initial balance equal to the balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, accountType models.AccountType, balance string) *models.Account {
	t.Helper()

	bal := decimal.RequireFromString(balance)
	account := &models.Account{
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		Type:           accountType,
		Balance:        bal,
		InitialBalance: bal,
		Currency:       "USD",
		IncludeInTotal: true,
		IsActive:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test %s account: %v", accountType, err)
	}
	return account
}

// CreateTestCashAccount creates a cash account with zero balance.
func CreateTestCashAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	return CreateTestAccount(t, db, models.AccountTypeCash, "0")
}

// CreateTestInvestmentAccount creates an investment account with zero balance.
func CreateTestInvestmentAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	return CreateTestAccount(t, db, models.AccountTypeInvestment, "0")
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, catType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		Name: fmt.Sprintf("Test Category %d", nextID()),
		Type: catType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction inserts a transaction row directly without touching
// the account balance.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, txType models.TransactionType, amount string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		AccountID: accountID,
		Type:      txType,
		Amount:    decimal.RequireFromString(amount),
		Note:      fmt.Sprintf("Test transaction %d", nextID()),
		Date:      date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestTemplate creates an active monthly expense template due at next.
func CreateTestTemplate(t *testing.T, db *gorm.DB, accountID string, dayOfMonth int, next time.Time) *models.RecurringTemplate {
	t.Helper()

	tmpl := &models.RecurringTemplate{
		Name:              fmt.Sprintf("Test Template %d", nextID()),
		Amount:            decimal.NewFromInt(1000),
		Type:              models.TransactionTypeExpense,
		AccountID:         accountID,
		Frequency:         calendar.FrequencyMonthly,
		DayOfPeriod:       dayOfMonth,
		AutoExecute:       true,
		IsActive:          true,
		StartDate:         next,
		NextExecutionDate: next,
		Version:           1,
	}
	if err := db.Create(tmpl).Error; err != nil {
		t.Fatalf("failed to create test template: %v", err)
	}
	return tmpl
}

// CreateTestPosition creates an open position opened at quantity x price.
func CreateTestPosition(t *testing.T, db *gorm.DB, accountID, code string, quantity, price string) *models.InvestmentPosition {
	t.Helper()

	q := decimal.RequireFromString(quantity)
	p := decimal.RequireFromString(price)
	principal := q.Mul(p)
	pos := &models.InvestmentPosition{
		AccountID:    accountID,
		Name:         fmt.Sprintf("Test Position %d", nextID()),
		Code:         code,
		HoldingType:  models.HoldingTypeStock,
		Quantity:     q,
		CostPrice:    p,
		CurrentPrice: p,
		Principal:    principal,
		MarketValue:  principal,
		ProfitLoss:   decimal.Zero,
		ReturnRate:   decimal.Zero,
		FirstBuyDate: time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC),
		Version:      1,
	}
	if err := db.Create(pos).Error; err != nil {
		t.Fatalf("failed to create test position: %v", err)
	}
	return pos
}
