package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tally/internal/uuid"
)

// AccountBalanceSetVersion is the schema version written into new snapshots.
const AccountBalanceSetVersion = 1

// AccountBalance is one account's state at snapshot time.
type AccountBalance struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// AccountBalanceSet is the versioned payload stored with each snapshot.
// Readers must accept older versions; fields are only ever added.
type AccountBalanceSet struct {
	Version  int              `json:"version"`
	Accounts []AccountBalance `json:"accounts"`
}

// MonthlySnapshot is the net-worth and cash-flow rollup for one calendar month.
// There is at most one row per (year, month); recomputing overwrites it.
type MonthlySnapshot struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Year         int       `gorm:"not null;uniqueIndex:uq_monthly_snapshot_period,priority:1" json:"year"`
	Month        int       `gorm:"not null;uniqueIndex:uq_monthly_snapshot_period,priority:2" json:"month"`
	SnapshotDate time.Time `gorm:"not null" json:"snapshot_date"`

	TotalAssets         decimal.Decimal `gorm:"type:numeric;not null" json:"total_assets"`
	TotalLiabilities    decimal.Decimal `gorm:"type:numeric;not null" json:"total_liabilities"`
	NetWorth            decimal.Decimal `gorm:"type:numeric;not null" json:"net_worth"`
	CashAssets          decimal.Decimal `gorm:"type:numeric;not null" json:"cash_assets"`
	InvestmentAssets    decimal.Decimal `gorm:"type:numeric;not null" json:"investment_assets"`
	InvestmentPrincipal decimal.Decimal `gorm:"type:numeric;not null" json:"investment_principal"`
	InvestmentReturn    decimal.Decimal `gorm:"type:numeric;not null" json:"investment_return"`
	MonthlyIncome       decimal.Decimal `gorm:"type:numeric;not null" json:"monthly_income"`
	MonthlyExpense      decimal.Decimal `gorm:"type:numeric;not null" json:"monthly_expense"`
	MonthlyBalance      decimal.Decimal `gorm:"type:numeric;not null" json:"monthly_balance"`
	SavingsRate         decimal.Decimal `gorm:"type:numeric;not null" json:"savings_rate"`

	Accounts datatypes.JSONType[AccountBalanceSet] `json:"accounts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *MonthlySnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
