package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the flow direction of a transaction.
// The amount itself is always positive.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// IsValid reports whether t is income or expense.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction represents a ledger entry against an account
type Transaction struct {
	Base
	AccountID  string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type       TransactionType `gorm:"not null" json:"type"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	Note       string          `json:"note"`
	Date       time.Time       `gorm:"not null;index" json:"date"`

	// Set when the entry was materialized from a recurring template
	RecurringTemplateID *string `gorm:"type:uuid;index" json:"recurring_template_id,omitempty"`

	// Relationships
	Account  Account   `gorm:"foreignKey:AccountID" json:"-"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
