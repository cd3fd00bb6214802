package models

import "github.com/shopspring/decimal"

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeBank       AccountType = "bank"
	AccountTypeEWallet    AccountType = "e_wallet"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeLoan       AccountType = "loan"
)

// AccountTypes lists every supported account type.
var AccountTypes = []AccountType{
	AccountTypeCash,
	AccountTypeBank,
	AccountTypeEWallet,
	AccountTypeInvestment,
	AccountTypeCreditCard,
	AccountTypeLoan,
}

// IsValid reports whether t is a supported account type.
func (t AccountType) IsValid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Account represents a financial account in the system.
//
// Balance is signed: liability accounts (credit cards, loans) normally carry a
// negative balance and are converted to a positive liability in rollups.
type Account struct {
	Base
	Name           string          `gorm:"not null" json:"name"`
	Type           AccountType     `gorm:"not null;index" json:"type"`
	Description    string          `json:"description"`
	Balance        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"balance"`
	InitialBalance decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"initial_balance"`
	Currency       string          `gorm:"not null;default:'USD'" json:"currency"`
	IncludeInTotal bool            `gorm:"not null" json:"include_in_total"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
}
