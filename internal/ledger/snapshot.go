package ledger

import (
	"github.com/shopspring/decimal"

	"tally/internal/models"
)

// Bucket groups account types for the net-worth rollup.
type Bucket int

const (
	BucketUnknown Bucket = iota
	BucketCash
	BucketInvestment
	BucketLiability
)

func (b Bucket) String() string {
	switch b {
	case BucketCash:
		return "cash"
	case BucketInvestment:
		return "investment"
	case BucketLiability:
		return "liability"
	}
	return "unknown"
}

var buckets = map[models.AccountType]Bucket{
	models.AccountTypeCash:       BucketCash,
	models.AccountTypeBank:       BucketCash,
	models.AccountTypeEWallet:    BucketCash,
	models.AccountTypeInvestment: BucketInvestment,
	models.AccountTypeCreditCard: BucketLiability,
	models.AccountTypeLoan:       BucketLiability,
}

// BucketOf returns the bucket for an account type.
func BucketOf(t models.AccountType) Bucket {
	return buckets[t]
}

// Totals is the derived state of one monthly snapshot.
type Totals struct {
	TotalAssets         decimal.Decimal
	TotalLiabilities    decimal.Decimal
	NetWorth            decimal.Decimal
	CashAssets          decimal.Decimal
	InvestmentAssets    decimal.Decimal
	InvestmentPrincipal decimal.Decimal
	InvestmentReturn    decimal.Decimal
	MonthlyIncome       decimal.Decimal
	MonthlyExpense      decimal.Decimal
	MonthlyBalance      decimal.Decimal
	SavingsRate         decimal.Decimal
}

// Rollup computes snapshot totals from active accounts and the month's
// income and expense sums.
//
// Asset figures only include accounts flagged IncludeInTotal. Liabilities are
// summed as absolute balances over every liability account.
func Rollup(accounts []models.Account, income, expense decimal.Decimal) Totals {
	t := Totals{
		TotalAssets:         decimal.Zero,
		TotalLiabilities:    decimal.Zero,
		CashAssets:          decimal.Zero,
		InvestmentAssets:    decimal.Zero,
		InvestmentPrincipal: decimal.Zero,
		MonthlyIncome:       income,
		MonthlyExpense:      expense,
	}

	for _, a := range accounts {
		b := BucketOf(a.Type)
		if b == BucketLiability {
			t.TotalLiabilities = t.TotalLiabilities.Add(a.Balance.Abs())
			continue
		}
		if !a.IncludeInTotal {
			continue
		}
		t.TotalAssets = t.TotalAssets.Add(a.Balance)
		switch b {
		case BucketCash:
			t.CashAssets = t.CashAssets.Add(a.Balance)
		case BucketInvestment:
			t.InvestmentAssets = t.InvestmentAssets.Add(a.Balance)
			t.InvestmentPrincipal = t.InvestmentPrincipal.Add(a.InitialBalance)
		}
	}

	t.InvestmentReturn = t.InvestmentAssets.Sub(t.InvestmentPrincipal)
	t.NetWorth = t.TotalAssets.Sub(t.TotalLiabilities)
	t.MonthlyBalance = income.Sub(expense)
	t.SavingsRate = SavingsRate(income, expense)
	return t
}

// SavingsRate returns (income - expense) / income * 100, or zero when there
// was no income.
func SavingsRate(income, expense decimal.Decimal) decimal.Decimal {
	return Percent(income.Sub(expense), income)
}

// BalanceSet captures per-account balances for the snapshot blob.
func BalanceSet(accounts []models.Account) models.AccountBalanceSet {
	set := models.AccountBalanceSet{
		Version:  models.AccountBalanceSetVersion,
		Accounts: make([]models.AccountBalance, 0, len(accounts)),
	}
	for _, a := range accounts {
		set.Accounts = append(set.Accounts, models.AccountBalance{
			ID:             a.ID,
			Name:           a.Name,
			Type:           a.Type,
			Balance:        a.Balance,
			InitialBalance: a.InitialBalance,
		})
	}
	return set
}
