package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/clock"
	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
	clock          clock.Clock
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer, clk clock.Clock) TransactionServicer {
	return &transactionService{
		db:             db,
		accountService: accountService,
		clock:          clk,
	}
}

// CreateTransaction records a transaction and applies it to the account balance.
func (s *transactionService) CreateTransaction(in TransactionInput) (*models.Transaction, error) {
	if in.Date.IsZero() {
		in.Date = s.clock.Now()
	}

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = createTransactionWithDB(tx, s.accountService, in, nil)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTransactions records several transactions atomically: either all of
// them are saved or none is.
func (s *transactionService) CreateTransactions(inputs []TransactionInput) ([]models.Transaction, error) {
	if len(inputs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one transaction is required")
	}

	now := s.clock.Now()
	results := make([]models.Transaction, 0, len(inputs))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			if in.Date.IsZero() {
				in.Date = now
			}
			created, err := createTransactionWithDB(tx, s.accountService, in, nil)
			if err != nil {
				return err
			}
			results = append(results, *created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// createTransactionWithDB validates and inserts a transaction inside an open
// database transaction and updates the account balance with it.
func createTransactionWithDB(
	tx *gorm.DB,
	accounts AccountServicer,
	in TransactionInput,
	templateID *string,
) (*models.Transaction, error) {
	if !in.Type.IsValid() {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if in.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}

	account, err := findAccount(tx, in.AccountID, true)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountInactive
	}

	if in.CategoryID != nil {
		category, err := findCategory(tx, *in.CategoryID)
		if err != nil {
			return nil, err
		}
		if string(category.Type) != string(in.Type) {
			return nil, apperrors.ErrCategoryTypeMismatch
		}
	}

	transaction := &models.Transaction{
		AccountID:           account.ID,
		CategoryID:          in.CategoryID,
		Type:                in.Type,
		Amount:              in.Amount,
		Note:                in.Note,
		Date:                in.Date.UTC(),
		RecurringTemplateID: templateID,
	}

	if err := tx.Omit("Account", "Category").Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := accounts.UpdateAccountBalance(tx, account, in.Type, in.Amount); err != nil {
		return nil, err
	}

	return transaction, nil
}

// GetTransactions retrieves a paginated, filtered list of transactions, newest first.
func (s *transactionService) GetTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if filter.AccountID != nil {
		// Surface a missing account as 404 rather than an empty page
		if _, err := s.accountService.GetAccountByID(*filter.AccountID); err != nil {
			return nil, err
		}
	}

	page.Defaults()

	base := applyTransactionFilters(s.db.Model(&models.Transaction{}), filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Preload("Category").
		Order("date DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.RecurringTemplateID != nil {
		q = q.Where("recurring_template_id = ?", *f.RecurringTemplateID)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID
func (s *transactionService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Category").Where("id = ?", transactionID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// DeleteTransaction deletes a transaction and reverses its effect on the account balance
func (s *transactionService) DeleteTransaction(transactionID string) error {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return err
	}

	// Within a database transaction to ensure consistency
	return s.db.Transaction(func(tx *gorm.DB) error {
		account, err := findAccount(tx, transaction.AccountID, true)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Transaction{}, "id = ?", transaction.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.accountService.UpdateAccountBalance(tx, account, reverseType(transaction.Type), transaction.Amount)
	})
}

// SumByType totals income and expense amounts dated within [from, to).
func (s *transactionService) SumByType(from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return sumByType(s.db, from, to)
}

// sumByType adds amounts in Go so the totals stay exact on every driver.
func sumByType(db *gorm.DB, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var rows []struct {
		Type   models.TransactionType
		Amount decimal.Decimal
	}
	if err := db.Model(&models.Transaction{}).
		Select("type, amount").
		Where("date >= ? AND date < ?", from.UTC(), to.UTC()).
		Scan(&rows).Error; err != nil {
		return decimal.Zero, decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			income = income.Add(r.Amount)
		case models.TransactionTypeExpense:
			expense = expense.Add(r.Amount)
		}
	}
	return income, expense, nil
}
