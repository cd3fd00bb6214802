package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a new account. The starting balance is recorded as
// both the balance and the initial balance; no opening transaction is written
// so it does not count as income in the month's cash flow.
func (s *accountService) CreateAccount(in AccountInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if !in.Type.IsValid() {
		return nil, apperrors.ErrInvalidAccountType
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD" // Default currency
	}

	includeInTotal := true
	if in.IncludeInTotal != nil {
		includeInTotal = *in.IncludeInTotal
	}

	account := &models.Account{
		Name:           name,
		Type:           in.Type,
		Description:    in.Description,
		Balance:        in.InitialBalance,
		InitialBalance: in.InitialBalance,
		Currency:       currency,
		IncludeInTotal: includeInTotal,
		IsActive:       true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetAccounts retrieves a paginated list of accounts.
func (s *accountService) GetAccounts(page pagination.PageRequest, filter AccountFilter) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	base := s.db.Model(&models.Account{})
	if !filter.IncludeInactive {
		base = base.Where("is_active = ?", true)
	}
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetActiveAccounts returns every active account, unpaginated.
func (s *accountService) GetActiveAccounts() ([]models.Account, error) {
	return activeAccounts(s.db)
}

func activeAccounts(db *gorm.DB) ([]models.Account, error) {
	var accounts []models.Account
	if err := db.Where("is_active = ?", true).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return accounts, nil
}

// GetAccountByID retrieves an account by ID, active or not.
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	return findAccount(s.db, accountID, false)
}

// findAccount loads an account, locking the row when forUpdate is set.
func findAccount(db *gorm.DB, accountID string, forUpdate bool) (*models.Account, error) {
	q := db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.Account
	if err := q.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount updates the mutable fields of an account.
func (s *accountService) UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.IncludeInTotal != nil {
		updates["include_in_total"] = *fields.IncludeInTotal
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// UpdateAccountBalance applies a transaction to the account balance: income
// adds and expense subtracts for every account type. Liability accounts
// therefore go negative as they are charged.
func (s *accountService) UpdateAccountBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount decimal.Decimal) error {
	return applyBalance(tx, account, transactionType, amount)
}

func applyBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount decimal.Decimal) error {
	switch transactionType {
	case models.TransactionTypeIncome:
		account.Balance = account.Balance.Add(amount)
	case models.TransactionTypeExpense:
		account.Balance = account.Balance.Sub(amount)
	default:
		return apperrors.ErrInvalidTransactionType
	}

	// Save the updated balance
	if err := tx.Model(account).Update("balance", account.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func reverseType(t models.TransactionType) models.TransactionType {
	if t == models.TransactionTypeIncome {
		return models.TransactionTypeExpense
	}
	return models.TransactionTypeIncome
}
