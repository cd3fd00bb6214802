package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/calendar"
	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// AccountInput holds the fields for a new account.
type AccountInput struct {
	Name           string
	Type           models.AccountType
	Description    string
	Currency       string
	InitialBalance decimal.Decimal
	// Defaults to true when nil
	IncludeInTotal *bool
}

// AccountUpdateFields holds optional fields for updating an account.
type AccountUpdateFields struct {
	Name           *string
	Description    *string
	IncludeInTotal *bool
	IsActive       *bool
}

// AccountFilter holds optional filter parameters for listing accounts.
type AccountFilter struct {
	Type            *models.AccountType
	IncludeInactive bool
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(in AccountInput) (*models.Account, error)
	GetAccounts(page pagination.PageRequest, filter AccountFilter) (*pagination.PageResponse[models.Account], error)
	GetActiveAccounts() ([]models.Account, error)
	GetAccountByID(accountID string) (*models.Account, error)
	UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error)
	UpdateAccountBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount decimal.Decimal) error
}

// CategoryUpdateFields holds optional fields for updating a category.
type CategoryUpdateFields struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(name string, categoryType models.CategoryType, description, icon, color string) (*models.Category, error)
	GetCategories(page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(categoryID string) (*models.Category, error)
	UpdateCategory(categoryID string, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(categoryID string) error
}

// TransactionInput holds the fields for a new ledger transaction. Manual
// entries, parser output and recurring materialization all go through it.
type TransactionInput struct {
	AccountID  string
	CategoryID *string
	Type       models.TransactionType
	Amount     decimal.Decimal
	Note       string
	// Defaults to now when zero
	Date time.Time
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate            *time.Time
	ToDate              *time.Time
	Type                *models.TransactionType
	CategoryID          *string
	AccountID           *string
	RecurringTemplateID *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(in TransactionInput) (*models.Transaction, error)
	CreateTransactions(inputs []TransactionInput) ([]models.Transaction, error)
	GetTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	DeleteTransaction(transactionID string) error
	SumByType(from, to time.Time) (income, expense decimal.Decimal, err error)
}

// TemplateInput holds the fields for a new recurring template.
type TemplateInput struct {
	Name        string
	Amount      decimal.Decimal
	Type        models.TransactionType
	CategoryID  *string
	AccountID   string
	Frequency   calendar.Frequency
	DayOfPeriod int
	Month       int
	Note        string
	// Defaults to true when nil
	AutoExecute *bool
	// Defaults to now when zero
	StartDate time.Time
}

// TemplateUpdateFields holds optional fields for updating a template.
// Changing any schedule field recomputes the next execution date.
type TemplateUpdateFields struct {
	Name        *string
	Amount      *decimal.Decimal
	CategoryID  *string
	Note        *string
	AutoExecute *bool
	Frequency   *calendar.Frequency
	DayOfPeriod *int
	Month       *int
}

// TemplateFilter holds optional filter parameters for listing templates.
type TemplateFilter struct {
	IsActive  *bool
	AccountID *string
}

// ItemFailure describes one template that could not be materialized.
type ItemFailure struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

// BatchReport is the outcome of one ProcessAllDue call.
type BatchReport struct {
	EvaluatedAt    time.Time     `json:"evaluated_at"`
	Due            int           `json:"due"`
	Processed      int           `json:"processed"`
	TransactionIDs []string      `json:"transaction_ids"`
	Failures       []ItemFailure `json:"failures"`
}

// RecurringServicer defines the contract for the recurring transaction scheduler.
type RecurringServicer interface {
	CreateTemplate(in TemplateInput) (*models.RecurringTemplate, error)
	GetTemplates(page pagination.PageRequest, filter TemplateFilter) (*pagination.PageResponse[models.RecurringTemplate], error)
	GetTemplateByID(templateID string) (*models.RecurringTemplate, error)
	UpdateTemplate(templateID string, fields TemplateUpdateFields) (*models.RecurringTemplate, error)
	DeleteTemplate(templateID string) error
	SetActive(templateID string, active bool) (*models.RecurringTemplate, error)
	RescheduleFromNow(templateID string) (*models.RecurringTemplate, error)
	MarkExecuted(templateID string) (*models.RecurringTemplate, error)
	DueForExecution(now time.Time) ([]models.RecurringTemplate, error)
	DueForReminder(now time.Time, horizonDays int) ([]models.RecurringTemplate, error)
	ProcessAllDue(ctx context.Context, now time.Time) (*BatchReport, error)
}

// BuyInput holds the fields for buying into a position.
type BuyInput struct {
	AccountID   string
	Name        string
	Code        string
	HoldingType models.HoldingType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Note        string
	// Defaults to now when zero
	Date time.Time
}

// TradeResult is the outcome of a buy or sell.
type TradeResult struct {
	Position *models.InvestmentPosition `json:"position"`
	Trade    *models.PositionTrade      `json:"trade"`
	// Buy merged into an existing open position
	Merged bool `json:"merged"`
	// Sell closed the position
	Liquidated bool `json:"liquidated"`
	// Quantity requested beyond what was held (sells only)
	Excess decimal.Decimal `json:"excess"`
}

// PositionFilter holds optional filter parameters for listing positions.
type PositionFilter struct {
	AccountID   *string
	HoldingType *models.HoldingType
	IsSold      *bool
}

// PriceQuote is one market price for all open positions with a code.
type PriceQuote struct {
	Code  string          `json:"code"`
	Price decimal.Decimal `json:"price"`
}

// PriceUpdateReport summarizes a bulk price update.
type PriceUpdateReport struct {
	Updated      int      `json:"updated"`
	UnknownCodes []string `json:"unknown_codes"`
}

// PositionServicer defines the contract for the investment position ledger.
type PositionServicer interface {
	Buy(in BuyInput) (*TradeResult, error)
	Sell(positionID string, quantity, price decimal.Decimal, note string) (*TradeResult, error)
	UpdatePrice(positionID string, price decimal.Decimal) (*models.InvestmentPosition, error)
	UpdatePricesByCode(quotes []PriceQuote) (*PriceUpdateReport, error)
	GetPositions(page pagination.PageRequest, filter PositionFilter) (*pagination.PageResponse[models.InvestmentPosition], error)
	GetPositionByID(positionID string) (*models.InvestmentPosition, error)
	GetTrades(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionTrade], error)
	GetPrices(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionPrice], error)
	GetSummary() (*ledger.Summary, error)
}

// SnapshotServicer defines the contract for the monthly snapshot aggregator.
type SnapshotServicer interface {
	CreateCurrentMonthSnapshot() (*models.MonthlySnapshot, error)
	GetSnapshot(year, month int) (*models.MonthlySnapshot, error)
	GetSnapshots(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.MonthlySnapshot], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actor, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
