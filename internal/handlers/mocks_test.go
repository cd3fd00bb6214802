package handlers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
)

// --- mock account service ---

type mockAccountService struct {
	createAccountFn    func(in services.AccountInput) (*models.Account, error)
	getAccountsFn      func(page pagination.PageRequest, filter services.AccountFilter) (*pagination.PageResponse[models.Account], error)
	getAccountByIDFn   func(accountID string) (*models.Account, error)
	updateAccountFn    func(accountID string, fields services.AccountUpdateFields) (*models.Account, error)
	getActiveAccountFn func() ([]models.Account, error)
}

func (m *mockAccountService) CreateAccount(in services.AccountInput) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(in)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetAccounts(page pagination.PageRequest, filter services.AccountFilter) (*pagination.PageResponse[models.Account], error) {
	if m.getAccountsFn != nil {
		return m.getAccountsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.Account{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAccountService) GetActiveAccounts() ([]models.Account, error) {
	if m.getActiveAccountFn != nil {
		return m.getActiveAccountFn()
	}
	return nil, nil
}

func (m *mockAccountService) GetAccountByID(accountID string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(accountID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) UpdateAccount(accountID string, fields services.AccountUpdateFields) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(accountID, fields)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) UpdateAccountBalance(_ *gorm.DB, _ *models.Account, _ models.TransactionType, _ decimal.Decimal) error {
	return nil
}

var _ services.AccountServicer = (*mockAccountService)(nil)

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn  func(name string, categoryType models.CategoryType, description, icon, color string) (*models.Category, error)
	getCategoriesFn   func(page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	getCategoryByIDFn func(categoryID string) (*models.Category, error)
	updateCategoryFn  func(categoryID string, fields services.CategoryUpdateFields) (*models.Category, error)
	deleteCategoryFn  func(categoryID string) error
}

func (m *mockCategoryService) CreateCategory(name string, categoryType models.CategoryType, description, icon, color string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(name, categoryType, description, icon, color)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetCategories(page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error) {
	if m.getCategoriesFn != nil {
		return m.getCategoriesFn(page, categoryType)
	}
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(categoryID string, fields services.CategoryUpdateFields) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(categoryID, fields)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(categoryID)
	}
	return nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn  func(in services.TransactionInput) (*models.Transaction, error)
	createTransactionsFn func(inputs []services.TransactionInput) ([]models.Transaction, error)
	getTransactionsFn    func(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn func(transactionID string) (*models.Transaction, error)
	deleteTransactionFn  func(transactionID string) error
}

func (m *mockTransactionService) CreateTransaction(in services.TransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(in)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) CreateTransactions(inputs []services.TransactionInput) ([]models.Transaction, error) {
	if m.createTransactionsFn != nil {
		return m.createTransactionsFn(inputs)
	}
	return make([]models.Transaction, len(inputs)), nil
}

func (m *mockTransactionService) GetTransactions(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getTransactionsFn != nil {
		return m.getTransactionsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) DeleteTransaction(transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(transactionID)
	}
	return nil
}

func (m *mockTransactionService) SumByType(_, _ time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

// --- mock recurring service ---

type mockRecurringService struct {
	createTemplateFn    func(in services.TemplateInput) (*models.RecurringTemplate, error)
	getTemplatesFn      func(page pagination.PageRequest, filter services.TemplateFilter) (*pagination.PageResponse[models.RecurringTemplate], error)
	getTemplateByIDFn   func(templateID string) (*models.RecurringTemplate, error)
	updateTemplateFn    func(templateID string, fields services.TemplateUpdateFields) (*models.RecurringTemplate, error)
	deleteTemplateFn    func(templateID string) error
	setActiveFn         func(templateID string, active bool) (*models.RecurringTemplate, error)
	rescheduleFromNowFn func(templateID string) (*models.RecurringTemplate, error)
	markExecutedFn      func(templateID string) (*models.RecurringTemplate, error)
	dueForExecutionFn   func(now time.Time) ([]models.RecurringTemplate, error)
	dueForReminderFn    func(now time.Time, horizonDays int) ([]models.RecurringTemplate, error)
	processAllDueFn     func(ctx context.Context, now time.Time) (*services.BatchReport, error)
}

func (m *mockRecurringService) CreateTemplate(in services.TemplateInput) (*models.RecurringTemplate, error) {
	if m.createTemplateFn != nil {
		return m.createTemplateFn(in)
	}
	return &models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) GetTemplates(page pagination.PageRequest, filter services.TemplateFilter) (*pagination.PageResponse[models.RecurringTemplate], error) {
	if m.getTemplatesFn != nil {
		return m.getTemplatesFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.RecurringTemplate{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockRecurringService) GetTemplateByID(templateID string) (*models.RecurringTemplate, error) {
	if m.getTemplateByIDFn != nil {
		return m.getTemplateByIDFn(templateID)
	}
	return &models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) UpdateTemplate(templateID string, fields services.TemplateUpdateFields) (*models.RecurringTemplate, error) {
	if m.updateTemplateFn != nil {
		return m.updateTemplateFn(templateID, fields)
	}
	return &models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) DeleteTemplate(templateID string) error {
	if m.deleteTemplateFn != nil {
		return m.deleteTemplateFn(templateID)
	}
	return nil
}

func (m *mockRecurringService) SetActive(templateID string, active bool) (*models.RecurringTemplate, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(templateID, active)
	}
	return &models.RecurringTemplate{IsActive: active}, nil
}

func (m *mockRecurringService) RescheduleFromNow(templateID string) (*models.RecurringTemplate, error) {
	if m.rescheduleFromNowFn != nil {
		return m.rescheduleFromNowFn(templateID)
	}
	return &models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) MarkExecuted(templateID string) (*models.RecurringTemplate, error) {
	if m.markExecutedFn != nil {
		return m.markExecutedFn(templateID)
	}
	return &models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) DueForExecution(now time.Time) ([]models.RecurringTemplate, error) {
	if m.dueForExecutionFn != nil {
		return m.dueForExecutionFn(now)
	}
	return []models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) DueForReminder(now time.Time, horizonDays int) ([]models.RecurringTemplate, error) {
	if m.dueForReminderFn != nil {
		return m.dueForReminderFn(now, horizonDays)
	}
	return []models.RecurringTemplate{}, nil
}

func (m *mockRecurringService) ProcessAllDue(ctx context.Context, now time.Time) (*services.BatchReport, error) {
	if m.processAllDueFn != nil {
		return m.processAllDueFn(ctx, now)
	}
	return &services.BatchReport{TransactionIDs: []string{}, Failures: []services.ItemFailure{}}, nil
}

var _ services.RecurringServicer = (*mockRecurringService)(nil)

// --- mock position service ---

type mockPositionService struct {
	buyFn                func(in services.BuyInput) (*services.TradeResult, error)
	sellFn               func(positionID string, quantity, price decimal.Decimal, note string) (*services.TradeResult, error)
	updatePriceFn        func(positionID string, price decimal.Decimal) (*models.InvestmentPosition, error)
	updatePricesByCodeFn func(quotes []services.PriceQuote) (*services.PriceUpdateReport, error)
	getPositionsFn       func(page pagination.PageRequest, filter services.PositionFilter) (*pagination.PageResponse[models.InvestmentPosition], error)
	getPositionByIDFn    func(positionID string) (*models.InvestmentPosition, error)
	getTradesFn          func(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionTrade], error)
	getPricesFn          func(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionPrice], error)
	getSummaryFn         func() (*ledger.Summary, error)
}

func (m *mockPositionService) Buy(in services.BuyInput) (*services.TradeResult, error) {
	if m.buyFn != nil {
		return m.buyFn(in)
	}
	return &services.TradeResult{Position: &models.InvestmentPosition{}, Trade: &models.PositionTrade{}}, nil
}

func (m *mockPositionService) Sell(positionID string, quantity, price decimal.Decimal, note string) (*services.TradeResult, error) {
	if m.sellFn != nil {
		return m.sellFn(positionID, quantity, price, note)
	}
	return &services.TradeResult{Position: &models.InvestmentPosition{}, Trade: &models.PositionTrade{}}, nil
}

func (m *mockPositionService) UpdatePrice(positionID string, price decimal.Decimal) (*models.InvestmentPosition, error) {
	if m.updatePriceFn != nil {
		return m.updatePriceFn(positionID, price)
	}
	return &models.InvestmentPosition{}, nil
}

func (m *mockPositionService) UpdatePricesByCode(quotes []services.PriceQuote) (*services.PriceUpdateReport, error) {
	if m.updatePricesByCodeFn != nil {
		return m.updatePricesByCodeFn(quotes)
	}
	return &services.PriceUpdateReport{UnknownCodes: []string{}}, nil
}

func (m *mockPositionService) GetPositions(page pagination.PageRequest, filter services.PositionFilter) (*pagination.PageResponse[models.InvestmentPosition], error) {
	if m.getPositionsFn != nil {
		return m.getPositionsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.InvestmentPosition{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockPositionService) GetPositionByID(positionID string) (*models.InvestmentPosition, error) {
	if m.getPositionByIDFn != nil {
		return m.getPositionByIDFn(positionID)
	}
	return &models.InvestmentPosition{}, nil
}

func (m *mockPositionService) GetTrades(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionTrade], error) {
	if m.getTradesFn != nil {
		return m.getTradesFn(positionID, page)
	}
	resp := pagination.NewPageResponse([]models.PositionTrade{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockPositionService) GetPrices(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionPrice], error) {
	if m.getPricesFn != nil {
		return m.getPricesFn(positionID, page)
	}
	resp := pagination.NewPageResponse([]models.PositionPrice{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockPositionService) GetSummary() (*ledger.Summary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn()
	}
	return &ledger.Summary{}, nil
}

var _ services.PositionServicer = (*mockPositionService)(nil)

// --- mock snapshot service ---

type mockSnapshotService struct {
	createFn       func() (*models.MonthlySnapshot, error)
	getSnapshotFn  func(year, month int) (*models.MonthlySnapshot, error)
	getSnapshotsFn func(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.MonthlySnapshot], error)
}

func (m *mockSnapshotService) CreateCurrentMonthSnapshot() (*models.MonthlySnapshot, error) {
	if m.createFn != nil {
		return m.createFn()
	}
	return &models.MonthlySnapshot{}, nil
}

func (m *mockSnapshotService) GetSnapshot(year, month int) (*models.MonthlySnapshot, error) {
	if m.getSnapshotFn != nil {
		return m.getSnapshotFn(year, month)
	}
	return &models.MonthlySnapshot{Year: year, Month: month}, nil
}

func (m *mockSnapshotService) GetSnapshots(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.MonthlySnapshot], error) {
	if m.getSnapshotsFn != nil {
		return m.getSnapshotsFn(page, from, to)
	}
	resp := pagination.NewPageResponse([]models.MonthlySnapshot{}, 1, 20, 0)
	return &resp, nil
}

var _ services.SnapshotServicer = (*mockSnapshotService)(nil)
