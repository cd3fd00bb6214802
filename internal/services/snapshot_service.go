package services

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/calendar"
	"tally/internal/clock"
	apperrors "tally/internal/errors"
	"tally/internal/ledger"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// snapshotColumns are overwritten when a month is snapshotted again.
var snapshotColumns = []string{
	"snapshot_date",
	"total_assets",
	"total_liabilities",
	"net_worth",
	"cash_assets",
	"investment_assets",
	"investment_principal",
	"investment_return",
	"monthly_income",
	"monthly_expense",
	"monthly_balance",
	"savings_rate",
	"accounts",
	"updated_at",
}

// snapshotService computes and stores monthly net-worth snapshots.
type snapshotService struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB, clk clock.Clock) SnapshotServicer {
	return &snapshotService{db: db, clock: clk}
}

// CreateCurrentMonthSnapshot rolls up active accounts and this month's
// transactions into the snapshot for the clock's current month, replacing
// any earlier snapshot of the same month in place.
func (s *snapshotService) CreateCurrentMonthSnapshot() (*models.MonthlySnapshot, error) {
	now := s.clock.Now()
	start, end := calendar.MonthBounds(now)

	accounts, err := activeAccounts(s.db)
	if err != nil {
		return nil, err
	}
	income, expense, err := sumByType(s.db, start, end)
	if err != nil {
		return nil, err
	}
	totals := ledger.Rollup(accounts, income, expense)

	snapshot := &models.MonthlySnapshot{
		Year:                now.Year(),
		Month:               int(now.Month()),
		SnapshotDate:        now.UTC(),
		TotalAssets:         totals.TotalAssets,
		TotalLiabilities:    totals.TotalLiabilities,
		NetWorth:            totals.NetWorth,
		CashAssets:          totals.CashAssets,
		InvestmentAssets:    totals.InvestmentAssets,
		InvestmentPrincipal: totals.InvestmentPrincipal,
		InvestmentReturn:    totals.InvestmentReturn,
		MonthlyIncome:       totals.MonthlyIncome,
		MonthlyExpense:      totals.MonthlyExpense,
		MonthlyBalance:      totals.MonthlyBalance,
		SavingsRate:         totals.SavingsRate,
		Accounts:            datatypes.NewJSONType(ledger.BalanceSet(accounts)),
	}

	var saved *models.MonthlySnapshot
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns(snapshotColumns),
		}).Create(snapshot).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// On conflict the stored row keeps its original id; read it back.
		var err error
		saved, err = findSnapshot(tx, snapshot.Year, snapshot.Month)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("monthly snapshot stored",
		"snapshot_id", saved.ID,
		"year", saved.Year,
		"month", saved.Month,
		"net_worth", saved.NetWorth.String(),
		"accounts", len(accounts),
	)
	return saved, nil
}

// GetSnapshot retrieves the snapshot for one month.
func (s *snapshotService) GetSnapshot(year, month int) (*models.MonthlySnapshot, error) {
	if month < 1 || month > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	return findSnapshot(s.db, year, month)
}

func findSnapshot(db *gorm.DB, year, month int) (*models.MonthlySnapshot, error) {
	var snapshot models.MonthlySnapshot
	if err := db.Where("year = ? AND month = ?", year, month).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSnapshotNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &snapshot, nil
}

// GetSnapshots lists snapshots newest month first. from and to select
// whole months, both inclusive.
func (s *snapshotService) GetSnapshots(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.MonthlySnapshot], error) {
	page.Defaults()

	base := s.db.Model(&models.MonthlySnapshot{})
	if from != nil {
		base = base.Where("year * 100 + month >= ?", periodKey(*from))
	}
	if to != nil {
		base = base.Where("year * 100 + month <= ?", periodKey(*to))
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.MonthlySnapshot
	if err := base.Scopes(pagination.Paginate(page)).
		Order("year DESC").
		Order("month DESC").
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func periodKey(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}
