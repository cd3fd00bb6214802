package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/clock"
	apperrors "tally/internal/errors"
	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// positionService maintains weighted-average cost positions and their trade
// and price history.
type positionService struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewPositionService creates a new PositionServicer.
func NewPositionService(db *gorm.DB, clk clock.Clock) PositionServicer {
	return &positionService{db: db, clock: clk}
}

// Buy applies a buy lot. A buy with a code merges into the open position with
// the same account and code if there is one; a buy without a code always
// opens a new position.
func (s *positionService) Buy(in BuyInput) (*TradeResult, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = code
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "position name or code is required")
	}
	if in.HoldingType == "" {
		in.HoldingType = models.HoldingTypeOther
	}
	if !in.HoldingType.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported holding type")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}
	if !in.Price.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be greater than zero")
	}

	date := in.Date
	if date.IsZero() {
		date = s.clock.Now()
	}
	lot := ledger.Lot{Quantity: in.Quantity, Price: in.Price}

	result := &TradeResult{Excess: decimal.Zero}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := findAccount(tx, in.AccountID, false)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return apperrors.ErrAccountInactive
		}
		if account.Type != models.AccountTypeInvestment {
			return apperrors.ErrNotInvestmentAccount
		}

		var position *models.InvestmentPosition
		if code != "" {
			var existing models.InvestmentPosition
			err := tx.Where("account_id = ? AND code = ? AND is_sold = ?", account.ID, code, false).
				Order("created_at ASC").
				First(&existing).Error
			switch {
			case err == nil:
				position = &existing
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		if position != nil {
			ledger.ApplyBuy(position, lot)
			if err := savePosition(tx, position); err != nil {
				return err
			}
			result.Merged = true
		} else {
			position = &models.InvestmentPosition{
				AccountID:    account.ID,
				Name:         name,
				Code:         code,
				HoldingType:  in.HoldingType,
				Note:         in.Note,
				FirstBuyDate: date.UTC(),
				Version:      1,
			}
			ledger.OpenPosition(position, lot)
			if err := tx.Omit("Account").Create(position).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := recordPrice(tx, position.ID, in.Price, date); err != nil {
				return err
			}
		}

		trade := &models.PositionTrade{
			PositionID:     position.ID,
			Side:           models.TradeSideBuy,
			Quantity:       in.Quantity,
			Price:          in.Price,
			Amount:         lot.Amount(),
			CostBasis:      lot.Amount(),
			RealizedProfit: decimal.Zero,
			Note:           in.Note,
			TradeDate:      date.UTC(),
		}
		if err := tx.Create(trade).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		result.Position = position
		result.Trade = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Sell applies a sell lot. Principal is charged at the weighted-average cost.
// Selling the whole holding, or more than is held, closes the position and
// reports the excess quantity instead of failing.
func (s *positionService) Sell(positionID string, quantity, price decimal.Decimal, note string) (*TradeResult, error) {
	if !quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}
	if price.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price cannot be negative")
	}

	now := s.clock.Now()
	var result *TradeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		position, err := findPosition(tx, positionID)
		if err != nil {
			return err
		}
		if position.IsSold {
			return apperrors.ErrPositionClosed
		}

		out := ledger.ApplySell(position, ledger.Lot{Quantity: quantity, Price: price})
		if out.Liquidated {
			soldAt := now.UTC()
			position.SoldDate = &soldAt
		}
		if err := savePosition(tx, position); err != nil {
			return err
		}

		trade := &models.PositionTrade{
			PositionID:     position.ID,
			Side:           models.TradeSideSell,
			Quantity:       quantity.Sub(out.Excess),
			Price:          price,
			Amount:         out.Proceeds,
			CostBasis:      out.CostOfSold,
			RealizedProfit: out.RealizedPL,
			Note:           note,
			TradeDate:      now.UTC(),
		}
		if err := tx.Create(trade).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		result = &TradeResult{
			Position:   position,
			Trade:      trade,
			Liquidated: out.Liquidated,
			Excess:     out.Excess,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePrice sets the current market price of an open position.
func (s *positionService) UpdatePrice(positionID string, price decimal.Decimal) (*models.InvestmentPosition, error) {
	if price.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price cannot be negative")
	}

	now := s.clock.Now()
	var position *models.InvestmentPosition
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		position, err = findPosition(tx, positionID)
		if err != nil {
			return err
		}
		if position.IsSold {
			return apperrors.ErrPositionClosed
		}
		return reprice(tx, position, price, now)
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// UpdatePricesByCode reprices every open position carrying one of the quoted
// codes. Codes with no open position are reported back. The update is
// all-or-nothing.
func (s *positionService) UpdatePricesByCode(quotes []PriceQuote) (*PriceUpdateReport, error) {
	if len(quotes) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one quote is required")
	}
	for _, q := range quotes {
		if strings.TrimSpace(q.Code) == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quote code is required")
		}
		if q.Price.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price cannot be negative")
		}
	}

	now := s.clock.Now()
	report := &PriceUpdateReport{UnknownCodes: []string{}}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, q := range quotes {
			var positions []models.InvestmentPosition
			if err := tx.Where("code = ? AND is_sold = ?", strings.TrimSpace(q.Code), false).
				Find(&positions).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if len(positions) == 0 {
				report.UnknownCodes = append(report.UnknownCodes, q.Code)
				continue
			}
			for i := range positions {
				if err := reprice(tx, &positions[i], q.Price, now); err != nil {
					return err
				}
				report.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(report.UnknownCodes)
	return report, nil
}

// GetPositions retrieves a paginated, filtered list of positions.
func (s *positionService) GetPositions(page pagination.PageRequest, filter PositionFilter) (*pagination.PageResponse[models.InvestmentPosition], error) {
	page.Defaults()

	base := s.db.Model(&models.InvestmentPosition{})
	if filter.AccountID != nil {
		base = base.Where("account_id = ?", *filter.AccountID)
	}
	if filter.HoldingType != nil {
		base = base.Where("holding_type = ?", *filter.HoldingType)
	}
	if filter.IsSold != nil {
		base = base.Where("is_sold = ?", *filter.IsSold)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var positions []models.InvestmentPosition
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&positions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(positions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPositionByID retrieves a position by ID
func (s *positionService) GetPositionByID(positionID string) (*models.InvestmentPosition, error) {
	return findPosition(s.db, positionID)
}

// GetTrades lists a position's trades, newest first.
func (s *positionService) GetTrades(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionTrade], error) {
	if _, err := s.GetPositionByID(positionID); err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.PositionTrade{}).Where("position_id = ?", positionID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var trades []models.PositionTrade
	if err := base.Scopes(pagination.Paginate(page)).
		Order("trade_date DESC").
		Order("id DESC").
		Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(trades, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPrices lists a position's recorded prices, newest first.
func (s *positionService) GetPrices(positionID string, page pagination.PageRequest) (*pagination.PageResponse[models.PositionPrice], error) {
	if _, err := s.GetPositionByID(positionID); err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.PositionPrice{}).Where("position_id = ?", positionID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var prices []models.PositionPrice
	if err := base.Scopes(pagination.Paginate(page)).
		Order("recorded_at DESC").
		Order("id DESC").
		Find(&prices).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(prices, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetSummary aggregates all open positions.
func (s *positionService) GetSummary() (*ledger.Summary, error) {
	var positions []models.InvestmentPosition
	if err := s.db.Where("is_sold = ?", false).Order("created_at ASC").Find(&positions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	summary := ledger.Summarize(positions)
	return &summary, nil
}

func findPosition(db *gorm.DB, positionID string) (*models.InvestmentPosition, error) {
	var position models.InvestmentPosition
	if err := db.Where("id = ?", positionID).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPositionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &position, nil
}

func reprice(tx *gorm.DB, position *models.InvestmentPosition, price decimal.Decimal, at time.Time) error {
	ledger.Reprice(position, price)
	if err := savePosition(tx, position); err != nil {
		return err
	}
	return recordPrice(tx, position.ID, price, at)
}

func recordPrice(tx *gorm.DB, positionID string, price decimal.Decimal, at time.Time) error {
	row := &models.PositionPrice{PositionID: positionID, Price: price, RecordedAt: at.UTC()}
	if err := tx.Create(row).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// savePosition writes every derived column of position if its version is
// unchanged since it was read, then bumps the in-memory version.
func savePosition(tx *gorm.DB, position *models.InvestmentPosition) error {
	res := tx.Model(&models.InvestmentPosition{}).
		Where("id = ? AND version = ?", position.ID, position.Version).
		Updates(map[string]interface{}{
			"quantity":      position.Quantity,
			"cost_price":    position.CostPrice,
			"current_price": position.CurrentPrice,
			"principal":     position.Principal,
			"market_value":  position.MarketValue,
			"profit_loss":   position.ProfitLoss,
			"return_rate":   position.ReturnRate,
			"is_sold":       position.IsSold,
			"sold_date":     position.SoldDate,
			"version":       position.Version + 1,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConcurrentUpdate
	}
	position.Version++
	return nil
}
