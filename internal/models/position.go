package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingType represents the kind of asset held in a position.
type HoldingType string

const (
	HoldingTypeStock   HoldingType = "stock"
	HoldingTypeFund    HoldingType = "fund"
	HoldingTypeBond    HoldingType = "bond"
	HoldingTypeDeposit HoldingType = "deposit"
	HoldingTypeCrypto  HoldingType = "crypto"
	HoldingTypeOther   HoldingType = "other"
)

// IsValid reports whether t is a supported holding type.
func (t HoldingType) IsValid() bool {
	switch t {
	case HoldingTypeStock, HoldingTypeFund, HoldingTypeBond,
		HoldingTypeDeposit, HoldingTypeCrypto, HoldingTypeOther:
		return true
	}
	return false
}

// InvestmentPosition is a holding valued at weighted-average cost.
//
// Principal, MarketValue, ProfitLoss and ReturnRate are derived from
// Quantity, CostPrice and CurrentPrice and are only written together by the
// ledger package.
type InvestmentPosition struct {
	Base
	AccountID    string          `gorm:"type:uuid;not null;index:idx_position_account_code,priority:1" json:"account_id"`
	Name         string          `gorm:"not null" json:"name"`
	Code         string          `gorm:"index:idx_position_account_code,priority:2" json:"code,omitempty"`
	HoldingType  HoldingType     `gorm:"not null" json:"holding_type"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	CostPrice    decimal.Decimal `gorm:"type:numeric;not null" json:"cost_price"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric;not null" json:"current_price"`
	Principal    decimal.Decimal `gorm:"type:numeric;not null" json:"principal"`
	MarketValue  decimal.Decimal `gorm:"type:numeric;not null" json:"market_value"`
	ProfitLoss   decimal.Decimal `gorm:"type:numeric;not null" json:"profit_loss"`
	ReturnRate   decimal.Decimal `gorm:"type:numeric;not null" json:"return_rate"`
	Note         string          `json:"note"`
	FirstBuyDate time.Time       `gorm:"not null" json:"first_buy_date"`
	IsSold       bool            `gorm:"not null;default:false;index" json:"is_sold"`
	SoldDate     *time.Time      `json:"sold_date,omitempty"`

	// Incremented on every mutation; writers update only if unchanged.
	Version int64 `gorm:"not null;default:1" json:"version"`

	// Relationships
	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

// TradeSide represents the direction of a position trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// PositionTrade records one buy or sell lot applied to a position.
type PositionTrade struct {
	Base
	PositionID string          `gorm:"type:uuid;not null;index" json:"position_id"`
	Side       TradeSide       `gorm:"not null" json:"side"`
	Quantity   decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	// Cost basis charged against principal (sells only)
	CostBasis decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"cost_basis"`
	// Sale proceeds minus cost basis (sells only)
	RealizedProfit decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"realized_profit"`
	Note           string          `json:"note"`
	TradeDate      time.Time       `gorm:"not null" json:"trade_date"`
}
