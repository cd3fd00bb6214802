// Package ledger holds the arithmetic behind investment positions and monthly
// snapshots. Nothing here touches the database; services load rows, call into
// this package and persist the result.
package ledger

import (
	"github.com/shopspring/decimal"

	"tally/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Lot is one buy or sell applied to a position.
type Lot struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Amount returns quantity times price.
func (l Lot) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// SellOutcome describes what a sell did to a position.
type SellOutcome struct {
	// Liquidated is set when the sell brought the held quantity to zero or below.
	Liquidated bool
	// Excess is the quantity requested beyond what was held. Always >= 0.
	Excess decimal.Decimal
	// CostOfSold is the principal released, charged at the weighted-average cost.
	CostOfSold decimal.Decimal
	Proceeds   decimal.Decimal
	RealizedPL decimal.Decimal
}

// OpenPosition initializes p from its first lot.
func OpenPosition(p *models.InvestmentPosition, lot Lot) {
	p.Quantity = lot.Quantity
	p.CostPrice = lot.Price
	p.CurrentPrice = lot.Price
	p.Principal = lot.Amount()
	p.IsSold = false
	p.SoldDate = nil
	recompute(p)
}

// ApplyBuy merges a lot into an open position. The cost price becomes the new
// principal over the new quantity; current price is left as it was.
func ApplyBuy(p *models.InvestmentPosition, lot Lot) {
	p.Quantity = p.Quantity.Add(lot.Quantity)
	p.Principal = p.Principal.Add(lot.Amount())
	if p.Quantity.IsPositive() {
		p.CostPrice = p.Principal.Div(p.Quantity)
	}
	recompute(p)
}

// ApplySell removes a lot from p. Selling as much as or more than is held
// liquidates the position: IsSold is set and quantity and principal keep
// their last held values for history. Otherwise principal drops by the sold
// quantity at the current cost price and the cost price stays unchanged.
//
// The caller sets SoldDate.
func ApplySell(p *models.InvestmentPosition, lot Lot) SellOutcome {
	remaining := p.Quantity.Sub(lot.Quantity)

	if !remaining.IsPositive() {
		out := SellOutcome{
			Liquidated: true,
			Excess:     remaining.Neg(),
			CostOfSold: p.Principal,
			Proceeds:   p.Quantity.Mul(lot.Price),
		}
		out.RealizedPL = out.Proceeds.Sub(out.CostOfSold)
		p.IsSold = true
		return out
	}

	out := SellOutcome{
		Excess:     decimal.Zero,
		CostOfSold: lot.Quantity.Mul(p.CostPrice),
		Proceeds:   lot.Amount(),
	}
	out.RealizedPL = out.Proceeds.Sub(out.CostOfSold)

	p.Quantity = remaining
	p.Principal = p.Principal.Sub(out.CostOfSold)
	recompute(p)
	return out
}

// Reprice sets the current price and refreshes the market figures.
func Reprice(p *models.InvestmentPosition, price decimal.Decimal) {
	p.CurrentPrice = price
	recompute(p)
}

func recompute(p *models.InvestmentPosition) {
	p.MarketValue = p.Quantity.Mul(p.CurrentPrice)
	p.ProfitLoss = p.MarketValue.Sub(p.Principal)
	p.ReturnRate = Percent(p.ProfitLoss, p.Principal)
}

// Percent returns part / whole * 100 rounded to 4 places, or zero when whole
// is not positive.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 4)
}

// TypeSummary aggregates the open positions of one holding type.
type TypeSummary struct {
	HoldingType      models.HoldingType `json:"holding_type"`
	Count            int                `json:"count"`
	TotalPrincipal   decimal.Decimal    `json:"total_principal"`
	TotalMarketValue decimal.Decimal    `json:"total_market_value"`
	TotalProfitLoss  decimal.Decimal    `json:"total_profit_loss"`
}

// Summary aggregates all open positions.
type Summary struct {
	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalProfitLoss  decimal.Decimal `json:"total_profit_loss"`
	ReturnRate       decimal.Decimal `json:"return_rate"`
	PositionCount    int             `json:"position_count"`
	ProfitableCount  int             `json:"profitable_count"`
	LosingCount      int             `json:"losing_count"`
	ByType           []TypeSummary   `json:"by_type"`
}

// Summarize rolls up positions, skipping sold ones. Positions with exactly
// zero profit count as neither profitable nor losing. ByType follows the
// order in which holding types first appear.
func Summarize(positions []models.InvestmentPosition) Summary {
	s := Summary{
		TotalPrincipal:   decimal.Zero,
		TotalMarketValue: decimal.Zero,
		TotalProfitLoss:  decimal.Zero,
		ByType:           []TypeSummary{},
	}
	idx := map[models.HoldingType]int{}

	for i := range positions {
		p := &positions[i]
		if p.IsSold {
			continue
		}
		s.PositionCount++
		s.TotalPrincipal = s.TotalPrincipal.Add(p.Principal)
		s.TotalMarketValue = s.TotalMarketValue.Add(p.MarketValue)
		s.TotalProfitLoss = s.TotalProfitLoss.Add(p.ProfitLoss)
		switch p.ProfitLoss.Sign() {
		case 1:
			s.ProfitableCount++
		case -1:
			s.LosingCount++
		}

		j, ok := idx[p.HoldingType]
		if !ok {
			j = len(s.ByType)
			idx[p.HoldingType] = j
			s.ByType = append(s.ByType, TypeSummary{
				HoldingType:      p.HoldingType,
				TotalPrincipal:   decimal.Zero,
				TotalMarketValue: decimal.Zero,
				TotalProfitLoss:  decimal.Zero,
			})
		}
		t := &s.ByType[j]
		t.Count++
		t.TotalPrincipal = t.TotalPrincipal.Add(p.Principal)
		t.TotalMarketValue = t.TotalMarketValue.Add(p.MarketValue)
		t.TotalProfitLoss = t.TotalProfitLoss.Add(p.ProfitLoss)
	}

	s.ReturnRate = Percent(s.TotalProfitLoss, s.TotalPrincipal)
	return s
}
