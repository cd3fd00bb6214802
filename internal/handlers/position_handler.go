package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/uuid"
)

// PositionHandler handles investment position requests.
type PositionHandler struct {
	positionService services.PositionServicer
	auditService    services.AuditServicer
	location        *time.Location
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(positionService services.PositionServicer, auditService services.AuditServicer, loc *time.Location) *PositionHandler {
	return &PositionHandler{positionService: positionService, auditService: auditService, location: loc}
}

// BuyRequest represents the request payload for buying into a position.
// A buy with a code merges into the open position with the same code in the
// same account.
type BuyRequest struct {
	AccountID   string             `json:"account_id" binding:"required,uuid"`
	Name        string             `json:"name" binding:"max=100"`
	Code        string             `json:"code" binding:"max=32"`
	HoldingType models.HoldingType `json:"holding_type" binding:"omitempty,holding_type"`
	Quantity    decimal.Decimal    `json:"quantity" binding:"required,gt=0"`
	Price       decimal.Decimal    `json:"price" binding:"required,gt=0"`
	Note        string             `json:"note" binding:"max=500"`
	Date        *string            `json:"date"`
}

// SellRequest represents the request payload for selling from a position.
type SellRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Price    decimal.Decimal `json:"price" binding:"gte=0"`
	Note     string          `json:"note" binding:"max=500"`
}

// UpdatePriceRequest represents the request payload for repricing a position.
type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"gte=0"`
}

// Buy handles buying into a position
// @Summary     Buy into a position
// @Description Open a position or add to an open one at weighted-average cost. The current price becomes the buy price.
// @Tags        positions
// @Accept      json
// @Produce     json
// @Param       request body BuyRequest true "Buy details"
// @Success     201 {object} services.TradeResult "Trade applied"
// @Failure     400 {object} ErrorResponse "Invalid input or not an investment account"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Position changed concurrently"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /positions/buy [post]
func (h *PositionHandler) Buy(c *gin.Context) {
	var req BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseOptionalTime("date", req.Date, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.positionService.Buy(services.BuyInput{
		AccountID:   req.AccountID,
		Name:        req.Name,
		Code:        req.Code,
		HoldingType: req.HoldingType,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Note:        req.Note,
		Date:        date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionBuy, "investment_position", result.Position.ID,
		map[string]interface{}{
			"quantity": req.Quantity.String(),
			"price":    req.Price.String(),
			"merged":   result.Merged,
		})

	c.JSON(http.StatusCreated, result)
}

// Sell handles selling from a position
// @Summary     Sell from a position
// @Description Reduce a position at its average cost. Selling the whole holding, or more, closes it and reports the excess.
// @Tags        positions
// @Accept      json
// @Produce     json
// @Param       id      path string      true "Position ID"
// @Param       request body SellRequest true "Sell details"
// @Success     200 {object} services.TradeResult "Trade applied"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Failure     409 {object} ErrorResponse "Position already sold"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /positions/{id}/sell [post]
func (h *PositionHandler) Sell(c *gin.Context) {
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.positionService.Sell(positionID, req.Quantity, req.Price, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionSell, "investment_position", positionID,
		map[string]interface{}{
			"quantity":   req.Quantity.String(),
			"price":      req.Price.String(),
			"liquidated": result.Liquidated,
			"excess":     result.Excess.String(),
		})

	c.JSON(http.StatusOK, result)
}

// UpdatePrice handles repricing a position
// @Summary     Update position price
// @Description Set the current market price and recompute market value and profit
// @Tags        positions
// @Accept      json
// @Produce     json
// @Param       id      path string             true "Position ID"
// @Param       request body UpdatePriceRequest true "New price"
// @Success     200 {object} models.InvestmentPosition "Updated position"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Failure     409 {object} ErrorResponse "Position already sold"
// @Router      /positions/{id}/price [put]
func (h *PositionHandler) UpdatePrice(c *gin.Context) {
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	position, err := h.positionService.UpdatePrice(positionID, req.Price)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionReprice, "investment_position", positionID,
		map[string]interface{}{"price": req.Price.String()})

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// GetPositions handles listing positions
// @Summary     List positions
// @Tags        positions
// @Produce     json
// @Param       account_id   query string false "Filter by account ID"
// @Param       holding_type query string false "Filter by holding type"
// @Param       is_sold      query bool   false "Filter by sold flag"
// @Param       page         query int    false "Page number (default 1)"
// @Param       page_size    query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestmentPosition] "Paginated positions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /positions [get]
func (h *PositionHandler) GetPositions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.PositionFilter
	if v := c.Query("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid account_id"))
			return
		}
		filter.AccountID = &id
	}
	if v := c.Query("holding_type"); v != "" {
		ht := models.HoldingType(v)
		if !ht.IsValid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid holding_type"))
			return
		}
		filter.HoldingType = &ht
	}
	if v := c.Query("is_sold"); v != "" {
		sold, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid is_sold"))
			return
		}
		filter.IsSold = &sold
	}

	result, err := h.positionService.GetPositions(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPositionByID handles retrieving one position
// @Summary     Get position
// @Tags        positions
// @Produce     json
// @Param       id path string true "Position ID"
// @Success     200 {object} models.InvestmentPosition "Position details"
// @Failure     400 {object} ErrorResponse "Invalid position ID"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /positions/{id} [get]
func (h *PositionHandler) GetPositionByID(c *gin.Context) {
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	position, err := h.positionService.GetPositionByID(positionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// GetSummary handles the portfolio rollup
// @Summary     Portfolio summary
// @Description Totals across open positions, with a breakdown by holding type
// @Tags        positions
// @Produce     json
// @Success     200 {object} ledger.Summary "Portfolio summary"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /positions/summary [get]
func (h *PositionHandler) GetSummary(c *gin.Context) {
	summary, err := h.positionService.GetSummary()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetTrades handles listing a position's trades
// @Summary     List position trades
// @Tags        positions
// @Produce     json
// @Param       id        path  string true  "Position ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PositionTrade] "Paginated trades"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /positions/{id}/trades [get]
func (h *PositionHandler) GetTrades(c *gin.Context) {
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.positionService.GetTrades(positionID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPrices handles listing a position's price history
// @Summary     List position price history
// @Tags        positions
// @Produce     json
// @Param       id        path  string true  "Position ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PositionPrice] "Paginated prices"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /positions/{id}/prices [get]
func (h *PositionHandler) GetPrices(c *gin.Context) {
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.positionService.GetPrices(positionID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
