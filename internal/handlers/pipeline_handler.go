package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/services"
)

// PipelineHandler serves the endpoints driven by external schedulers and
// price feeds. Its routes sit behind the pipeline API key.
type PipelineHandler struct {
	recurringService services.RecurringServicer
	snapshotService  services.SnapshotServicer
	positionService  services.PositionServicer
	auditService     services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(
	recurringService services.RecurringServicer,
	snapshotService services.SnapshotServicer,
	positionService services.PositionServicer,
	auditService services.AuditServicer,
) *PipelineHandler {
	return &PipelineHandler{
		recurringService: recurringService,
		snapshotService:  snapshotService,
		positionService:  positionService,
		auditService:     auditService,
	}
}

// PriceQuoteRequest is one market price keyed by holding code.
type PriceQuoteRequest struct {
	Code  string          `json:"code" binding:"required,min=1,max=32"`
	Price decimal.Decimal `json:"price" binding:"gte=0"`
}

// SyncPricesRequest represents the request payload for a bulk price update.
type SyncPricesRequest struct {
	Prices []PriceQuoteRequest `json:"prices" binding:"required,min=1,max=500,dive"`
}

// ProcessRecurring handles a scheduled recurring batch
// @Summary     Process due recurring templates
// @Description Materialize one occurrence of every due template, evaluated at the server's current time
// @Tags        pipeline
// @Produce     json
// @Security    PipelineKey
// @Success     200 {object} services.BatchReport "Batch report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/recurring/process [post]
func (h *PipelineHandler) ProcessRecurring(c *gin.Context) {
	report, err := h.recurringService.ProcessAllDue(c.Request.Context(), zeroTime)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionProcessDue, "recurring_template", "",
		map[string]interface{}{"due": report.Due, "processed": report.Processed, "failed": len(report.Failures)})

	c.JSON(http.StatusOK, report)
}

// TakeSnapshot handles a scheduled snapshot
// @Summary     Take monthly snapshot
// @Tags        pipeline
// @Produce     json
// @Security    PipelineKey
// @Success     201 {object} models.MonthlySnapshot "Snapshot stored"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/snapshots [post]
func (h *PipelineHandler) TakeSnapshot(c *gin.Context) {
	snapshot, err := h.snapshotService.CreateCurrentMonthSnapshot()
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionSnapshot, "monthly_snapshot", snapshot.ID,
		map[string]interface{}{"year": snapshot.Year, "month": snapshot.Month})

	c.JSON(http.StatusCreated, gin.H{"snapshot": snapshot})
}

// SyncPrices handles a bulk price update from a price feed
// @Summary     Update prices by code
// @Description Reprice every open position with each code. All quotes apply or none do; codes with no open position are reported back.
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    PipelineKey
// @Param       request body SyncPricesRequest true "Prices"
// @Success     200 {object} services.PriceUpdateReport "Update report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/prices [post]
func (h *PipelineHandler) SyncPrices(c *gin.Context) {
	var req SyncPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	quotes := make([]services.PriceQuote, len(req.Prices))
	for i, p := range req.Prices {
		quotes[i] = services.PriceQuote{Code: p.Code, Price: p.Price}
	}

	report, err := h.positionService.UpdatePricesByCode(quotes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionReprice, "investment_position", "",
		map[string]interface{}{"quotes": len(quotes), "updated": report.Updated, "unknown_codes": report.UnknownCodes})

	c.JSON(http.StatusOK, report)
}
