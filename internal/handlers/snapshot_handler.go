package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/pagination"
	"tally/internal/services"
)

// SnapshotHandler handles monthly snapshot requests.
type SnapshotHandler struct {
	snapshotService services.SnapshotServicer
	auditService    services.AuditServicer
	location        *time.Location
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotService services.SnapshotServicer, auditService services.AuditServicer, loc *time.Location) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService, auditService: auditService, location: loc}
}

// ListSnapshotsQuery holds the month range for listing snapshots.
type ListSnapshotsQuery struct {
	pagination.PageRequest
	From string `form:"from"`
	To   string `form:"to"`
}

// CreateSnapshot handles taking the current month's snapshot
// @Summary     Take monthly snapshot
// @Description Record net worth and month-to-date cash flow for the current month. Repeating the call overwrites the month's figures.
// @Tags        snapshots
// @Produce     json
// @Success     201 {object} models.MonthlySnapshot "Snapshot stored"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /snapshots [post]
func (h *SnapshotHandler) CreateSnapshot(c *gin.Context) {
	snapshot, err := h.snapshotService.CreateCurrentMonthSnapshot()
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionSnapshot, "monthly_snapshot", snapshot.ID,
		map[string]interface{}{"year": snapshot.Year, "month": snapshot.Month, "net_worth": snapshot.NetWorth.String()})

	c.JSON(http.StatusCreated, gin.H{"snapshot": snapshot})
}

// GetSnapshots handles listing snapshots
// @Summary     List monthly snapshots
// @Description Newest month first. from and to select whole months and are inclusive.
// @Tags        snapshots
// @Produce     json
// @Param       from      query string false "First month (YYYY-MM-DD or RFC3339)"
// @Param       to        query string false "Last month (YYYY-MM-DD or RFC3339)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.MonthlySnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /snapshots [get]
func (h *SnapshotHandler) GetSnapshots(c *gin.Context) {
	var q ListSnapshotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, err := parseOptionalTime("from", &q.From, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseOptionalTime("to", &q.To, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var fromPtr, toPtr = &from, &to
	if from.IsZero() {
		fromPtr = nil
	}
	if to.IsZero() {
		toPtr = nil
	}

	result, err := h.snapshotService.GetSnapshots(q.PageRequest, fromPtr, toPtr)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSnapshot handles retrieving one month's snapshot
// @Summary     Get monthly snapshot
// @Tags        snapshots
// @Produce     json
// @Param       year  path int true "Year"
// @Param       month path int true "Month (1-12)"
// @Success     200 {object} models.MonthlySnapshot "Snapshot"
// @Failure     400 {object} ErrorResponse "Invalid year or month"
// @Failure     404 {object} ErrorResponse "Snapshot not found"
// @Router      /snapshots/{year}/{month} [get]
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	year, err := parsePathInt(c, "year")
	if err != nil {
		respondWithError(c, err)
		return
	}
	month, err := parsePathInt(c, "month")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snapshot, err := h.snapshotService.GetSnapshot(year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": snapshot})
}
