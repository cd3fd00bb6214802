package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/calendar"
	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/uuid"
)

// RecurringHandler handles recurring template requests and batch runs.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	auditService     services.AuditServicer
	reminderDays     int
	location         *time.Location
}

// NewRecurringHandler creates a new RecurringHandler. reminderDays is the
// default horizon for GET /recurring/upcoming.
// NewRecurringHandler creates a RecurringHandler. Plain dates in requests are
// read as midnight in loc.
func NewRecurringHandler(recurringService services.RecurringServicer, auditService services.AuditServicer, reminderDays int, loc *time.Location) *RecurringHandler {
	if reminderDays < 1 {
		reminderDays = services.DefaultReminderHorizonDays
	}
	return &RecurringHandler{
		recurringService: recurringService,
		auditService:     auditService,
		reminderDays:     reminderDays,
		location:         loc,
	}
}

// CreateTemplateRequest represents the request payload for creating a recurring template.
// day_of_period is the day of month for monthly and yearly schedules and the
// ISO weekday (1 = Monday) for weekly ones.
type CreateTemplateRequest struct {
	Name        string                 `json:"name" binding:"required,min=1,max=100"`
	Amount      decimal.Decimal        `json:"amount" binding:"required,gt=0"`
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	CategoryID  *string                `json:"category_id" binding:"omitempty,uuid"`
	AccountID   string                 `json:"account_id" binding:"required,uuid"`
	Frequency   calendar.Frequency     `json:"frequency" binding:"required,frequency"`
	DayOfPeriod int                    `json:"day_of_period" binding:"gte=0,lte=31"`
	Month       int                    `json:"month" binding:"gte=0,lte=12"`
	Note        string                 `json:"note" binding:"max=500"`
	AutoExecute *bool                  `json:"auto_execute"`
	StartDate   *string                `json:"start_date"`
}

// UpdateTemplateRequest represents the request payload for updating a template.
type UpdateTemplateRequest struct {
	Name        *string             `json:"name" binding:"omitempty,min=1,max=100"`
	Amount      *decimal.Decimal    `json:"amount" binding:"omitempty,gt=0"`
	CategoryID  *string             `json:"category_id" binding:"omitempty,uuid"`
	Note        *string             `json:"note" binding:"omitempty,max=500"`
	AutoExecute *bool               `json:"auto_execute"`
	Frequency   *calendar.Frequency `json:"frequency" binding:"omitempty,frequency"`
	DayOfPeriod *int                `json:"day_of_period" binding:"omitempty,gte=0,lte=31"`
	Month       *int                `json:"month" binding:"omitempty,gte=0,lte=12"`
}

// SetActiveRequest toggles a template.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ProcessDueRequest optionally evaluates a batch at a given time instead of now.
type ProcessDueRequest struct {
	Now *string `json:"now"`
}

// CreateTemplate handles the creation of a recurring template
// @Summary     Create a recurring template
// @Description Create a recurring income or expense. The first execution is the earliest occurrence at or after the start date.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       request body CreateTemplateRequest true "Template details"
// @Success     201 {object} models.RecurringTemplate "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input or schedule"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	start, err := parseOptionalTime("start_date", req.StartDate, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tmpl, err := h.recurringService.CreateTemplate(services.TemplateInput{
		Name:        req.Name,
		Amount:      req.Amount,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
		Frequency:   req.Frequency,
		DayOfPeriod: req.DayOfPeriod,
		Month:       req.Month,
		Note:        req.Note,
		AutoExecute: req.AutoExecute,
		StartDate:   start,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionCreate, "recurring_template", tmpl.ID,
		map[string]interface{}{"name": tmpl.Name, "frequency": tmpl.Frequency, "next_execution_date": tmpl.NextExecutionDate})

	c.JSON(http.StatusCreated, gin.H{"template": tmpl})
}

// GetTemplates handles listing recurring templates
// @Summary     List recurring templates
// @Description Get a paginated list of templates ordered by next execution date
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       is_active  query bool   false "Filter by active flag"
// @Param       account_id query string false "Filter by account ID"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RecurringTemplate] "Paginated templates"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [get]
func (h *RecurringHandler) GetTemplates(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.TemplateFilter
	if v := c.Query("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid is_active"))
			return
		}
		filter.IsActive = &active
	}
	if v := c.Query("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid account_id"))
			return
		}
		filter.AccountID = &id
	}

	result, err := h.recurringService.GetTemplates(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTemplateByID handles retrieving one template
// @Summary     Get recurring template
// @Tags        recurring
// @Produce     json
// @Param       id path string true "Template ID"
// @Success     200 {object} models.RecurringTemplate "Template details"
// @Failure     400 {object} ErrorResponse "Invalid template ID"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Router      /recurring/{id} [get]
func (h *RecurringHandler) GetTemplateByID(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tmpl, err := h.recurringService.GetTemplateByID(templateID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": tmpl})
}

// UpdateTemplate handles updating a template
// @Summary     Update recurring template
// @Description Update template fields. Changing the schedule recomputes the next execution date from now.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       id      path string                true "Template ID"
// @Param       request body UpdateTemplateRequest true "Updated fields"
// @Success     200 {object} models.RecurringTemplate "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid input or schedule"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     409 {object} ErrorResponse "Template changed concurrently"
// @Router      /recurring/{id} [put]
func (h *RecurringHandler) UpdateTemplate(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tmpl, err := h.recurringService.UpdateTemplate(templateID, services.TemplateUpdateFields{
		Name:        req.Name,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Note:        req.Note,
		AutoExecute: req.AutoExecute,
		Frequency:   req.Frequency,
		DayOfPeriod: req.DayOfPeriod,
		Month:       req.Month,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionUpdate, "recurring_template", templateID, nil)

	c.JSON(http.StatusOK, gin.H{"template": tmpl})
}

// DeleteTemplate handles deleting a template
// @Summary     Delete recurring template
// @Description Permanently delete a template. Transactions it produced are kept. Prefer deactivating to keep history.
// @Tags        recurring
// @Produce     json
// @Param       id path string true "Template ID"
// @Success     200 {object} MessageResponse "Template deleted"
// @Failure     400 {object} ErrorResponse "Invalid template ID"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Router      /recurring/{id} [delete]
func (h *RecurringHandler) DeleteTemplate(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.recurringService.DeleteTemplate(templateID); err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionDelete, "recurring_template", templateID, nil)

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// SetActive handles activating or deactivating a template
// @Summary     Activate or deactivate a template
// @Description Toggle a template. The next execution date is left as is, so a reactivated template may be due immediately.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       id      path string           true "Template ID"
// @Param       request body SetActiveRequest true "Active flag"
// @Success     200 {object} models.RecurringTemplate "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     409 {object} ErrorResponse "Template changed concurrently"
// @Router      /recurring/{id}/active [put]
func (h *RecurringHandler) SetActive(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tmpl, err := h.recurringService.SetActive(templateID, *req.Active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionUpdate, "recurring_template", templateID,
		map[string]interface{}{"is_active": *req.Active})

	c.JSON(http.StatusOK, gin.H{"template": tmpl})
}

// MarkExecuted handles recording an execution made outside the batch
// @Summary     Mark a template executed
// @Description Advance a template by one period without creating a transaction, e.g. after paying a reminded bill by hand
// @Tags        recurring
// @Produce     json
// @Param       id path string true "Template ID"
// @Success     200 {object} models.RecurringTemplate "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid template ID"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     409 {object} ErrorResponse "Template changed concurrently"
// @Router      /recurring/{id}/executed [post]
func (h *RecurringHandler) MarkExecuted(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tmpl, err := h.recurringService.MarkExecuted(templateID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionUpdate, "recurring_template", templateID,
		map[string]interface{}{"marked_executed": true, "next_execution_date": tmpl.NextExecutionDate})

	c.JSON(http.StatusOK, gin.H{"template": tmpl})
}

// Reschedule handles skipping a template's backlog
// @Summary     Reschedule a template from now
// @Description Move the next execution to the first occurrence at or after now, dropping missed occurrences
// @Tags        recurring
// @Produce     json
// @Param       id path string true "Template ID"
// @Success     200 {object} models.RecurringTemplate "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid template ID"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     409 {object} ErrorResponse "Template changed concurrently"
// @Router      /recurring/{id}/reschedule [post]
func (h *RecurringHandler) Reschedule(c *gin.Context) {
	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tmpl, err := h.recurringService.RescheduleFromNow(templateID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionUpdate, "recurring_template", templateID,
		map[string]interface{}{"next_execution_date": tmpl.NextExecutionDate})

	c.JSON(http.StatusOK, gin.H{"template": tmpl})
}

// GetDue handles listing templates due now
// @Summary     List due templates
// @Description Active templates whose next execution is at or before now
// @Tags        recurring
// @Produce     json
// @Success     200 {object} map[string][]models.RecurringTemplate "Due templates"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/due [get]
func (h *RecurringHandler) GetDue(c *gin.Context) {
	templates, err := h.recurringService.DueForExecution(zeroTime)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// GetUpcoming handles listing templates coming up soon
// @Summary     List upcoming templates
// @Description Active templates due within the next few days, for bill reminders. Templates already due are not included.
// @Tags        recurring
// @Produce     json
// @Param       days query int false "Horizon in days (default from configuration)"
// @Success     200 {object} map[string][]models.RecurringTemplate "Upcoming templates"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/upcoming [get]
func (h *RecurringHandler) GetUpcoming(c *gin.Context) {
	days := h.reminderDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "days must be between 1 and 366"))
			return
		}
		days = n
	}

	templates, err := h.recurringService.DueForReminder(zeroTime, days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates, "days": days})
}

// ProcessDue handles running the due batch
// @Summary     Process due templates
// @Description Materialize one occurrence of every due template. Each template advances one period per call; failures are reported per template.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       request body ProcessDueRequest false "Optional evaluation time"
// @Success     200 {object} services.BatchReport "Batch report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/process [post]
func (h *RecurringHandler) ProcessDue(c *gin.Context) {
	var req ProcessDueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	now, err := parseOptionalTime("now", req.Now, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.recurringService.ProcessAllDue(c.Request.Context(), now)
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionProcessDue, "recurring_template", "",
		map[string]interface{}{"due": report.Due, "processed": report.Processed, "failed": len(report.Failures)})

	c.JSON(http.StatusOK, report)
}
