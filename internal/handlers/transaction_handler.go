package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/uuid"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
	location           *time.Location
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer, loc *time.Location) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService, location: loc}
}

// CreateTransactionRequest represents the request payload for creating a transaction
type CreateTransactionRequest struct {
	AccountID  string                 `json:"account_id" binding:"required,uuid"`
	CategoryID *string                `json:"category_id" binding:"omitempty,uuid"`
	Type       models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount     decimal.Decimal        `json:"amount" binding:"required,gt=0"`
	Note       string                 `json:"note" binding:"max=500"`
	Date       *string                `json:"date"`
}

// ParsedTransaction is one (amount, type, category) tuple produced by an
// external parser, such as a chat assistant reading a receipt.
type ParsedTransaction struct {
	Amount     decimal.Decimal        `json:"amount" binding:"required,gt=0"`
	Type       models.TransactionType `json:"type" binding:"required,transaction_type"`
	CategoryID *string                `json:"category_id" binding:"omitempty,uuid"`
	Note       string                 `json:"note" binding:"max=500"`
	Date       *string                `json:"date"`
}

// CreateParsedTransactionsRequest saves parser output against one account.
type CreateParsedTransactionsRequest struct {
	AccountID    string              `json:"account_id" binding:"required,uuid"`
	Transactions []ParsedTransaction `json:"transactions" binding:"required,min=1,max=100,dive"`
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Record an income or expense and apply it to the account balance
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseOptionalTime("date", req.Date, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(services.TransactionInput{
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Type:       req.Type,
		Amount:     req.Amount,
		Note:       req.Note,
		Date:       date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionCreate, "transaction", transaction.ID,
		map[string]interface{}{"type": req.Type, "amount": req.Amount.String(), "account_id": req.AccountID})

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// CreateParsedTransactions handles saving externally parsed transactions
// @Summary     Save parsed transactions
// @Description Save a batch of already-parsed transactions through the manual-entry path. Either every transaction is saved or none is.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       request body CreateParsedTransactionsRequest true "Parsed transactions"
// @Success     201 {object} map[string][]models.Transaction "Transactions created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/parsed [post]
func (h *TransactionHandler) CreateParsedTransactions(c *gin.Context) {
	var req CreateParsedTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.TransactionInput, 0, len(req.Transactions))
	for _, p := range req.Transactions {
		date, err := parseOptionalTime("date", p.Date, h.location)
		if err != nil {
			respondWithError(c, err)
			return
		}
		inputs = append(inputs, services.TransactionInput{
			AccountID:  req.AccountID,
			CategoryID: p.CategoryID,
			Type:       p.Type,
			Amount:     p.Amount,
			Note:       p.Note,
			Date:       date,
		})
	}

	created, err := h.transactionService.CreateTransactions(inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	for _, t := range created {
		audit(c, h.auditService, services.AuditActionCreate, "transaction", t.ID,
			map[string]interface{}{"type": t.Type, "amount": t.Amount.String(), "source": "parser"})
	}

	c.JSON(http.StatusCreated, gin.H{"transactions": created})
}

// GetTransactions handles the retrieval of transactions
// @Summary     List transactions
// @Description Get a paginated list of transactions, newest first, with optional filters
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       page                  query int    false "Page number (default 1)"
// @Param       page_size             query int    false "Items per page (default 20, max 100)"
// @Param       account_id            query string false "Filter by account ID"
// @Param       from_date             query string false "Filter by start date (RFC3339 e.g. 2024-01-01T00:00:00Z, or YYYY-MM-DD)"
// @Param       to_date               query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type                  query string false "Filter by transaction type (income, expense)"
// @Param       category_id           query string false "Filter by category ID"
// @Param       recurring_template_id query string false "Filter by originating recurring template"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	h.listTransactions(c, nil)
}

// GetAccountTransactions handles the retrieval of transactions for an account
// @Summary     Get account transactions
// @Description Get a paginated list of transactions for a specific account with optional filters
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       id        path  string true  "Account ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       from_date query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type      query string false "Filter by transaction type (income, expense)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/transactions [get]
func (h *TransactionHandler) GetAccountTransactions(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.listTransactions(c, &accountID)
}

func (h *TransactionHandler) listTransactions(c *gin.Context, accountID *string) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c, h.location)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if accountID != nil {
		filter.AccountID = accountID
	}

	result, err := h.transactionService.GetTransactions(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context, loc *time.Location) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v, loc)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v, loc)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if !txType.IsValid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income or expense")
		}
		filter.Type = &txType
	}

	for param, dst := range map[string]**string{
		"account_id":            &filter.AccountID,
		"category_id":           &filter.CategoryID,
		"recurring_template_id": &filter.RecurringTemplateID,
	} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+param)
		}
		*dst = &id
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles the deletion of a transaction
// @Summary     Delete transaction
// @Description Delete a transaction and reverse its effect on the account balance
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	audit(c, h.auditService, services.AuditActionDelete, "transaction", transactionID, nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
