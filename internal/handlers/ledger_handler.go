package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

// LedgerHandler serves the inventory transaction log.
type LedgerHandler struct {
	ledgerService services.LedgerServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LedgerServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// transactionQuery holds the validated filter parameters of ListTransactions.
type transactionQuery struct {
	ItemID    string `form:"item_id" binding:"omitempty,uuid"`
	ActorID   string `form:"actor_id" binding:"omitempty,uuid"`
	PatientID string `form:"patient_id"`
	Direction string `form:"direction" binding:"omitempty,stock_direction"`
}

// ListTransactions handles listing inventory transactions
// @Summary     List inventory transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Param       item_id    query string false "Filter by item"
// @Param       actor_id   query string false "Filter by actor"
// @Param       patient_id query string false "Filter by patient"
// @Param       direction  query string false "In or Out"
// @Param       from_date  query string false "Start (RFC3339 or YYYY-MM-DD)"
// @Param       to_date    query string false "End (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.InventoryTransaction] "Paginated transactions, newest first"
// @Router      /inventory/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var q transactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.TransactionFilter{
		ItemID:    optionalQuery(c, "item_id"),
		ActorID:   optionalQuery(c, "actor_id"),
		PatientID: optionalQuery(c, "patient_id"),
		FromDate:  from,
		ToDate:    to,
	}
	if q.Direction != "" {
		d := models.TransactionDirection(q.Direction)
		filter.Direction = &d
	}

	result, err := h.ledgerService.ListTransactions(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransactionByID handles the retrieval of one transaction
// @Summary     Get inventory transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.InventoryTransaction "Transaction"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /inventory/transactions/{id} [get]
func (h *LedgerHandler) GetTransactionByID(c *gin.Context) {
	txnID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	txn, err := h.ledgerService.GetTransactionByID(txnID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// Reconcile handles comparing an item's stock with its transaction log
// @Summary     Reconcile item stock
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} services.Reconciliation "Stored quantity against log balance"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /inventory/items/{id}/reconcile [get]
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	rec, err := h.ledgerService.Reconcile(itemID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}
