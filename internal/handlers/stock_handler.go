package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/models"
	"nutriwatch/internal/services"
)

// StockHandler handles stock adjustments.
type StockHandler struct {
	stockService services.StockServicer
	publisher    events.Publisher
	metrics      *metrics.Metrics
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(stockService services.StockServicer, publisher events.Publisher, m *metrics.Metrics) *StockHandler {
	return &StockHandler{stockService: stockService, publisher: publisher, metrics: m}
}

// StockInRequest represents the request payload for adding stock
type StockInRequest struct {
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	Remarks  string `json:"remarks" binding:"max=500"`
}

// StockOutRequest represents the request payload for removing stock
type StockOutRequest struct {
	Quantity  int64   `json:"quantity" binding:"required,gt=0"`
	PatientID *string `json:"patient_id" binding:"omitempty,max=64"`
	Remarks   string  `json:"remarks" binding:"max=500"`
}

// StockAdjustmentResponse is returned by both adjustment endpoints.
type StockAdjustmentResponse struct {
	Item        *models.InventoryItem        `json:"item"`
	Transaction *models.InventoryTransaction `json:"transaction"`
}

// StockIn handles adding stock to an item
// @Summary     Stock in
// @Description Adds units to an item and records an In transaction and an audit entry atomically.
// @Tags        stock
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Item ID"
// @Param       request body StockInRequest true "Adjustment"
// @Success     200 {object} StockAdjustmentResponse "Adjusted item and transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /inventory/items/{id}/stock-in [post]
func (h *StockHandler) StockIn(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req StockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, txn, err := h.stockService.StockIn(itemID, req.Quantity, req.Remarks, actorID)
	h.respond(c, models.DirectionIn, actorID, item, txn, err)
}

// StockOut handles removing stock from an item
// @Summary     Stock out
// @Description Removes units from an item, optionally for a patient. Fails without writing anything when stock is insufficient.
// @Tags        stock
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Item ID"
// @Param       request body StockOutRequest true "Adjustment"
// @Success     200 {object} StockAdjustmentResponse "Adjusted item and transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient stock"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /inventory/items/{id}/stock-out [post]
func (h *StockHandler) StockOut(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req StockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, txn, err := h.stockService.StockOut(itemID, req.Quantity, req.PatientID, req.Remarks, actorID)
	h.respond(c, models.DirectionOut, actorID, item, txn, err)
}

func (h *StockHandler) respond(c *gin.Context, direction models.TransactionDirection, actorID string, item *models.InventoryItem, txn *models.InventoryTransaction, err error) {
	h.metrics.ObserveStockAdjustment(string(direction), err)
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeStockAdjusted, item.ID, events.StockAdjusted{
		ItemID:        item.ID,
		TransactionID: txn.ID,
		Direction:     string(direction),
		Quantity:      txn.Quantity,
		NewQuantity:   item.Quantity,
		ActorID:       actorID,
		PatientID:     txn.PatientID,
	}))

	c.JSON(http.StatusOK, StockAdjustmentResponse{Item: item, Transaction: txn})
}
