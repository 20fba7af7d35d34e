package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

// ReportDefaults holds the fallback parameters of the inventory reports.
type ReportDefaults struct {
	LowStockThreshold int64
	ExpiringWithin    time.Duration
}

// InventoryHandler handles inventory item requests and reports.
type InventoryHandler struct {
	inventoryService services.InventoryServicer
	publisher        events.Publisher
	metrics          *metrics.Metrics
	defaults         ReportDefaults
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventoryService services.InventoryServicer, publisher events.Publisher, m *metrics.Metrics, defaults ReportDefaults) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		publisher:        publisher,
		metrics:          m,
		defaults:         defaults,
	}
}

// CreateItemRequest represents the request payload for creating an inventory item
type CreateItemRequest struct {
	CategoryID string  `json:"category_id" binding:"required,uuid"`
	Name       string  `json:"name" binding:"required,min=1,max=200"`
	Unit       string  `json:"unit" binding:"required,min=1,max=50"`
	Quantity   int64   `json:"quantity" binding:"gte=0"`
	ExpiryDate *string `json:"expiry_date" binding:"omitempty,date_only"`
}

// UpdateItemRequest represents the request payload for updating an inventory
// item. Quantity is accepted only when it equals the current stock.
type UpdateItemRequest struct {
	CategoryID  *string `json:"category_id" binding:"omitempty,uuid"`
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Unit        *string `json:"unit" binding:"omitempty,min=1,max=50"`
	Quantity    *int64  `json:"quantity" binding:"omitempty,gte=0"`
	ExpiryDate  *string `json:"expiry_date" binding:"omitempty,date_only"`
	ClearExpiry bool    `json:"clear_expiry"`
}

// CreateItem handles the creation of a new inventory item
// @Summary     Create an inventory item
// @Description A positive quantity is recorded as an "Initial stock" In transaction.
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateItemRequest true "Item details"
// @Success     201 {object} models.InventoryItem "Item created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /inventory/items [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	item, err := h.inventoryService.CreateItem(actorID, services.ItemInput{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Unit:       req.Unit,
		Quantity:   req.Quantity,
		ExpiryDate: expiry,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeItemCreated, item.ID,
		events.ResourceRef{ID: item.ID, ActorID: actorID, Name: item.Name}))

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetItemByID handles the retrieval of a specific item
// @Summary     Get inventory item by ID
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} models.InventoryItem "Item details"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /inventory/items/{id} [get]
func (h *InventoryHandler) GetItemByID(c *gin.Context) {
	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	item, err := h.inventoryService.GetItemByID(itemID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// UpdateItem handles updating item attributes
// @Summary     Update inventory item
// @Description Changes category, name, unit or expiry. Stock moves through stock-in and stock-out.
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Item ID"
// @Param       request body UpdateItemRequest true "Fields to change"
// @Success     200 {object} models.InventoryItem "Updated item"
// @Failure     409 {object} ErrorResponse "Quantity change requested"
// @Router      /inventory/items/{id} [put]
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
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

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	item, err := h.inventoryService.UpdateItem(actorID, itemID, services.ItemUpdate{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		ExpiryDate:  expiry,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// DeleteItem handles deleting an item that has no transactions
// @Summary     Delete inventory item
// @Tags        inventory
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     204 "Deleted"
// @Failure     409 {object} ErrorResponse "Item has transactions"
// @Router      /inventory/items/{id} [delete]
func (h *InventoryHandler) DeleteItem(c *gin.Context) {
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

	if err := h.inventoryService.DeleteItem(actorID, itemID); err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeItemDeleted, itemID,
		events.ResourceRef{ID: itemID, ActorID: actorID}))

	c.Status(http.StatusNoContent)
}

// ListItems handles listing inventory items
// @Summary     List inventory items
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       category_id query string false "Filter by category"
// @Param       search      query string false "Case-insensitive name search"
// @Success     200 {object} pagination.PageResponse[models.InventoryItem] "Paginated items"
// @Router      /inventory/items [get]
func (h *InventoryHandler) ListItems(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.inventoryService.ListItems(page, services.ItemFilter{
		CategoryID: optionalQuery(c, "category_id"),
		Search:     c.Query("search"),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// LowStock handles the low-stock report
// @Summary     Low-stock report
// @Description Items whose quantity is below the threshold, lowest first.
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       threshold query int false "Quantity threshold (default from LOW_STOCK_THRESHOLD)"
// @Success     200 {object} pagination.PageResponse[models.InventoryItem] "Paginated items"
// @Router      /inventory/reports/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	threshold := h.defaults.LowStockThreshold
	if v := c.Query("threshold"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid threshold"))
			return
		}
		threshold = n
	}

	result, err := h.inventoryService.LowStock(threshold, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Expiring handles the expiry report
// @Summary     Expiring-soon report
// @Description Items expiring within the given number of days, soonest first.
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       within_days query int false "Days ahead (default from EXPIRING_WITHIN_DAYS)"
// @Success     200 {object} pagination.PageResponse[models.InventoryItem] "Paginated items"
// @Router      /inventory/reports/expiring [get]
func (h *InventoryHandler) Expiring(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	within := h.defaults.ExpiringWithin
	if v := c.Query("within_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid within_days"))
			return
		}
		within = time.Duration(days) * 24 * time.Hour
	}

	result, err := h.inventoryService.Expiring(within, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseExpiry converts an optional YYYY-MM-DD string to a UTC date.
func parseExpiry(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, *v)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid expiry_date, use YYYY-MM-DD")
	}
	return &t, nil
}
