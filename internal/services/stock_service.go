package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/models"
)

// MaxRemarksLength bounds the free-text remarks on a stock adjustment.
const MaxRemarksLength = 500

// errVersionConflict signals that another writer bumped the item version
// between our read and our write.
var errVersionConflict = errors.New("inventory item version changed")

// stockService applies stock adjustments.
type stockService struct {
	db         *gorm.DB
	audit      AuditServicer
	maxRetries int
	now        func() time.Time
}

// NewStockService creates a new StockServicer. maxRetries bounds how many
// times a lost version race is retried before the adjustment fails.
func NewStockService(db *gorm.DB, audit AuditServicer, maxRetries int) StockServicer {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &stockService{db: db, audit: audit, maxRetries: maxRetries, now: time.Now}
}

// adjustment is one validated stock movement.
type adjustment struct {
	itemID    string
	direction models.TransactionDirection
	quantity  int64
	patientID *string
	remarks   string
	actorID   string
}

// StockIn adds quantity units to an item.
func (s *stockService) StockIn(itemID string, quantity int64, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error) {
	adj, err := newAdjustment(itemID, models.DirectionIn, quantity, nil, remarks, actorID)
	if err != nil {
		return nil, nil, err
	}
	return s.apply(adj)
}

// StockOut removes quantity units from an item, optionally for a patient.
// It fails with ErrInsufficientStock, writing nothing, when quantity exceeds
// the current stock.
func (s *stockService) StockOut(itemID string, quantity int64, patientID *string, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error) {
	if patientID != nil && strings.TrimSpace(*patientID) == "" {
		patientID = nil
	}
	adj, err := newAdjustment(itemID, models.DirectionOut, quantity, patientID, remarks, actorID)
	if err != nil {
		return nil, nil, err
	}
	return s.apply(adj)
}

func newAdjustment(itemID string, direction models.TransactionDirection, quantity int64, patientID *string, remarks, actorID string) (*adjustment, error) {
	if itemID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item id is required")
	}
	if quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}
	remarks = strings.TrimSpace(remarks)
	if utf8.RuneCountInString(remarks) > MaxRemarksLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("remarks cannot exceed %d characters", MaxRemarksLength))
	}
	if remarks == "" {
		remarks = defaultRemarks(direction, quantity)
	}
	return &adjustment{
		itemID:    itemID,
		direction: direction,
		quantity:  quantity,
		patientID: patientID,
		remarks:   remarks,
		actorID:   actorID,
	}, nil
}

func defaultRemarks(direction models.TransactionDirection, quantity int64) string {
	if direction == models.DirectionOut {
		return fmt.Sprintf("Stock out - Removed %d unit(s)", quantity)
	}
	return fmt.Sprintf("Stock in - Added %d unit(s)", quantity)
}

// apply runs the adjustment, retrying when the optimistic version check
// loses a race. Typed errors pass through; anything else is reported as
// ErrAdjustmentFailed.
func (s *stockService) apply(adj *adjustment) (*models.InventoryItem, *models.InventoryTransaction, error) {
	log := logger.Get()

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		item, txn, err := s.applyOnce(adj)
		if err == nil {
			return item, txn, nil
		}
		if !errors.Is(err, errVersionConflict) {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Code != apperrors.ErrInternalServer.Code {
				return nil, nil, appErr
			}
			log.Errorw("stock adjustment failed",
				"error", err,
				"item_id", adj.itemID,
				"direction", adj.direction,
				"quantity", adj.quantity,
			)
			return nil, nil, apperrors.Wrap(apperrors.ErrAdjustmentFailed, err)
		}
		lastErr = err
		log.Warnw("stock adjustment lost version race, retrying",
			"item_id", adj.itemID,
			"attempt", attempt,
		)
	}
	return nil, nil, apperrors.Wrap(apperrors.ErrAdjustmentFailed, lastErr)
}

// applyOnce writes the item, the transaction and the audit entry in one
// database transaction.
func (s *stockService) applyOnce(adj *adjustment) (*models.InventoryItem, *models.InventoryTransaction, error) {
	var (
		item *models.InventoryItem
		txn  *models.InventoryTransaction
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = lockItem(tx, adj.itemID)
		if err != nil {
			return err
		}

		oldQuantity := item.Quantity
		if adj.direction == models.DirectionIn && adj.quantity > math.MaxInt64-oldQuantity {
			return apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("stock in of %d would exceed the maximum quantity for this item", adj.quantity))
		}
		newQuantity := oldQuantity + adj.quantity
		if adj.direction == models.DirectionOut {
			if adj.quantity > oldQuantity {
				return apperrors.WithMessage(apperrors.ErrInsufficientStock,
					fmt.Sprintf("insufficient stock: %d %s available, %d requested", oldQuantity, item.Unit, adj.quantity))
			}
			newQuantity = oldQuantity - adj.quantity
		}

		result := tx.Model(&models.InventoryItem{}).
			Where("id = ? AND version = ?", item.ID, item.Version).
			Updates(map[string]interface{}{
				"quantity": newQuantity,
				"version":  item.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}
		item.Quantity = newQuantity
		item.Version++

		txn = &models.InventoryTransaction{
			ItemID:          item.ID,
			ActorID:         optionalString(adj.actorID),
			PatientID:       adj.patientID,
			Direction:       adj.direction,
			Quantity:        adj.quantity,
			TransactionDate: s.now(),
			Remarks:         adj.remarks,
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		action := models.AuditActionStockIn
		verb := "Added"
		if adj.direction == models.DirectionOut {
			action = models.AuditActionStockOut
			verb = "Removed"
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:      adj.actorID,
			Action:       action,
			ResourceType: resourceInventoryItems,
			ResourceID:   item.ID,
			Changes: models.ChangeSet{
				"quantity": {Old: oldQuantity, New: newQuantity},
			},
			Description: fmt.Sprintf("%s %d %s of %s (%d -> %d)",
				verb, adj.quantity, item.Unit, item.Name, oldQuantity, newQuantity),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return item, txn, nil
}
