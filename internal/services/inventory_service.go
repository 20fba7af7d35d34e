package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

const (
	resourceInventoryItems = "inventory_items"
	initialStockRemarks    = "Initial stock"
)

// inventoryService handles the inventory item store.
type inventoryService struct {
	db    *gorm.DB
	audit AuditServicer
	now   func() time.Time
}

// NewInventoryService creates a new InventoryServicer.
func NewInventoryService(db *gorm.DB, audit AuditServicer) InventoryServicer {
	return &inventoryService{db: db, audit: audit, now: time.Now}
}

// CreateItem creates an inventory item. A positive opening quantity is
// recorded as an "In" transaction in the same database transaction so the
// item and its log agree from the start.
func (s *inventoryService) CreateItem(actorID string, input ItemInput) (*models.InventoryItem, error) {
	name := strings.TrimSpace(input.Name)
	unit := strings.TrimSpace(input.Unit)

	// Validate input
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name is required")
	}
	if unit == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unit is required")
	}
	if input.Quantity < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity cannot be negative")
	}
	if input.CategoryID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	expiry, err := normalizeExpiry(input.ExpiryDate, s.now())
	if err != nil {
		return nil, err
	}

	item := &models.InventoryItem{
		CategoryID: input.CategoryID,
		Name:       name,
		Unit:       unit,
		Quantity:   input.Quantity,
		ExpiryDate: expiry,
		Version:    1,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findCategory(tx, input.CategoryID); err != nil {
			return err
		}

		if err := tx.Create(item).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if item.Quantity > 0 {
			opening := &models.InventoryTransaction{
				ItemID:          item.ID,
				ActorID:         optionalString(actorID),
				Direction:       models.DirectionIn,
				Quantity:        item.Quantity,
				TransactionDate: s.now(),
				Remarks:         initialStockRemarks,
			}
			if err := tx.Create(opening).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionCreate,
			ResourceType: resourceInventoryItems,
			ResourceID:   item.ID,
			Changes:      models.Diff(nil, item.Snapshot()),
			Description:  fmt.Sprintf("Created inventory item %s (%d %s)", item.Name, item.Quantity, item.Unit),
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemByID retrieves an inventory item with its category.
func (s *inventoryService) GetItemByID(itemID string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.db.Preload("Category").Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// UpdateItem changes descriptive fields of an item. The quantity is owned by
// stock adjustments; a differing quantity is rejected with a conflict.
func (s *inventoryService) UpdateItem(actorID, itemID string, update ItemUpdate) (*models.InventoryItem, error) {
	// Validate input
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name cannot be empty")
	}
	if update.Unit != nil && strings.TrimSpace(*update.Unit) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unit cannot be empty")
	}
	if update.Quantity != nil && *update.Quantity < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity cannot be negative")
	}
	var expiry *time.Time
	if update.ExpiryDate != nil && !update.ClearExpiry {
		var err error
		if expiry, err = normalizeExpiry(update.ExpiryDate, s.now()); err != nil {
			return nil, err
		}
	}

	var item *models.InventoryItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = lockItem(tx, itemID)
		if err != nil {
			return err
		}
		before := item.Snapshot()

		if update.Quantity != nil && *update.Quantity != item.Quantity {
			return apperrors.WithMessage(apperrors.ErrConflict, "quantity can only be changed through stock in or stock out")
		}

		updates := make(map[string]interface{})
		if update.CategoryID != nil && *update.CategoryID != item.CategoryID {
			if _, err := findCategory(tx, *update.CategoryID); err != nil {
				return err
			}
			item.CategoryID = *update.CategoryID
			updates["category_id"] = item.CategoryID
		}
		if update.Name != nil {
			item.Name = strings.TrimSpace(*update.Name)
			updates["name"] = item.Name
		}
		if update.Unit != nil {
			item.Unit = strings.TrimSpace(*update.Unit)
			updates["unit"] = item.Unit
		}
		if update.ClearExpiry {
			item.ExpiryDate = nil
			updates["expiry_date"] = nil
		} else if expiry != nil {
			item.ExpiryDate = expiry
			updates["expiry_date"] = *expiry
		}

		changes := models.Diff(before, item.Snapshot())
		if changes == nil {
			return nil
		}

		if err := tx.Model(&models.InventoryItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionUpdate,
			ResourceType: resourceInventoryItems,
			ResourceID:   item.ID,
			Changes:      changes,
			Description:  "Updated inventory item " + item.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem hard-deletes an item that has no transactions. Items with
// history are kept so the log stays resolvable.
func (s *inventoryService) DeleteItem(actorID, itemID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		item, err := lockItem(tx, itemID)
		if err != nil {
			return err
		}

		var txnCount int64
		if err := tx.Model(&models.InventoryTransaction{}).Where("item_id = ?", itemID).Count(&txnCount).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if txnCount > 0 {
			return apperrors.WithMessage(apperrors.ErrConflict,
				fmt.Sprintf("cannot delete %s: it has %d transaction(s)", item.Name, txnCount))
		}

		if err := tx.Unscoped().Delete(&models.InventoryItem{}, "id = ?", item.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionDelete,
			ResourceType: resourceInventoryItems,
			ResourceID:   item.ID,
			Changes:      models.Diff(item.Snapshot(), nil),
			Description:  "Deleted inventory item " + item.Name,
		})
	})
}

// ListItems retrieves a filtered, paginated list of items ordered by name.
func (s *inventoryService) ListItems(page pagination.PageRequest, filter ItemFilter) (*pagination.PageResponse[models.InventoryItem], error) {
	base := s.db.Model(&models.InventoryItem{}).Preload("Category")
	if filter.CategoryID != nil {
		base = base.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		base = base.Where("LOWER(name) LIKE ? ESCAPE '\\'", containsPattern(filter.Search))
	}

	result, err := pagination.Fetch[models.InventoryItem](base, page, "name ASC, id ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// LowStock lists items whose quantity is below threshold, lowest first.
func (s *inventoryService) LowStock(threshold int64, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
	if threshold <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "threshold must be positive")
	}

	base := s.db.Model(&models.InventoryItem{}).Preload("Category").Where("quantity < ?", threshold)
	result, err := pagination.Fetch[models.InventoryItem](base, page, "quantity ASC, name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// Expiring lists items expiring on or before today+within, soonest first.
// Already expired items are included.
func (s *inventoryService) Expiring(within time.Duration, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
	if within < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "window cannot be negative")
	}

	cutoff := dateOnly(s.now().Add(within))
	base := s.db.Model(&models.InventoryItem{}).Preload("Category").
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", cutoff)
	result, err := pagination.Fetch[models.InventoryItem](base, page, "expiry_date ASC, name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// lockItem loads an item for update. On sqlite the locking clause is dropped
// and the single connection serializes writers instead.
func lockItem(tx *gorm.DB, itemID string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// normalizeExpiry truncates expiry to a UTC calendar date and checks that it
// falls strictly after today.
func normalizeExpiry(expiry *time.Time, now time.Time) (*time.Time, error) {
	if expiry == nil {
		return nil, nil
	}
	d := dateOnly(*expiry)
	if !d.After(dateOnly(now)) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "expiry date must be after today")
	}
	return &d, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
