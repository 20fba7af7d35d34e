package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

// ledgerService answers reporting queries over the inventory transaction log.
type ledgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db}
}

// ListTransactions retrieves a filtered, paginated page of transactions, newest first.
func (s *ledgerService) ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.InventoryTransaction], error) {
	base := s.db.Model(&models.InventoryTransaction{}).Preload("Item")

	if filter.ItemID != nil {
		base = base.Where("item_id = ?", *filter.ItemID)
	}
	if filter.ActorID != nil {
		base = base.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.PatientID != nil {
		base = base.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Direction != nil {
		if !filter.Direction.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "direction must be In or Out")
		}
		base = base.Where("direction = ?", *filter.Direction)
	}
	base = applyDateRange(base, "transaction_date", filter.FromDate, filter.ToDate)

	result, err := pagination.Fetch[models.InventoryTransaction](base, page, "transaction_date DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetTransactionByID retrieves a single transaction with its item.
func (s *ledgerService) GetTransactionByID(transactionID string) (*models.InventoryTransaction, error) {
	var txn models.InventoryTransaction
	if err := s.db.Preload("Item").Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

// Reconcile compares an item's stored quantity with the sum of its log.
// Both reads happen in one transaction so a concurrent adjustment cannot
// land between them.
func (s *ledgerService) Reconcile(itemID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		item, err := lockItem(tx, itemID)
		if err != nil {
			return err
		}

		var totals []struct {
			Direction models.TransactionDirection
			Total     int64
		}
		if err := tx.Model(&models.InventoryTransaction{}).
			Select("direction, COALESCE(SUM(quantity), 0) AS total").
			Where("item_id = ?", itemID).
			Group("direction").
			Scan(&totals).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		rec = &Reconciliation{ItemID: item.ID, Quantity: item.Quantity}
		for _, t := range totals {
			switch t.Direction {
			case models.DirectionIn:
				rec.TotalIn = t.Total
			case models.DirectionOut:
				rec.TotalOut = t.Total
			}
		}
		rec.LogBalance = rec.TotalIn - rec.TotalOut
		rec.Consistent = rec.LogBalance == rec.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
