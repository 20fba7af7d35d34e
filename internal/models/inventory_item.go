package models

import "time"

// DateLayout is the wire and snapshot format for calendar dates.
const DateLayout = "2006-01-02"

// InventoryItem is a supply tracked by the clinic. Quantity is changed only by
// stock adjustments; Version is bumped on every adjustment.
type InventoryItem struct {
	Base
	CategoryID string     `gorm:"type:uuid;not null;index" json:"category_id"`
	Name       string     `gorm:"not null" json:"name"`
	Unit       string     `gorm:"not null" json:"unit"`
	Quantity   int64      `gorm:"type:bigint;not null;default:0;check:quantity >= 0" json:"quantity"`
	ExpiryDate *time.Time `gorm:"type:date" json:"expiry_date,omitempty"`
	Version    int64      `gorm:"type:bigint;not null;default:1" json:"version"`

	// Relationships
	Category     *ItemCategory          `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Transactions []InventoryTransaction `gorm:"foreignKey:ItemID" json:"transactions,omitempty"`
}

// Snapshot returns the audited fields of the item.
func (i *InventoryItem) Snapshot() map[string]interface{} {
	var expiry interface{}
	if i.ExpiryDate != nil {
		expiry = i.ExpiryDate.Format(DateLayout)
	}
	return map[string]interface{}{
		"category_id": i.CategoryID,
		"name":        i.Name,
		"unit":        i.Unit,
		"quantity":    i.Quantity,
		"expiry_date": expiry,
	}
}
