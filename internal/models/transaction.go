package models

import "time"

// TransactionDirection tells whether stock entered or left the clinic.
type TransactionDirection string

const (
	DirectionIn  TransactionDirection = "In"
	DirectionOut TransactionDirection = "Out"
)

// Valid reports whether d is a known direction.
func (d TransactionDirection) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// InventoryTransaction is one immutable stock movement. ActorID is nil for
// system actions; PatientID is only set on Out movements.
type InventoryTransaction struct {
	LogBase
	ItemID          string               `gorm:"type:uuid;not null;index" json:"item_id"`
	ActorID         *string              `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	PatientID       *string              `gorm:"index" json:"patient_id,omitempty"`
	Direction       TransactionDirection `gorm:"not null" json:"direction"`
	Quantity        int64                `gorm:"type:bigint;not null" json:"quantity"`
	TransactionDate time.Time            `gorm:"not null;index" json:"transaction_date"`
	Remarks         string               `json:"remarks"`

	// Relationships
	Item *InventoryItem `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// Signed returns the quantity with the sign of its direction.
func (t *InventoryTransaction) Signed() int64 {
	if t.Direction == DirectionOut {
		return -t.Quantity
	}
	return t.Quantity
}
