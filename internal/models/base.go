package models

import (
	"errors"
	"time"

	"nutriwatch/internal/uuid"

	"gorm.io/gorm"
)

// ErrImmutableRecord is returned by hooks on append-only models when
// something tries to update or delete a row.
var ErrImmutableRecord = errors.New("record is append-only")

// Base contains common columns for all mutable tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// LogBase contains the columns shared by append-only tables. There is no
// UpdatedAt or DeletedAt: rows are written once.
type LogBase struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *LogBase) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects every update.
func (b *LogBase) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// BeforeDelete rejects every delete.
func (b *LogBase) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// All lists every model in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&ItemCategory{},
		&InventoryItem{},
		&InventoryTransaction{},
		&AuditLog{},
		&Food{},
		&FoodRequest{},
	}
}
