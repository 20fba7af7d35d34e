package models

// ItemCategory groups inventory items (e.g. "Therapeutic food", "Supplements").
type ItemCategory struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Relationships
	Items []InventoryItem `gorm:"foreignKey:CategoryID" json:"items,omitempty"`
}

// Snapshot returns the audited fields of the category.
func (c *ItemCategory) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
	}
}
