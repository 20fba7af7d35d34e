package models

import "time"

// FoodRequestStatus is the moderation state of a food request.
type FoodRequestStatus string

const (
	FoodRequestPending  FoodRequestStatus = "pending"
	FoodRequestApproved FoodRequestStatus = "approved"
	FoodRequestRejected FoodRequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s FoodRequestStatus) Terminal() bool {
	return s == FoodRequestApproved || s == FoodRequestRejected
}

// FoodRequest is a nutritionist's proposal for a new food catalog entry.
type FoodRequest struct {
	Base
	RequestedBy        string            `gorm:"type:uuid;not null;index" json:"requested_by"`
	NameAndDescription string            `gorm:"type:text;not null" json:"food_name_and_description"`
	AlternateNames     string            `gorm:"type:text" json:"alternate_common_names"`
	EnergyKcal         *float64          `json:"energy_kcal,omitempty"`
	NutritionTags      string            `gorm:"type:text" json:"nutrition_tags"`
	Status             FoodRequestStatus `gorm:"not null;default:'pending';index" json:"status"`
	AdminNotes         string            `gorm:"type:text" json:"admin_notes"`
	ReviewedBy         *string           `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `json:"reviewed_at,omitempty"`
}

// Snapshot returns the audited fields of the request.
func (r *FoodRequest) Snapshot() map[string]interface{} {
	var kcal, reviewedBy, reviewedAt interface{}
	if r.EnergyKcal != nil {
		kcal = *r.EnergyKcal
	}
	if r.ReviewedBy != nil {
		reviewedBy = *r.ReviewedBy
	}
	if r.ReviewedAt != nil {
		reviewedAt = r.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return map[string]interface{}{
		"requested_by":              r.RequestedBy,
		"food_name_and_description": r.NameAndDescription,
		"alternate_common_names":    r.AlternateNames,
		"energy_kcal":               kcal,
		"nutrition_tags":            r.NutritionTags,
		"status":                    string(r.Status),
		"admin_notes":               r.AdminNotes,
		"reviewed_by":               reviewedBy,
		"reviewed_at":               reviewedAt,
	}
}

// ToFood copies the candidate fields into a new catalog entry.
func (r *FoodRequest) ToFood() *Food {
	id := r.ID
	return &Food{
		NameAndDescription: r.NameAndDescription,
		AlternateNames:     r.AlternateNames,
		EnergyKcal:         r.EnergyKcal,
		NutritionTags:      r.NutritionTags,
		SourceRequestID:    &id,
	}
}
