package models

// Food is an entry in the food catalog used by meal planning.
// SourceRequestID links entries created by approving a food request; the
// unique index keeps a request from materializing twice.
type Food struct {
	Base
	NameAndDescription string   `gorm:"type:text;not null" json:"food_name_and_description"`
	AlternateNames     string   `gorm:"type:text" json:"alternate_common_names"`
	EnergyKcal         *float64 `json:"energy_kcal,omitempty"`
	NutritionTags      string   `gorm:"type:text" json:"nutrition_tags"`
	SourceRequestID    *string  `gorm:"type:uuid;uniqueIndex" json:"source_request_id,omitempty"`
}

// Snapshot returns the audited fields of the food.
func (f *Food) Snapshot() map[string]interface{} {
	var kcal interface{}
	if f.EnergyKcal != nil {
		kcal = *f.EnergyKcal
	}
	return map[string]interface{}{
		"food_name_and_description": f.NameAndDescription,
		"alternate_common_names":    f.AlternateNames,
		"energy_kcal":               kcal,
		"nutrition_tags":            f.NutritionTags,
	}
}
