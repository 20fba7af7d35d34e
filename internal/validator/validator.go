// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"nutriwatch/internal/models"
)

// MaxListEntryLength bounds each entry of a comma-separated list field.
const MaxListEntryLength = 100

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("stock_direction", validateStockDirection)
	_ = v.RegisterValidation("food_request_status", validateFoodRequestStatus)
	_ = v.RegisterValidation("audit_action", validateAuditAction)
	_ = v.RegisterValidation("comma_list", validateCommaList)
	_ = v.RegisterValidation("date_only", validateDateOnly)
}

func validateStockDirection(fl validator.FieldLevel) bool {
	return models.TransactionDirection(fl.Field().String()).Valid()
}

func validateFoodRequestStatus(fl validator.FieldLevel) bool {
	switch models.FoodRequestStatus(fl.Field().String()) {
	case models.FoodRequestPending, models.FoodRequestApproved, models.FoodRequestRejected:
		return true
	}
	return false
}

func validateAuditAction(fl validator.FieldLevel) bool {
	switch models.AuditAction(fl.Field().String()) {
	case models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete,
		models.AuditActionStockIn, models.AuditActionStockOut,
		models.AuditActionApprove, models.AuditActionReject, models.AuditActionWithdraw:
		return true
	}
	return false
}

// validateCommaList accepts a comma-separated list whose entries are each at
// most MaxListEntryLength characters. Blank entries are allowed and dropped
// later.
func validateCommaList(fl validator.FieldLevel) bool {
	for _, entry := range strings.Split(fl.Field().String(), ",") {
		if utf8.RuneCountInString(strings.TrimSpace(entry)) > MaxListEntryLength {
			return false
		}
	}
	return true
}

func validateDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}
