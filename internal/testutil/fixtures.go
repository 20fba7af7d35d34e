package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"nutriwatch/internal/models"
	"nutriwatch/internal/uuid"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewActorID returns a fresh user id to act as an admin or nutritionist.
func NewActorID() string {
	return uuid.New()
}

// CreateTestCategory creates an item category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB) *models.ItemCategory {
	t.Helper()

	category := &models.ItemCategory{
		Name:        fmt.Sprintf("Test Category %d", nextID()),
		Description: "fixture",
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestItem creates an inventory item with zero stock.
func CreateTestItem(t *testing.T, db *gorm.DB, categoryID string) *models.InventoryItem {
	t.Helper()
	return CreateTestItemWithQuantity(t, db, categoryID, 0)
}

// CreateTestItemWithQuantity creates an inventory item holding quantity
// units. A positive quantity is backed by an "In" transaction so the item
// and its log agree.
func CreateTestItemWithQuantity(t *testing.T, db *gorm.DB, categoryID string, quantity int64) *models.InventoryItem {
	t.Helper()

	expiry := time.Now().AddDate(1, 0, 0).Truncate(24 * time.Hour)
	item := &models.InventoryItem{
		CategoryID: categoryID,
		Name:       fmt.Sprintf("Test Item %d", nextID()),
		Unit:       "box",
		Quantity:   quantity,
		ExpiryDate: &expiry,
		Version:    1,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}

	if quantity > 0 {
		txn := &models.InventoryTransaction{
			ItemID:          item.ID,
			Direction:       models.DirectionIn,
			Quantity:        quantity,
			TransactionDate: time.Now(),
			Remarks:         "Initial stock",
		}
		if err := db.Create(txn).Error; err != nil {
			t.Fatalf("failed to create initial stock transaction: %v", err)
		}
	}
	return item
}

// CreateTestFoodRequest creates a pending food request.
func CreateTestFoodRequest(t *testing.T, db *gorm.DB, requesterID, name string) *models.FoodRequest {
	t.Helper()

	kcal := 120.0
	req := &models.FoodRequest{
		RequestedBy:        requesterID,
		NameAndDescription: name,
		EnergyKcal:         &kcal,
		NutritionTags:      "test",
		Status:             models.FoodRequestPending,
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("failed to create test food request: %v", err)
	}
	return req
}

// CreateTestFood creates a food catalog entry.
func CreateTestFood(t *testing.T, db *gorm.DB, name, alternateNames string) *models.Food {
	t.Helper()

	food := &models.Food{
		NameAndDescription: name,
		AlternateNames:     alternateNames,
		NutritionTags:      "staple",
	}
	if err := db.Create(food).Error; err != nil {
		t.Fatalf("failed to create test food: %v", err)
	}
	return food
}
