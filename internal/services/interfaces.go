package services

import (
	"time"

	"gorm.io/gorm"

	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

// ItemCategoryServicer defines the contract for inventory category management.
type ItemCategoryServicer interface {
	CreateCategory(actorID, name, description string) (*models.ItemCategory, error)
	GetCategories(page pagination.PageRequest) (*pagination.PageResponse[models.ItemCategory], error)
	GetCategoryByID(categoryID string) (*models.ItemCategory, error)
	UpdateCategory(actorID, categoryID string, name, description *string) (*models.ItemCategory, error)
	DeleteCategory(actorID, categoryID string) error
}

// ItemInput holds the fields for creating an inventory item.
type ItemInput struct {
	CategoryID string
	Name       string
	Unit       string
	Quantity   int64
	ExpiryDate *time.Time
}

// ItemUpdate holds optional changes to an inventory item. Quantity is only
// accepted when it equals the stored value; stock moves through StockServicer.
type ItemUpdate struct {
	CategoryID  *string
	Name        *string
	Unit        *string
	Quantity    *int64
	ExpiryDate  *time.Time
	ClearExpiry bool
}

// ItemFilter holds optional filter parameters for listing inventory items.
type ItemFilter struct {
	CategoryID *string
	Search     string
}

// InventoryServicer defines the contract for the inventory ledger store.
type InventoryServicer interface {
	CreateItem(actorID string, input ItemInput) (*models.InventoryItem, error)
	GetItemByID(itemID string) (*models.InventoryItem, error)
	UpdateItem(actorID, itemID string, update ItemUpdate) (*models.InventoryItem, error)
	DeleteItem(actorID, itemID string) error
	ListItems(page pagination.PageRequest, filter ItemFilter) (*pagination.PageResponse[models.InventoryItem], error)
	LowStock(threshold int64, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error)
	Expiring(within time.Duration, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error)
}

// StockServicer defines the contract for stock adjustments. Each call writes
// the item, one transaction and one audit entry in a single database
// transaction.
type StockServicer interface {
	StockIn(itemID string, quantity int64, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error)
	StockOut(itemID string, quantity int64, patientID *string, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error)
}

// TransactionFilter holds optional filter parameters for listing inventory transactions.
type TransactionFilter struct {
	ItemID    *string
	ActorID   *string
	PatientID *string
	Direction *models.TransactionDirection
	FromDate  *time.Time
	ToDate    *time.Time
}

// Reconciliation compares an item's stored quantity with its transaction log.
type Reconciliation struct {
	ItemID     string `json:"item_id"`
	Quantity   int64  `json:"quantity"`
	TotalIn    int64  `json:"total_in"`
	TotalOut   int64  `json:"total_out"`
	LogBalance int64  `json:"log_balance"`
	Consistent bool   `json:"consistent"`
}

// LedgerServicer defines the read side of the inventory transaction log.
type LedgerServicer interface {
	ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.InventoryTransaction], error)
	GetTransactionByID(transactionID string) (*models.InventoryTransaction, error)
	Reconcile(itemID string) (*Reconciliation, error)
}

// AuditEntry describes one administrative action. An empty ActorID records a
// system action.
type AuditEntry struct {
	ActorID      string
	Action       models.AuditAction
	ResourceType string
	ResourceID   string
	Changes      models.ChangeSet
	Description  string
}

// AuditFilter holds optional filter parameters for listing audit entries.
type AuditFilter struct {
	Action       *models.AuditAction
	ActorID      *string
	ResourceType *string
	ResourceID   *string
	Search       string
	FromDate     *time.Time
	ToDate       *time.Time
}

// AuditServicer defines the contract for the audit trail. Record must be
// called with the transaction of the operation being audited.
type AuditServicer interface {
	Record(tx *gorm.DB, entry AuditEntry) error
	ListAuditLogs(page pagination.PageRequest, filter AuditFilter) (*pagination.PageResponse[models.AuditLog], error)
	GetAuditLogByID(id string) (*models.AuditLog, error)
}

// FoodCandidate holds the catalog fields proposed for a food.
type FoodCandidate struct {
	NameAndDescription string
	AlternateNames     string
	EnergyKcal         *float64
	NutritionTags      string
}

// DuplicateMatch reports the first stored food or pending request that
// resembles a candidate.
type DuplicateMatch struct {
	Source string `json:"source"` // "foods" or "food_requests"
	ID     string `json:"id"`
	Name   string `json:"food_name_and_description"`
}

// FoodServicer defines the contract for the food catalog.
type FoodServicer interface {
	CreateFood(actorID string, candidate FoodCandidate) (*models.Food, error)
	GetFoodByID(foodID string) (*models.Food, error)
	ListFoods(page pagination.PageRequest, search, tag string) (*pagination.PageResponse[models.Food], error)
	GetTags() ([]string, error)
	CheckDuplicate(name, alternateNames string) (*DuplicateMatch, error)
}

// FoodRequestFilter holds optional filter parameters for listing food requests.
type FoodRequestFilter struct {
	Status      *models.FoodRequestStatus
	RequestedBy *string
	Search      string
}

// FoodRequestStats counts requests per status.
type FoodRequestStats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

// BatchFailure describes one id a batch could not process.
type BatchFailure struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResult aggregates per-request outcomes of a batch review.
type BatchResult struct {
	Processed []string       `json:"processed"`
	Skipped   []string       `json:"skipped"`
	Failed    []BatchFailure `json:"failed"`
}

// FoodRequestServicer defines the contract for the food request moderation
// workflow.
type FoodRequestServicer interface {
	Submit(requesterID string, candidate FoodCandidate) (*models.FoodRequest, error)
	Approve(requestID, reviewerID, notes string) (*models.Food, *models.FoodRequest, error)
	Reject(requestID, reviewerID, notes string) (*models.FoodRequest, error)
	BatchApprove(requestIDs []string, reviewerID, notes string) (*BatchResult, error)
	BatchReject(requestIDs []string, reviewerID, notes string) (*BatchResult, error)
	Withdraw(requestID, requesterID string) (*models.FoodRequest, error)
	GetFoodRequestByID(requestID string) (*models.FoodRequest, error)
	ListFoodRequests(page pagination.PageRequest, filter FoodRequestFilter) (*pagination.PageResponse[models.FoodRequest], error)
	Stats(requesterID *string) (*FoodRequestStats, error)
}
