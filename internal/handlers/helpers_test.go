package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"nutriwatch/internal/events"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
	"nutriwatch/internal/validator"
)

const (
	testUserID  = "0190a1b2-c3d4-7e5f-8a6b-000000000001"
	testItemID  = "0190a1b2-c3d4-7e5f-8a6b-000000000002"
	testCatID   = "0190a1b2-c3d4-7e5f-8a6b-000000000003"
	testReqID   = "0190a1b2-c3d4-7e5f-8a6b-000000000004"
	testFoodID  = "0190a1b2-c3d4-7e5f-8a6b-000000000005"
	testOtherID = "0190a1b2-c3d4-7e5f-8a6b-000000000006"
)

// --- mock services ---

type mockCategoryService struct {
	createCategoryFn  func(actorID, name, description string) (*models.ItemCategory, error)
	getCategoriesFn   func(page pagination.PageRequest) (*pagination.PageResponse[models.ItemCategory], error)
	getCategoryByIDFn func(categoryID string) (*models.ItemCategory, error)
	updateCategoryFn  func(actorID, categoryID string, name, description *string) (*models.ItemCategory, error)
	deleteCategoryFn  func(actorID, categoryID string) error
}

func (m *mockCategoryService) CreateCategory(actorID, name, description string) (*models.ItemCategory, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(actorID, name, description)
	}
	return &models.ItemCategory{}, nil
}

func (m *mockCategoryService) GetCategories(page pagination.PageRequest) (*pagination.PageResponse[models.ItemCategory], error) {
	if m.getCategoriesFn != nil {
		return m.getCategoriesFn(page)
	}
	resp := pagination.NewPageResponse([]models.ItemCategory{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(categoryID string) (*models.ItemCategory, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(categoryID)
	}
	return &models.ItemCategory{}, nil
}

func (m *mockCategoryService) UpdateCategory(actorID, categoryID string, name, description *string) (*models.ItemCategory, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(actorID, categoryID, name, description)
	}
	return &models.ItemCategory{}, nil
}

func (m *mockCategoryService) DeleteCategory(actorID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(actorID, categoryID)
	}
	return nil
}

type mockInventoryService struct {
	createItemFn  func(actorID string, input services.ItemInput) (*models.InventoryItem, error)
	getItemByIDFn func(itemID string) (*models.InventoryItem, error)
	updateItemFn  func(actorID, itemID string, update services.ItemUpdate) (*models.InventoryItem, error)
	deleteItemFn  func(actorID, itemID string) error
	listItemsFn   func(page pagination.PageRequest, filter services.ItemFilter) (*pagination.PageResponse[models.InventoryItem], error)
	lowStockFn    func(threshold int64, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error)
	expiringFn    func(within time.Duration, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error)
}

func (m *mockInventoryService) CreateItem(actorID string, input services.ItemInput) (*models.InventoryItem, error) {
	if m.createItemFn != nil {
		return m.createItemFn(actorID, input)
	}
	return &models.InventoryItem{}, nil
}

func (m *mockInventoryService) GetItemByID(itemID string) (*models.InventoryItem, error) {
	if m.getItemByIDFn != nil {
		return m.getItemByIDFn(itemID)
	}
	return &models.InventoryItem{}, nil
}

func (m *mockInventoryService) UpdateItem(actorID, itemID string, update services.ItemUpdate) (*models.InventoryItem, error) {
	if m.updateItemFn != nil {
		return m.updateItemFn(actorID, itemID, update)
	}
	return &models.InventoryItem{}, nil
}

func (m *mockInventoryService) DeleteItem(actorID, itemID string) error {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(actorID, itemID)
	}
	return nil
}

func (m *mockInventoryService) ListItems(page pagination.PageRequest, filter services.ItemFilter) (*pagination.PageResponse[models.InventoryItem], error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockInventoryService) LowStock(threshold int64, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
	if m.lowStockFn != nil {
		return m.lowStockFn(threshold, page)
	}
	resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockInventoryService) Expiring(within time.Duration, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
	if m.expiringFn != nil {
		return m.expiringFn(within, page)
	}
	resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
	return &resp, nil
}

type mockStockService struct {
	stockInFn  func(itemID string, quantity int64, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error)
	stockOutFn func(itemID string, quantity int64, patientID *string, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error)
}

func (m *mockStockService) StockIn(itemID string, quantity int64, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error) {
	if m.stockInFn != nil {
		return m.stockInFn(itemID, quantity, remarks, actorID)
	}
	return &models.InventoryItem{}, &models.InventoryTransaction{}, nil
}

func (m *mockStockService) StockOut(itemID string, quantity int64, patientID *string, remarks, actorID string) (*models.InventoryItem, *models.InventoryTransaction, error) {
	if m.stockOutFn != nil {
		return m.stockOutFn(itemID, quantity, patientID, remarks, actorID)
	}
	return &models.InventoryItem{}, &models.InventoryTransaction{}, nil
}

type mockLedgerService struct {
	listTransactionsFn   func(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.InventoryTransaction], error)
	getTransactionByIDFn func(transactionID string) (*models.InventoryTransaction, error)
	reconcileFn          func(itemID string) (*services.Reconciliation, error)
}

func (m *mockLedgerService) ListTransactions(page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.InventoryTransaction], error) {
	if m.listTransactionsFn != nil {
		return m.listTransactionsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.InventoryTransaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockLedgerService) GetTransactionByID(transactionID string) (*models.InventoryTransaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(transactionID)
	}
	return &models.InventoryTransaction{}, nil
}

func (m *mockLedgerService) Reconcile(itemID string) (*services.Reconciliation, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(itemID)
	}
	return &services.Reconciliation{ItemID: itemID, Consistent: true}, nil
}

type mockAuditService struct {
	listAuditLogsFn   func(page pagination.PageRequest, filter services.AuditFilter) (*pagination.PageResponse[models.AuditLog], error)
	getAuditLogByIDFn func(id string) (*models.AuditLog, error)
}

func (m *mockAuditService) Record(_ *gorm.DB, _ services.AuditEntry) error { return nil }

func (m *mockAuditService) ListAuditLogs(page pagination.PageRequest, filter services.AuditFilter) (*pagination.PageResponse[models.AuditLog], error) {
	if m.listAuditLogsFn != nil {
		return m.listAuditLogsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.AuditLog{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAuditService) GetAuditLogByID(id string) (*models.AuditLog, error) {
	if m.getAuditLogByIDFn != nil {
		return m.getAuditLogByIDFn(id)
	}
	return &models.AuditLog{}, nil
}

type mockFoodService struct {
	createFoodFn     func(actorID string, candidate services.FoodCandidate) (*models.Food, error)
	getFoodByIDFn    func(foodID string) (*models.Food, error)
	listFoodsFn      func(page pagination.PageRequest, search, tag string) (*pagination.PageResponse[models.Food], error)
	getTagsFn        func() ([]string, error)
	checkDuplicateFn func(name, alternateNames string) (*services.DuplicateMatch, error)
}

func (m *mockFoodService) CreateFood(actorID string, candidate services.FoodCandidate) (*models.Food, error) {
	if m.createFoodFn != nil {
		return m.createFoodFn(actorID, candidate)
	}
	return &models.Food{}, nil
}

func (m *mockFoodService) GetFoodByID(foodID string) (*models.Food, error) {
	if m.getFoodByIDFn != nil {
		return m.getFoodByIDFn(foodID)
	}
	return &models.Food{}, nil
}

func (m *mockFoodService) ListFoods(page pagination.PageRequest, search, tag string) (*pagination.PageResponse[models.Food], error) {
	if m.listFoodsFn != nil {
		return m.listFoodsFn(page, search, tag)
	}
	resp := pagination.NewPageResponse([]models.Food{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockFoodService) GetTags() ([]string, error) {
	if m.getTagsFn != nil {
		return m.getTagsFn()
	}
	return []string{}, nil
}

func (m *mockFoodService) CheckDuplicate(name, alternateNames string) (*services.DuplicateMatch, error) {
	if m.checkDuplicateFn != nil {
		return m.checkDuplicateFn(name, alternateNames)
	}
	return nil, nil
}

type mockFoodRequestService struct {
	submitFn       func(requesterID string, candidate services.FoodCandidate) (*models.FoodRequest, error)
	approveFn      func(requestID, reviewerID, notes string) (*models.Food, *models.FoodRequest, error)
	rejectFn       func(requestID, reviewerID, notes string) (*models.FoodRequest, error)
	batchApproveFn func(ids []string, reviewerID, notes string) (*services.BatchResult, error)
	batchRejectFn  func(ids []string, reviewerID, notes string) (*services.BatchResult, error)
	withdrawFn     func(requestID, requesterID string) (*models.FoodRequest, error)
	getByIDFn      func(requestID string) (*models.FoodRequest, error)
	listFn         func(page pagination.PageRequest, filter services.FoodRequestFilter) (*pagination.PageResponse[models.FoodRequest], error)
	statsFn        func(requesterID *string) (*services.FoodRequestStats, error)
}

func (m *mockFoodRequestService) Submit(requesterID string, candidate services.FoodCandidate) (*models.FoodRequest, error) {
	if m.submitFn != nil {
		return m.submitFn(requesterID, candidate)
	}
	return &models.FoodRequest{}, nil
}

func (m *mockFoodRequestService) Approve(requestID, reviewerID, notes string) (*models.Food, *models.FoodRequest, error) {
	if m.approveFn != nil {
		return m.approveFn(requestID, reviewerID, notes)
	}
	return &models.Food{}, &models.FoodRequest{}, nil
}

func (m *mockFoodRequestService) Reject(requestID, reviewerID, notes string) (*models.FoodRequest, error) {
	if m.rejectFn != nil {
		return m.rejectFn(requestID, reviewerID, notes)
	}
	return &models.FoodRequest{}, nil
}

func (m *mockFoodRequestService) BatchApprove(ids []string, reviewerID, notes string) (*services.BatchResult, error) {
	if m.batchApproveFn != nil {
		return m.batchApproveFn(ids, reviewerID, notes)
	}
	return &services.BatchResult{}, nil
}

func (m *mockFoodRequestService) BatchReject(ids []string, reviewerID, notes string) (*services.BatchResult, error) {
	if m.batchRejectFn != nil {
		return m.batchRejectFn(ids, reviewerID, notes)
	}
	return &services.BatchResult{}, nil
}

func (m *mockFoodRequestService) Withdraw(requestID, requesterID string) (*models.FoodRequest, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(requestID, requesterID)
	}
	return &models.FoodRequest{Base: models.Base{ID: requestID}, RequestedBy: requesterID}, nil
}

func (m *mockFoodRequestService) GetFoodRequestByID(requestID string) (*models.FoodRequest, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(requestID)
	}
	return &models.FoodRequest{}, nil
}

func (m *mockFoodRequestService) ListFoodRequests(page pagination.PageRequest, filter services.FoodRequestFilter) (*pagination.PageResponse[models.FoodRequest], error) {
	if m.listFn != nil {
		return m.listFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.FoodRequest{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockFoodRequestService) Stats(requesterID *string) (*services.FoodRequestStats, error) {
	if m.statsFn != nil {
		return m.statsFn(requesterID)
	}
	return &services.FoodRequestStats{}, nil
}

// verify interface compliance
var (
	_ services.ItemCategoryServicer = (*mockCategoryService)(nil)
	_ services.InventoryServicer    = (*mockInventoryService)(nil)
	_ services.StockServicer        = (*mockStockService)(nil)
	_ services.LedgerServicer       = (*mockLedgerService)(nil)
	_ services.AuditServicer        = (*mockAuditService)(nil)
	_ services.FoodServicer         = (*mockFoodService)(nil)
	_ services.FoodRequestServicer  = (*mockFoodRequestService)(nil)
)

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBrokerDown = errors.New("broker down")

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// newTestRouter returns an engine that renders recorded errors the way the
// production router does.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	return r
}

func injectUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func injectSystem() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.RoleKey, middleware.RoleSystem)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New()
}
