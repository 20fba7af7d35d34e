package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"nutriwatch/internal/cache"
	"nutriwatch/internal/events"
	"nutriwatch/internal/handlers"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/services"
	"nutriwatch/internal/testutil"
	"nutriwatch/internal/validator"
)

const testSystemKey = "integration-system-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB      *gorm.DB
	Router  *gin.Engine
	Events  *eventLog
	Metrics *metrics.Metrics
}

// eventLog records published events.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	pub := &eventLog{}
	m := metrics.New()
	policy := services.DefaultDuplicatePolicy()

	// Services
	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db, auditService)
	inventoryService := services.NewInventoryService(db, auditService)
	stockService := services.NewStockService(db, auditService, 5)
	ledgerService := services.NewLedgerService(db)
	foodService := services.NewFoodService(db, auditService, policy)
	foodRequestService := services.NewFoodRequestService(db, auditService, policy)

	// Handlers
	categoryHandler := handlers.NewItemCategoryHandler(categoryService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, pub, m, handlers.ReportDefaults{
		LowStockThreshold: 10,
		ExpiringWithin:    30 * 24 * time.Hour,
	})
	stockHandler := handlers.NewStockHandler(stockService, pub, m)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	auditHandler := handlers.NewAuditHandler(auditService)
	foodHandler := handlers.NewFoodHandler(foodService, pub, m)
	foodRequestHandler := handlers.NewFoodRequestHandler(foodRequestService, cache.NewMemoryLocker(), time.Minute, pub, m)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	anyRole := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff, middleware.RoleNutritionist)
	inventoryRoles := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)
	requestRoles := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleNutritionist)
	nutritionistOnly := middleware.RequireRole(middleware.RoleNutritionist)

	inventory := protected.Group("/inventory")
	inventory.GET("/categories", anyRole, categoryHandler.GetCategories)
	inventory.POST("/categories", adminOnly, categoryHandler.CreateCategory)
	inventory.DELETE("/categories/:id", adminOnly, categoryHandler.DeleteCategory)
	inventory.GET("/items", anyRole, inventoryHandler.ListItems)
	inventory.GET("/items/:id", anyRole, inventoryHandler.GetItemByID)
	inventory.POST("/items", inventoryRoles, inventoryHandler.CreateItem)
	inventory.PUT("/items/:id", inventoryRoles, inventoryHandler.UpdateItem)
	inventory.DELETE("/items/:id", adminOnly, inventoryHandler.DeleteItem)
	inventory.POST("/items/:id/stock-in", inventoryRoles, stockHandler.StockIn)
	inventory.POST("/items/:id/stock-out", inventoryRoles, stockHandler.StockOut)
	inventory.GET("/items/:id/reconcile", inventoryRoles, ledgerHandler.Reconcile)
	inventory.GET("/transactions", inventoryRoles, ledgerHandler.ListTransactions)
	inventory.GET("/reports/low-stock", inventoryRoles, inventoryHandler.LowStock)

	protected.GET("/audit-logs", adminOnly, auditHandler.ListAuditLogs)

	foods := protected.Group("/foods")
	foods.GET("", anyRole, foodHandler.ListFoods)
	foods.GET("/tags", anyRole, foodHandler.GetTags)
	foods.GET("/:id", anyRole, foodHandler.GetFoodByID)

	foodRequests := protected.Group("/food-requests")
	foodRequests.POST("", nutritionistOnly, foodRequestHandler.Submit)
	foodRequests.GET("", requestRoles, foodRequestHandler.ListFoodRequests)
	foodRequests.GET("/stats", requestRoles, foodRequestHandler.Stats)
	foodRequests.POST("/batch-approve", adminOnly, foodRequestHandler.BatchApprove)
	foodRequests.POST("/batch-reject", adminOnly, foodRequestHandler.BatchReject)
	foodRequests.GET("/:id", requestRoles, foodRequestHandler.GetFoodRequestByID)
	foodRequests.DELETE("/:id", nutritionistOnly, foodRequestHandler.Withdraw)
	foodRequests.POST("/:id/approve", adminOnly, foodRequestHandler.Approve)
	foodRequests.POST("/:id/reject", adminOnly, foodRequestHandler.Reject)

	system := v1.Group("/system")
	system.Use(middleware.SystemAuthMiddleware(testSystemKey))
	system.POST("/inventory/items/:id/stock-in", stockHandler.StockIn)
	system.POST("/inventory/items/:id/stock-out", stockHandler.StockOut)

	return &testApp{DB: db, Router: router, Events: pub, Metrics: m}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// systemRequest makes a request authenticated by the system API key.
func (app *testApp) systemRequest(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testSystemKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// login issues an access token for a fresh user with the given role and
// returns the token and user id.
func login(t *testing.T, role string) (token, userID string) {
	t.Helper()
	userID = testutil.NewActorID()
	token, err := middleware.GenerateAccessToken(userID, role)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token, userID
}

// mustStatus fails the test when the response code differs from want.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// errorCode extracts the error code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

var _ events.Publisher = (*eventLog)(nil)
