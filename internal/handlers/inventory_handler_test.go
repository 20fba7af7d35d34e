package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

var testReportDefaults = ReportDefaults{LowStockThreshold: 10, ExpiringWithin: 30 * 24 * time.Hour}

func setupInventoryRouter(handler *InventoryHandler) *gin.Engine {
	r := newTestRouter()
	auth := r.Group("", injectUser(testUserID, middleware.RoleStaff))
	auth.POST("/items", handler.CreateItem)
	auth.GET("/items", handler.ListItems)
	auth.GET("/items/:id", handler.GetItemByID)
	auth.PUT("/items/:id", handler.UpdateItem)
	auth.DELETE("/items/:id", handler.DeleteItem)
	auth.GET("/reports/low-stock", handler.LowStock)
	auth.GET("/reports/expiring", handler.Expiring)
	return r
}

func TestInventoryHandler_CreateItem(t *testing.T) {
	t.Run("returns 201 with parsed expiry", func(t *testing.T) {
		var got services.ItemInput
		svc := &mockInventoryService{
			createItemFn: func(actorID string, input services.ItemInput) (*models.InventoryItem, error) {
				got = input
				return &models.InventoryItem{Base: models.Base{ID: testItemID}, Name: input.Name, Quantity: input.Quantity}, nil
			},
		}
		pub := &recordingPublisher{}
		r := setupInventoryRouter(NewInventoryHandler(svc, pub, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "POST", "/items",
			`{"category_id":"`+testCatID+`","name":"Rice","unit":"kg","quantity":100,"expiry_date":"2030-06-30"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.ExpiryDate == nil || got.ExpiryDate.Format(models.DateLayout) != "2030-06-30" {
			t.Errorf("unexpected expiry %v", got.ExpiryDate)
		}
		if got.Quantity != 100 || got.CategoryID != testCatID {
			t.Errorf("unexpected input %+v", got)
		}
		if types := pub.types(); len(types) != 1 || types[0] != events.TypeItemCreated {
			t.Errorf("expected item_created event, got %v", types)
		}
	})

	t.Run("returns 400 for bad expiry format", func(t *testing.T) {
		r := setupInventoryRouter(NewInventoryHandler(&mockInventoryService{}, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "POST", "/items",
			`{"category_id":"`+testCatID+`","name":"Rice","unit":"kg","expiry_date":"30/06/2030"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 for negative quantity", func(t *testing.T) {
		r := setupInventoryRouter(NewInventoryHandler(&mockInventoryService{}, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "POST", "/items",
			`{"category_id":"`+testCatID+`","name":"Rice","unit":"kg","quantity":-1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when category missing", func(t *testing.T) {
		svc := &mockInventoryService{
			createItemFn: func(string, services.ItemInput) (*models.InventoryItem, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "POST", "/items", `{"category_id":"`+testCatID+`","name":"Rice","unit":"kg"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestInventoryHandler_UpdateItem(t *testing.T) {
	t.Run("returns 409 on quantity change", func(t *testing.T) {
		svc := &mockInventoryService{
			updateItemFn: func(_, _ string, update services.ItemUpdate) (*models.InventoryItem, error) {
				if update.Quantity == nil || *update.Quantity != 5 {
					t.Errorf("expected quantity 5 forwarded, got %v", update.Quantity)
				}
				return nil, apperrors.WithMessage(apperrors.ErrConflict, "quantity changes go through stock adjustments")
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "PUT", "/items/"+testItemID, `{"quantity":5}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CONFLICT")
	})

	t.Run("forwards clear_expiry", func(t *testing.T) {
		var got services.ItemUpdate
		svc := &mockInventoryService{
			updateItemFn: func(_, _ string, update services.ItemUpdate) (*models.InventoryItem, error) {
				got = update
				return &models.InventoryItem{}, nil
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "PUT", "/items/"+testItemID, `{"name":"Brown rice","clear_expiry":true}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.ClearExpiry || got.Name == nil || *got.Name != "Brown rice" {
			t.Errorf("unexpected update %+v", got)
		}
	})
}

func TestInventoryHandler_DeleteItem(t *testing.T) {
	t.Run("returns 204 and publishes event", func(t *testing.T) {
		pub := &recordingPublisher{}
		r := setupInventoryRouter(NewInventoryHandler(&mockInventoryService{}, pub, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "DELETE", "/items/"+testItemID, "")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if types := pub.types(); len(types) != 1 || types[0] != events.TypeItemDeleted {
			t.Errorf("expected item_deleted event, got %v", types)
		}
	})

	t.Run("returns 409 when item has history", func(t *testing.T) {
		svc := &mockInventoryService{
			deleteItemFn: func(string, string) error { return apperrors.ErrConflict },
		}
		pub := &recordingPublisher{}
		r := setupInventoryRouter(NewInventoryHandler(svc, pub, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "DELETE", "/items/"+testItemID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if len(pub.types()) != 0 {
			t.Errorf("expected no events, got %v", pub.types())
		}
	})
}

func TestInventoryHandler_Reports(t *testing.T) {
	t.Run("low stock uses default threshold", func(t *testing.T) {
		var got int64
		svc := &mockInventoryService{
			lowStockFn: func(threshold int64, page pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
				got = threshold
				resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "GET", "/reports/low-stock", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got != 10 {
			t.Errorf("expected threshold 10, got %d", got)
		}
	})

	t.Run("low stock accepts threshold override", func(t *testing.T) {
		var got int64
		svc := &mockInventoryService{
			lowStockFn: func(threshold int64, _ pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
				got = threshold
				resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		doRequest(r, "GET", "/reports/low-stock?threshold=25", "")

		if got != 25 {
			t.Errorf("expected threshold 25, got %d", got)
		}
	})

	t.Run("expiring converts days", func(t *testing.T) {
		var got time.Duration
		svc := &mockInventoryService{
			expiringFn: func(within time.Duration, _ pagination.PageRequest) (*pagination.PageResponse[models.InventoryItem], error) {
				got = within
				resp := pagination.NewPageResponse([]models.InventoryItem{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "GET", "/reports/expiring?within_days=7", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got != 7*24*time.Hour {
			t.Errorf("expected 7 days, got %v", got)
		}
	})

	t.Run("expiring rejects non-numeric days", func(t *testing.T) {
		r := setupInventoryRouter(NewInventoryHandler(&mockInventoryService{}, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

		rec := doRequest(r, "GET", "/reports/expiring?within_days=soon", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestInventoryHandler_ListItems(t *testing.T) {
	var got services.ItemFilter
	svc := &mockInventoryService{
		listItemsFn: func(_ pagination.PageRequest, filter services.ItemFilter) (*pagination.PageResponse[models.InventoryItem], error) {
			got = filter
			resp := pagination.NewPageResponse([]models.InventoryItem{{Name: "Rice"}}, 1, 20, 1)
			return &resp, nil
		},
	}
	r := setupInventoryRouter(NewInventoryHandler(svc, &recordingPublisher{}, newTestMetrics(), testReportDefaults))

	rec := doRequest(r, "GET", "/items?category_id="+testCatID+"&search=ri", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.CategoryID == nil || *got.CategoryID != testCatID || got.Search != "ri" {
		t.Errorf("unexpected filter %+v", got)
	}
	if parseJSON(t, rec)["total_items"] != float64(1) {
		t.Error("expected total_items 1")
	}
}

func setupCategoryRouter(handler *ItemCategoryHandler) *gin.Engine {
	r := newTestRouter()
	auth := r.Group("", injectUser(testUserID, middleware.RoleAdmin))
	auth.POST("/categories", handler.CreateCategory)
	auth.GET("/categories", handler.GetCategories)
	auth.GET("/categories/:id", handler.GetCategoryByID)
	auth.PUT("/categories/:id", handler.UpdateCategory)
	auth.DELETE("/categories/:id", handler.DeleteCategory)
	return r
}

func TestItemCategoryHandler(t *testing.T) {
	t.Run("create returns 201", func(t *testing.T) {
		svc := &mockCategoryService{
			createCategoryFn: func(actorID, name, description string) (*models.ItemCategory, error) {
				return &models.ItemCategory{Base: models.Base{ID: testCatID}, Name: name, Description: description}, nil
			},
		}
		r := setupCategoryRouter(NewItemCategoryHandler(svc))

		rec := doRequest(r, "POST", "/categories", `{"name":"Grains","description":"Rice and cereals"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		cat := parseJSON(t, rec)["category"].(map[string]interface{})
		if cat["name"] != "Grains" {
			t.Errorf("expected name Grains, got %v", cat["name"])
		}
	})

	t.Run("create requires name", func(t *testing.T) {
		r := setupCategoryRouter(NewItemCategoryHandler(&mockCategoryService{}))

		rec := doRequest(r, "POST", "/categories", `{"description":"x"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("get returns 404", func(t *testing.T) {
		svc := &mockCategoryService{
			getCategoryByIDFn: func(string) (*models.ItemCategory, error) { return nil, apperrors.ErrCategoryNotFound },
		}
		r := setupCategoryRouter(NewItemCategoryHandler(svc))

		rec := doRequest(r, "GET", "/categories/"+testCatID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete in use returns 409", func(t *testing.T) {
		svc := &mockCategoryService{
			deleteCategoryFn: func(string, string) error { return apperrors.ErrCategoryInUse },
		}
		r := setupCategoryRouter(NewItemCategoryHandler(svc))

		rec := doRequest(r, "DELETE", "/categories/"+testCatID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_IN_USE")
	})

	t.Run("update forwards only provided fields", func(t *testing.T) {
		var gotName, gotDesc *string
		svc := &mockCategoryService{
			updateCategoryFn: func(_, _ string, name, description *string) (*models.ItemCategory, error) {
				gotName, gotDesc = name, description
				return &models.ItemCategory{}, nil
			},
		}
		r := setupCategoryRouter(NewItemCategoryHandler(svc))

		rec := doRequest(r, "PUT", "/categories/"+testCatID, `{"name":"Cereals"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotName == nil || *gotName != "Cereals" || gotDesc != nil {
			t.Errorf("unexpected update name=%v desc=%v", gotName, gotDesc)
		}
	})
}
