package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

func setupAuditRouter(handler *AuditHandler) *gin.Engine {
	r := newTestRouter()
	auth := r.Group("", injectUser(testUserID, middleware.RoleAdmin))
	auth.GET("/audit-logs", handler.ListAuditLogs)
	auth.GET("/audit-logs/:id", handler.GetAuditLogByID)
	return r
}

func TestAuditHandler_ListAuditLogs(t *testing.T) {
	t.Run("builds filter from query", func(t *testing.T) {
		var got services.AuditFilter
		svc := &mockAuditService{
			listAuditLogsFn: func(_ pagination.PageRequest, filter services.AuditFilter) (*pagination.PageResponse[models.AuditLog], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.AuditLog{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupAuditRouter(NewAuditHandler(svc))

		rec := doRequest(r, "GET", "/audit-logs?action=stock_out&resource_type=inventory_item&resource_id="+testItemID+"&search=rice", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Action == nil || *got.Action != models.AuditActionStockOut {
			t.Errorf("expected stock_out action, got %v", got.Action)
		}
		if got.ResourceType == nil || *got.ResourceType != "inventory_item" {
			t.Errorf("unexpected resource type %v", got.ResourceType)
		}
		if got.ResourceID == nil || *got.ResourceID != testItemID || got.Search != "rice" {
			t.Errorf("unexpected filter %+v", got)
		}
	})

	t.Run("returns 400 for unknown action", func(t *testing.T) {
		r := setupAuditRouter(NewAuditHandler(&mockAuditService{}))

		rec := doRequest(r, "GET", "/audit-logs?action=login", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestAuditHandler_GetAuditLogByID(t *testing.T) {
	t.Run("returns entry", func(t *testing.T) {
		svc := &mockAuditService{
			getAuditLogByIDFn: func(id string) (*models.AuditLog, error) {
				return &models.AuditLog{LogBase: models.LogBase{ID: id}, Action: models.AuditActionCreate, Description: "Created item Rice"}, nil
			},
		}
		r := setupAuditRouter(NewAuditHandler(svc))

		rec := doRequest(r, "GET", "/audit-logs/"+testOtherID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		entry := parseJSON(t, rec)["audit_log"].(map[string]interface{})
		if entry["action"] != "create" {
			t.Errorf("expected create, got %v", entry["action"])
		}
	})

	t.Run("returns 404", func(t *testing.T) {
		svc := &mockAuditService{
			getAuditLogByIDFn: func(string) (*models.AuditLog, error) { return nil, apperrors.ErrAuditLogNotFound },
		}
		r := setupAuditRouter(NewAuditHandler(svc))

		rec := doRequest(r, "GET", "/audit-logs/"+testOtherID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("returns 400 for malformed id", func(t *testing.T) {
		r := setupAuditRouter(NewAuditHandler(&mockAuditService{}))

		rec := doRequest(r, "GET", "/audit-logs/xyz", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
