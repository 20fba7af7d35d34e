package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

// AuditHandler serves the audit trail.
type AuditHandler struct {
	auditService services.AuditServicer
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService services.AuditServicer) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

type auditQuery struct {
	Action       string `form:"action" binding:"omitempty,audit_action"`
	ActorID      string `form:"actor_id" binding:"omitempty,uuid"`
	ResourceType string `form:"resource_type" binding:"omitempty,max=64"`
	ResourceID   string `form:"resource_id" binding:"omitempty,uuid"`
	Search       string `form:"search" binding:"max=200"`
}

// ListAuditLogs handles listing audit entries
// @Summary     List audit entries
// @Tags        audit
// @Produce     json
// @Security    BearerAuth
// @Param       action        query string false "create, update, delete, stock_in, stock_out, approve, reject or withdraw"
// @Param       actor_id      query string false "Filter by actor"
// @Param       resource_type query string false "Affected table"
// @Param       resource_id   query string false "Affected record"
// @Param       search        query string false "Description search"
// @Param       from_date     query string false "Start (RFC3339 or YYYY-MM-DD)"
// @Param       to_date       query string false "End (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.AuditLog] "Paginated entries, newest first"
// @Router      /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.AuditFilter{
		ActorID:      optionalQuery(c, "actor_id"),
		ResourceType: optionalQuery(c, "resource_type"),
		ResourceID:   optionalQuery(c, "resource_id"),
		Search:       q.Search,
		FromDate:     from,
		ToDate:       to,
	}
	if q.Action != "" {
		a := models.AuditAction(q.Action)
		filter.Action = &a
	}

	result, err := h.auditService.ListAuditLogs(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAuditLogByID handles the retrieval of one audit entry
// @Summary     Get audit entry by ID
// @Tags        audit
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Audit entry ID"
// @Success     200 {object} models.AuditLog "Audit entry"
// @Failure     404 {object} ErrorResponse "Entry not found"
// @Router      /audit-logs/{id} [get]
func (h *AuditHandler) GetAuditLogByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.auditService.GetAuditLogByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_log": entry})
}
