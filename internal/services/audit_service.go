package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

// auditService records and queries the audit trail.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Record appends an audit entry using tx, so the entry commits or rolls back
// with the operation it describes. A failed write is returned to the caller.
func (s *auditService) Record(tx *gorm.DB, entry AuditEntry) error {
	if entry.Action == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "audit action is required")
	}

	log := &models.AuditLog{
		ActorID:      optionalString(entry.ActorID),
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Changes:      entry.Changes,
		Description:  entry.Description,
	}

	if err := tx.Create(log).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", entry.ActorID,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
		)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ListAuditLogs retrieves a filtered, paginated page of audit entries, newest first.
func (s *auditService) ListAuditLogs(page pagination.PageRequest, filter AuditFilter) (*pagination.PageResponse[models.AuditLog], error) {
	base := s.db.Model(&models.AuditLog{})

	if filter.Action != nil {
		base = base.Where("action = ?", *filter.Action)
	}
	if filter.ActorID != nil {
		base = base.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.ResourceType != nil {
		base = base.Where("resource_type = ?", *filter.ResourceType)
	}
	if filter.ResourceID != nil {
		base = base.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.Search != "" {
		base = base.Where("LOWER(description) LIKE ? ESCAPE '\\'", containsPattern(filter.Search))
	}
	base = applyDateRange(base, "created_at", filter.FromDate, filter.ToDate)

	result, err := pagination.Fetch[models.AuditLog](base, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAuditLogByID retrieves a single audit entry.
func (s *auditService) GetAuditLogByID(id string) (*models.AuditLog, error) {
	var entry models.AuditLog
	if err := s.db.Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuditLogNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &entry, nil
}

// applyDateRange restricts column to [from, to]; a nil bound is open.
func applyDateRange(q *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		q = q.Where(column+" >= ?", *from)
	}
	if to != nil {
		q = q.Where(column+" <= ?", *to)
	}
	return q
}
