package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

const resourceFoodRequests = "food_requests"

// foodRequestService runs the food request moderation workflow.
type foodRequestService struct {
	db     *gorm.DB
	audit  AuditServicer
	policy DuplicatePolicy
	now    func() time.Time
}

// NewFoodRequestService creates a new FoodRequestServicer.
func NewFoodRequestService(db *gorm.DB, audit AuditServicer, policy DuplicatePolicy) FoodRequestServicer {
	return &foodRequestService{db: db, audit: audit, policy: policy, now: time.Now}
}

// Submit files a pending request for a new catalog entry. It fails with
// ErrDuplicateCandidate when a food or another pending request already
// resembles the candidate.
func (s *foodRequestService) Submit(requesterID string, candidate FoodCandidate) (*models.FoodRequest, error) {
	if requesterID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "requester is required")
	}
	c, err := normalizeCandidate(candidate)
	if err != nil {
		return nil, err
	}

	req := &models.FoodRequest{
		RequestedBy:        requesterID,
		NameAndDescription: c.NameAndDescription,
		AlternateNames:     c.AlternateNames,
		EnergyKcal:         c.EnergyKcal,
		NutritionTags:      c.NutritionTags,
		Status:             models.FoodRequestPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		match, err := findDuplicate(tx, s.policy, c.NameAndDescription, c.AlternateNames)
		if err != nil {
			return err
		}
		if match != nil {
			return apperrors.WithMessage(apperrors.ErrDuplicateCandidate,
				fmt.Sprintf("a similar food already exists or is pending review: %s", truncate(match.Name, 80)))
		}

		if err := tx.Create(req).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      requesterID,
			Action:       models.AuditActionCreate,
			ResourceType: resourceFoodRequests,
			ResourceID:   req.ID,
			Changes:      models.Diff(nil, req.Snapshot()),
			Description:  "Submitted food request " + truncate(req.NameAndDescription, 80),
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve moves a pending request to approved and creates its catalog entry
// in the same transaction.
func (s *foodRequestService) Approve(requestID, reviewerID, notes string) (*models.Food, *models.FoodRequest, error) {
	if reviewerID == "" {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "reviewer is required")
	}

	var (
		food *models.Food
		req  *models.FoodRequest
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = s.transition(tx, requestID, reviewerID, models.FoodRequestApproved, strings.TrimSpace(notes))
		if err != nil {
			return err
		}

		food = req.ToFood()
		if err := tx.Create(food).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return food, req, nil
}

// Reject moves a pending request to rejected. Notes explaining the decision
// are required.
func (s *foodRequestService) Reject(requestID, reviewerID, notes string) (*models.FoodRequest, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "notes are required when rejecting a request")
	}
	if reviewerID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "reviewer is required")
	}

	var req *models.FoodRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = s.transition(tx, requestID, reviewerID, models.FoodRequestRejected, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// transition applies pending -> status with a conditional update so that
// only one concurrent reviewer wins, then writes the audit entry.
func (s *foodRequestService) transition(tx *gorm.DB, requestID, reviewerID string, status models.FoodRequestStatus, notes string) (*models.FoodRequest, error) {
	req, err := findFoodRequest(tx.Unscoped(), requestID)
	if err != nil {
		return nil, err
	}
	if req.DeletedAt.Valid {
		return nil, apperrors.WithMessage(apperrors.ErrAlreadyProcessed, "food request has been withdrawn")
	}
	if req.Status != models.FoodRequestPending {
		return nil, apperrors.ErrAlreadyProcessed
	}
	before := req.Snapshot()

	reviewedAt := s.now()
	result := tx.Model(&models.FoodRequest{}).
		Where("id = ? AND status = ?", req.ID, models.FoodRequestPending).
		Updates(map[string]interface{}{
			"status":      status,
			"admin_notes": notes,
			"reviewed_by": reviewerID,
			"reviewed_at": reviewedAt,
		})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrAlreadyProcessed
	}

	req.Status = status
	req.AdminNotes = notes
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &reviewedAt

	action := models.AuditActionApprove
	verb := "Approved"
	if status == models.FoodRequestRejected {
		action = models.AuditActionReject
		verb = "Rejected"
	}
	if err := s.audit.Record(tx, AuditEntry{
		ActorID:      reviewerID,
		Action:       action,
		ResourceType: resourceFoodRequests,
		ResourceID:   req.ID,
		Changes:      models.Diff(before, req.Snapshot()),
		Description:  fmt.Sprintf("%s food request %s", verb, truncate(req.NameAndDescription, 80)),
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// BatchApprove approves each request independently. Requests that are no
// longer pending are skipped; other failures are reported per id.
func (s *foodRequestService) BatchApprove(requestIDs []string, reviewerID, notes string) (*BatchResult, error) {
	if reviewerID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "reviewer is required")
	}
	return s.batch(requestIDs, func(id string) error {
		_, _, err := s.Approve(id, reviewerID, notes)
		return err
	})
}

// BatchReject rejects each request independently with the same notes.
func (s *foodRequestService) BatchReject(requestIDs []string, reviewerID, notes string) (*BatchResult, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "notes are required when rejecting requests")
	}
	if reviewerID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "reviewer is required")
	}
	return s.batch(requestIDs, func(id string) error {
		_, err := s.Reject(id, reviewerID, notes)
		return err
	})
}

func (s *foodRequestService) batch(requestIDs []string, process func(id string) error) (*BatchResult, error) {
	if len(requestIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one request id is required")
	}

	result := &BatchResult{Processed: []string{}, Skipped: []string{}, Failed: []BatchFailure{}}
	seen := make(map[string]bool, len(requestIDs))
	for _, id := range requestIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		err := process(id)
		switch {
		case err == nil:
			result.Processed = append(result.Processed, id)
		case errors.Is(err, apperrors.ErrAlreadyProcessed):
			result.Skipped = append(result.Skipped, id)
		default:
			failure := BatchFailure{ID: id, Code: apperrors.ErrInternalServer.Code, Message: apperrors.ErrInternalServer.Message}
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				failure.Code = appErr.Code
				failure.Message = appErr.Message
			}
			logger.Get().Warnw("batch review item failed", "request_id", id, "error", err)
			result.Failed = append(result.Failed, failure)
		}
	}
	return result, nil
}

// Withdraw lets the original requester retract a request that is still
// pending. The row is soft-deleted and returned as it was withdrawn.
func (s *foodRequestService) Withdraw(requestID, requesterID string) (*models.FoodRequest, error) {
	var req *models.FoodRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = findFoodRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.RequestedBy != requesterID {
			return apperrors.WithMessage(apperrors.ErrForbidden, "only the requester can withdraw this request")
		}
		if req.Status != models.FoodRequestPending {
			return apperrors.WithMessage(apperrors.ErrForbidden, "only pending requests can be withdrawn")
		}

		result := tx.Where("id = ? AND requested_by = ? AND status = ?", req.ID, requesterID, models.FoodRequestPending).
			Delete(&models.FoodRequest{})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.WithMessage(apperrors.ErrForbidden, "only pending requests can be withdrawn")
		}
		req.DeletedAt = gorm.DeletedAt{Time: s.now(), Valid: true}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      requesterID,
			Action:       models.AuditActionWithdraw,
			ResourceType: resourceFoodRequests,
			ResourceID:   req.ID,
			Changes:      models.Diff(req.Snapshot(), nil),
			Description:  "Withdrew food request " + truncate(req.NameAndDescription, 80),
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetFoodRequestByID retrieves a food request.
func (s *foodRequestService) GetFoodRequestByID(requestID string) (*models.FoodRequest, error) {
	return findFoodRequest(s.db, requestID)
}

// ListFoodRequests retrieves a filtered, paginated page of requests, newest first.
func (s *foodRequestService) ListFoodRequests(page pagination.PageRequest, filter FoodRequestFilter) (*pagination.PageResponse[models.FoodRequest], error) {
	base := s.db.Model(&models.FoodRequest{})
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.RequestedBy != nil {
		base = base.Where("requested_by = ?", *filter.RequestedBy)
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := containsPattern(filter.Search)
		base = base.Where("(LOWER(name_and_description) LIKE ? ESCAPE '\\' OR LOWER(alternate_names) LIKE ? ESCAPE '\\')", p, p)
	}

	result, err := pagination.Fetch[models.FoodRequest](base, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// Stats counts requests per status, optionally for one requester.
func (s *foodRequestService) Stats(requesterID *string) (*FoodRequestStats, error) {
	q := s.db.Model(&models.FoodRequest{})
	if requesterID != nil {
		q = q.Where("requested_by = ?", *requesterID)
	}

	var rows []struct {
		Status models.FoodRequestStatus
		Count  int64
	}
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := &FoodRequestStats{}
	for _, r := range rows {
		switch r.Status {
		case models.FoodRequestPending:
			stats.Pending = r.Count
		case models.FoodRequestApproved:
			stats.Approved = r.Count
		case models.FoodRequestRejected:
			stats.Rejected = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

func findFoodRequest(db *gorm.DB, requestID string) (*models.FoodRequest, error) {
	var req models.FoodRequest
	if err := db.Where("id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrFoodRequestNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &req, nil
}
