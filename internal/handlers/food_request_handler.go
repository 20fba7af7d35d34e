package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutriwatch/internal/cache"
	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
	"nutriwatch/internal/uuid"
)

// Review decisions used as metric labels.
const (
	decisionApprove = "approve"
	decisionReject  = "reject"
)

// FoodRequestHandler handles the food request moderation workflow.
type FoodRequestHandler struct {
	requestService services.FoodRequestServicer
	locker         cache.Locker
	guardTTL       time.Duration
	publisher      events.Publisher
	metrics        *metrics.Metrics
}

// NewFoodRequestHandler creates a new FoodRequestHandler. guardTTL bounds how
// long an identical submission from the same requester is rejected while the
// first one is in flight.
func NewFoodRequestHandler(requestService services.FoodRequestServicer, locker cache.Locker, guardTTL time.Duration, publisher events.Publisher, m *metrics.Metrics) *FoodRequestHandler {
	return &FoodRequestHandler{
		requestService: requestService,
		locker:         locker,
		guardTTL:       guardTTL,
		publisher:      publisher,
		metrics:        m,
	}
}

// ReviewRequest carries the reviewer's notes.
type ReviewRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=5000"`
}

// BatchReviewRequest represents a batch approval or rejection.
type BatchReviewRequest struct {
	IDs        []string `json:"ids" binding:"required,min=1,max=100,dive,uuid"`
	AdminNotes string   `json:"admin_notes" binding:"max=5000"`
}

// ApproveResponse is returned when a request is approved.
type ApproveResponse struct {
	Food    *models.Food        `json:"food"`
	Request *models.FoodRequest `json:"food_request"`
}

// Submit handles a nutritionist proposing a new food
// @Summary     Submit a food request
// @Tags        food-requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body FoodCandidateRequest true "Candidate food"
// @Success     201 {object} models.FoodRequest "Pending request"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate candidate or submission in flight"
// @Router      /food-requests [post]
func (h *FoodRequestHandler) Submit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req FoodCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ctx := c.Request.Context()
	key := cache.SubmissionKey(userID, req.NameAndDescription)
	token, acquired, err := h.locker.Acquire(ctx, key, h.guardTTL)
	switch {
	case err != nil:
		logger.Get().Warnw("submission guard unavailable, continuing without it",
			"requester_id", userID,
			"error", err,
		)
	case !acquired:
		h.metrics.ObserveSubmission(apperrors.ErrSubmissionInFlight)
		respondWithError(c, apperrors.ErrSubmissionInFlight)
		return
	default:
		defer func() {
			if err := h.locker.Release(ctx, key, token); err != nil {
				logger.Get().Warnw("failed to release submission guard", "key", key, "error", err)
			}
		}()
	}

	request, err := h.requestService.Submit(userID, req.candidate())
	h.metrics.ObserveSubmission(err)
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeFoodRequestSubmitted, request.ID,
		events.ResourceRef{ID: request.ID, ActorID: userID, Name: request.NameAndDescription}))

	c.JSON(http.StatusCreated, gin.H{"food_request": request})
}

// Approve handles approving a pending request
// @Summary     Approve a food request
// @Description Marks the request approved and creates the food in one transaction.
// @Tags        food-requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true  "Request ID"
// @Param       request body ReviewRequest false "Notes"
// @Success     200 {object} ApproveResponse "Created food and approved request"
// @Failure     409 {object} ErrorResponse "Already processed"
// @Router      /food-requests/{id}/approve [post]
func (h *FoodRequestHandler) Approve(c *gin.Context) {
	reviewerID, requestID, req, ok := h.bindReview(c)
	if !ok {
		return
	}

	food, request, err := h.requestService.Approve(requestID, reviewerID, req.AdminNotes)
	h.metrics.ObserveReview(decisionApprove, err)
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeFoodRequestReviewed, request.ID, events.FoodRequestReviewed{
		RequestID:  request.ID,
		Status:     string(request.Status),
		ReviewerID: reviewerID,
		FoodID:     food.ID,
	}))

	c.JSON(http.StatusOK, ApproveResponse{Food: food, Request: request})
}

// Reject handles rejecting a pending request
// @Summary     Reject a food request
// @Tags        food-requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Request ID"
// @Param       request body ReviewRequest true "Notes (required)"
// @Success     200 {object} models.FoodRequest "Rejected request"
// @Failure     400 {object} ErrorResponse "Notes missing"
// @Failure     409 {object} ErrorResponse "Already processed"
// @Router      /food-requests/{id}/reject [post]
func (h *FoodRequestHandler) Reject(c *gin.Context) {
	reviewerID, requestID, req, ok := h.bindReview(c)
	if !ok {
		return
	}

	request, err := h.requestService.Reject(requestID, reviewerID, req.AdminNotes)
	h.metrics.ObserveReview(decisionReject, err)
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeFoodRequestReviewed, request.ID, events.FoodRequestReviewed{
		RequestID:  request.ID,
		Status:     string(request.Status),
		ReviewerID: reviewerID,
	}))

	c.JSON(http.StatusOK, gin.H{"food_request": request})
}

func (h *FoodRequestHandler) bindReview(c *gin.Context) (reviewerID, requestID string, req ReviewRequest, ok bool) {
	reviewerID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return "", "", req, false
	}

	requestID, err = parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return "", "", req, false
	}

	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return "", "", req, false
		}
	}
	return reviewerID, requestID, req, true
}

// BatchApprove handles approving several requests
// @Summary     Approve food requests in batch
// @Description Each request is approved in its own transaction; already processed ones are skipped.
// @Tags        food-requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BatchReviewRequest true "Request ids and notes"
// @Success     200 {object} services.BatchResult "Per-request outcome"
// @Router      /food-requests/batch-approve [post]
func (h *FoodRequestHandler) BatchApprove(c *gin.Context) {
	h.batch(c, decisionApprove, models.FoodRequestApproved, h.requestService.BatchApprove)
}

// BatchReject handles rejecting several requests
// @Summary     Reject food requests in batch
// @Tags        food-requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BatchReviewRequest true "Request ids and notes (required)"
// @Success     200 {object} services.BatchResult "Per-request outcome"
// @Router      /food-requests/batch-reject [post]
func (h *FoodRequestHandler) BatchReject(c *gin.Context) {
	h.batch(c, decisionReject, models.FoodRequestRejected, h.requestService.BatchReject)
}

func (h *FoodRequestHandler) batch(c *gin.Context, decision string, status models.FoodRequestStatus, run func([]string, string, string) (*services.BatchResult, error)) {
	reviewerID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BatchReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := run(req.IDs, reviewerID, req.AdminNotes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	for _, id := range result.Processed {
		h.metrics.ObserveReview(decision, nil)
		publish(c, h.publisher, h.metrics, events.New(events.TypeFoodRequestReviewed, id, events.FoodRequestReviewed{
			RequestID:  id,
			Status:     string(status),
			ReviewerID: reviewerID,
		}))
	}
	for range result.Skipped {
		h.metrics.ObserveReview(decision, apperrors.ErrAlreadyProcessed)
	}
	for _, f := range result.Failed {
		h.metrics.ObserveReview(decision, &apperrors.AppError{Code: f.Code})
	}

	c.JSON(http.StatusOK, result)
}

// Withdraw handles a requester withdrawing their pending request
// @Summary     Withdraw a food request
// @Tags        food-requests
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Produce     json
// @Success     200 {object} models.FoodRequest "Withdrawn request"
// @Failure     403 {object} ErrorResponse "Not the requester or not pending"
// @Router      /food-requests/{id} [delete]
func (h *FoodRequestHandler) Withdraw(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	requestID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	request, err := h.requestService.Withdraw(requestID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeFoodRequestWithdrawn, requestID,
		events.ResourceRef{ID: requestID, ActorID: userID}))

	c.JSON(http.StatusOK, gin.H{"food_request": request})
}

// GetFoodRequestByID handles the retrieval of one request. Nutritionists only
// see their own requests.
// @Summary     Get food request by ID
// @Tags        food-requests
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Success     200 {object} models.FoodRequest "Request"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /food-requests/{id} [get]
func (h *FoodRequestHandler) GetFoodRequestByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	requestID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	request, err := h.requestService.GetFoodRequestByID(requestID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if ownRequestsOnly(c) && request.RequestedBy != userID {
		respondWithError(c, apperrors.ErrFoodRequestNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"food_request": request})
}

type foodRequestQuery struct {
	Status      string `form:"status" binding:"omitempty,food_request_status"`
	RequestedBy string `form:"requested_by" binding:"omitempty,uuid"`
	Search      string `form:"search" binding:"max=200"`
}

// ListFoodRequests handles listing requests, newest first
// @Summary     List food requests
// @Tags        food-requests
// @Produce     json
// @Security    BearerAuth
// @Param       status       query string false "pending, approved or rejected"
// @Param       requested_by query string false "Filter by requester (admins only)"
// @Param       search       query string false "Name search"
// @Success     200 {object} pagination.PageResponse[models.FoodRequest] "Paginated requests"
// @Router      /food-requests [get]
func (h *FoodRequestHandler) ListFoodRequests(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var q foodRequestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.FoodRequestFilter{
		RequestedBy: h.requesterScope(c, userID, q.RequestedBy),
		Search:      q.Search,
	}
	if q.Status != "" {
		s := models.FoodRequestStatus(q.Status)
		filter.Status = &s
	}

	result, err := h.requestService.ListFoodRequests(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats handles counting requests per status
// @Summary     Food request counts
// @Tags        food-requests
// @Produce     json
// @Security    BearerAuth
// @Param       requested_by query string false "Filter by requester (admins only)"
// @Success     200 {object} services.FoodRequestStats "Counts per status"
// @Router      /food-requests/stats [get]
func (h *FoodRequestHandler) Stats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	requestedBy := c.Query("requested_by")
	if requestedBy != "" && !uuid.IsValid(requestedBy) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid requested_by"))
		return
	}

	stats, err := h.requestService.Stats(h.requesterScope(c, userID, requestedBy))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// requesterScope pins nutritionists to their own requests and lets other
// roles filter by any requester.
func (h *FoodRequestHandler) requesterScope(c *gin.Context, userID, requested string) *string {
	if ownRequestsOnly(c) {
		return &userID
	}
	if requested == "" {
		return nil
	}
	return &requested
}

func ownRequestsOnly(c *gin.Context) bool {
	return c.GetString(middleware.RoleKey) == middleware.RoleNutritionist
}
