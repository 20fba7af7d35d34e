package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/models"
	"nutriwatch/internal/uuid"
)

const publishTimeout = 5 * time.Second

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// getActorID returns the id to record as the actor of a mutation. System
// requests authenticated by API key act without an id.
func getActorID(c *gin.Context) (string, error) {
	if c.GetString(middleware.RoleKey) == middleware.RoleSystem {
		return "", nil
	}
	return getUserID(c)
}

// parsePathID reads a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
//
//nolint:unparam // param is intentionally generic for reuse across handlers with different path params
func parsePathID(c *gin.Context, param string) (string, error) {
	id := c.Param(param)
	if !uuid.IsValid(id) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// parseFlexibleTime accepts RFC3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func parseFlexibleTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(models.DateLayout, v)
}

// parseDateRange reads the from_date and to_date query parameters.
func parseDateRange(c *gin.Context) (from, to *time.Time, err error) {
	if v := c.Query("from_date"); v != "" {
		t, parseErr := parseFlexibleTime(v)
		if parseErr != nil {
			return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		from = &t
	}
	if v := c.Query("to_date"); v != "" {
		t, parseErr := parseFlexibleTime(v)
		if parseErr != nil {
			return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		to = &t
	}
	return from, to, nil
}

// optionalQuery returns a pointer to the query value, or nil when it is empty.
func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// publish sends a domain event after the unit of work has committed.
// Failures are logged and counted; they never change the response.
func publish(c *gin.Context, pub events.Publisher, m *metrics.Metrics, event events.Event) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), publishTimeout)
	defer cancel()

	if err := pub.Publish(ctx, event); err != nil {
		logger.Get().Warnw("domain event not published",
			"event_type", event.Type,
			"event_id", event.ID,
			"request_id", middleware.GetRequestID(c),
			"error", err,
		)
		m.ObservePublishFailure(event.Type)
	}
}

// respondWithError records err on the context and stops the chain.
// middleware.ErrorHandler renders it.
func respondWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
