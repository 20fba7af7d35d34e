// Package events publishes domain events after a unit of work has committed.
// Publishing is best effort: the database is the source of truth and a lost
// event never rolls anything back.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeItemCreated          = "inventory.item_created"
	TypeItemDeleted          = "inventory.item_deleted"
	TypeStockAdjusted        = "inventory.stock_adjusted"
	TypeFoodRequestSubmitted = "food_request.submitted"
	TypeFoodRequestReviewed  = "food_request.reviewed"
	TypeFoodRequestWithdrawn = "food_request.withdrawn"
	TypeFoodCreated          = "food.created"
)

// Event is the envelope written to the broker. Key orders events that
// concern the same resource onto one partition.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// New builds an event with a fresh id and timestamp.
func New(eventType, key string, payload interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// StockAdjusted is the payload of TypeStockAdjusted.
type StockAdjusted struct {
	ItemID        string  `json:"item_id"`
	TransactionID string  `json:"transaction_id"`
	Direction     string  `json:"direction"`
	Quantity      int64   `json:"quantity"`
	NewQuantity   int64   `json:"new_quantity"`
	ActorID       string  `json:"actor_id,omitempty"`
	PatientID     *string `json:"patient_id,omitempty"`
}

// FoodRequestReviewed is the payload of TypeFoodRequestReviewed.
type FoodRequestReviewed struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	ReviewerID string `json:"reviewer_id"`
	FoodID     string `json:"food_id,omitempty"`
}

// ResourceRef is the payload of events that only name a resource.
type ResourceRef struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Publisher sends domain events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a Publisher that discards events.
func NewNoopPublisher() Publisher { return NoopPublisher{} }

// Publish discards the event.
func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
