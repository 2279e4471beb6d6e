// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"orderbot_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Orders Domain Events
// =============================================================================

// OrderCreated is published when a customer order is persisted.
type OrderCreated struct {
	BaseEvent
	OrderID         uuid.UUID `json:"orderId"`
	UserID          uuid.UUID `json:"userId"`
	ChatID          int64     `json:"chatId,omitempty"`
	ItemCount       int       `json:"itemCount"`
	UnresolvedCount int       `json:"unresolvedCount"`
	TotalCents      int64     `json:"totalCents"`
}

func (e OrderCreated) EventName() string { return "orders.order.created" }

// OrderStatusChanged is published when staff move an order through the
// status workflow.
type OrderStatusChanged struct {
	BaseEvent
	OrderID uuid.UUID `json:"orderId"`
	ChatID  int64     `json:"chatId,omitempty"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

func (e OrderStatusChanged) EventName() string { return "orders.order.status_changed" }

// =============================================================================
// Catalog Domain Events
// =============================================================================

// CatalogImported is published after a CSV import or ERP sync upserts
// catalog items.
type CatalogImported struct {
	BaseEvent
	Source   string `json:"source"` // "csv" | "erp_pull" | "erp_push"
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
}

func (e CatalogImported) EventName() string { return "catalog.imported" }

// =============================================================================
// Support Domain Events
// =============================================================================

// QuestionAsked is published when a customer opens a support thread.
type QuestionAsked struct {
	BaseEvent
	ThreadID uuid.UUID `json:"threadId"`
	UserID   uuid.UUID `json:"userId"`
	ChatID   int64     `json:"chatId,omitempty"`
	Title    string    `json:"title"`
}

func (e QuestionAsked) EventName() string { return "support.question.asked" }
