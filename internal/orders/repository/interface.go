// Package repository provides data access for the orders module.
package repository

import (
	"context"

	"github.com/google/uuid"
)

// Order statuses. Transitions are validated in the service layer.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusAssembling = "assembling"
	StatusShipped    = "shipped"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Order is a customer order with its line items.
type Order struct {
	ID         uuid.UUID        `json:"id"`
	UserID     *uuid.UUID       `json:"userId,omitempty"`
	Status     string           `json:"status"`
	Note       string           `json:"note,omitempty"`
	TotalCents int64            `json:"totalCents"`
	Items      []OrderItem      `json:"items"`
	Unresolved []UnresolvedLine `json:"unresolved"`
	CreatedAt  string           `json:"createdAt"`
	UpdatedAt  string           `json:"updatedAt"`
}

// OrderItem is one resolved position with its price at order time.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"productId"`
	Title      string    `json:"title"`
	SKU        string    `json:"sku"`
	Qty        int       `json:"qty"`
	PriceCents int64     `json:"priceCents"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// UnresolvedLine is an order line kept for manual triage.
type UnresolvedLine struct {
	ID   uuid.UUID `json:"id"`
	Line string    `json:"line"`
	Qty  int       `json:"qty"`
}

// CreateItemParams is one resolved line going into a new order.
type CreateItemParams struct {
	ProductID  uuid.UUID
	Qty        int
	PriceCents int64
	Source     string
	Confidence float64
}

// CreateUnresolvedParams is one unmatched line going into a new order.
type CreateUnresolvedParams struct {
	Line string
	Qty  int
}

// CreateOrderParams holds everything persisted for a new order.
type CreateOrderParams struct {
	UserID     *uuid.UUID
	Note       string
	Items      []CreateItemParams
	Unresolved []CreateUnresolvedParams
}

// ListOrdersParams holds filters and pagination for order listing.
type ListOrdersParams struct {
	Status string
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// StatusChange is the outcome of an applied status transition. ChatID is
// the bot chat of the order's user, 0 when the order has none.
type StatusChange struct {
	Previous string
	ChatID   int64
}

// Repository defines order data access.
type Repository interface {
	// Create persists the order with its items and unresolved lines in one
	// transaction.
	Create(ctx context.Context, params CreateOrderParams) (Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (Order, error)
	List(ctx context.Context, params ListOrdersParams) ([]Order, int, error)
	// UpdateStatus moves an order to the given status if its current status
	// is in allowedFrom, atomically against concurrent transitions, and
	// reports the previous status and the user's bot chat.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, allowedFrom []string) (StatusChange, error)
}
