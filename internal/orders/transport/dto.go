// Package transport defines request and response DTOs for the orders API.
package transport

import "orderbot_backend/internal/orders/repository"

// CreateOrderRequest resolves free text into an order in one step.
type CreateOrderRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// ChangeStatusRequest moves an order through the status workflow.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed assembling shipped completed cancelled"`
}

// ListOrdersResponse is the paginated order listing.
type ListOrdersResponse struct {
	Items []repository.Order `json:"items"`
	Total int                `json:"total"`
}
