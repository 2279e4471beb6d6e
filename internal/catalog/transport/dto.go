// Package transport defines request and response DTOs for the catalog API.
package transport

import (
	"github.com/google/uuid"

	"orderbot_backend/internal/catalog/repository"
)

// CreateProductRequest is the payload for product creation.
type CreateProductRequest struct {
	SKU         string     `json:"sku" validate:"required,max=64"`
	Title       string     `json:"title" validate:"required,max=500"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Description string     `json:"description,omitempty" validate:"max=4000"`
	StockQty    int        `json:"stockQty" validate:"min=0"`
	PriceCents  int64      `json:"priceCents" validate:"min=0"`
}

// UpdateProductRequest is the payload for product update; nil fields keep
// their current value.
type UpdateProductRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	StockQty    *int       `json:"stockQty,omitempty" validate:"omitempty,min=0"`
	PriceCents  *int64     `json:"priceCents,omitempty" validate:"omitempty,min=0"`
}

// CreateCategoryRequest is the payload for category creation.
type CreateCategoryRequest struct {
	ParentID *uuid.UUID `json:"parentId,omitempty"`
	Title    string     `json:"title" validate:"required,max=200"`
	Position int        `json:"position" validate:"min=0"`
}

// ListProductsResponse is the paginated product listing.
type ListProductsResponse struct {
	Items []repository.Product `json:"items"`
	Total int                  `json:"total"`
}
