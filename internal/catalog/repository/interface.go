// Package repository provides data access for the catalog module.
package repository

import (
	"context"

	"github.com/google/uuid"
)

// Product is a sellable catalog position.
type Product struct {
	ID          uuid.UUID  `json:"id"`
	SKU         string     `json:"sku"`
	Title       string     `json:"title"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Description string     `json:"description,omitempty"`
	StockQty    int        `json:"stockQty"`
	PriceCents  int64      `json:"priceCents"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// Category is a node in the catalog tree.
type Category struct {
	ID       uuid.UUID  `json:"id"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
	Title    string     `json:"title"`
	Position int        `json:"position"`
}

// CreateProductParams holds fields for product creation.
type CreateProductParams struct {
	SKU         string
	Title       string
	CategoryID  *uuid.UUID
	Description string
	StockQty    int
	PriceCents  int64
}

// UpdateProductParams holds optional fields for product update.
// Nil fields are left unchanged.
type UpdateProductParams struct {
	ID          uuid.UUID
	Title       *string
	CategoryID  *uuid.UUID
	Description *string
	StockQty    *int
	PriceCents  *int64
}

// UpsertProductParams holds fields for SKU-keyed upsert (CSV import, ERP sync).
type UpsertProductParams struct {
	SKU        string
	Title      string
	PriceCents int64
	StockQty   int
}

// ListProductsParams holds filters and pagination for product listing.
type ListProductsParams struct {
	Search     string
	CategoryID *uuid.UUID
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// SnapshotItem is the minimal product projection used for order matching.
type SnapshotItem struct {
	ID         uuid.UUID
	SKU        string
	Title      string
	PriceCents int64
	StockQty   int
}

// Repository defines catalog data access.
type Repository interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (Product, error)
	UpdateProduct(ctx context.Context, params UpdateProductParams) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProductByID(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]Product, int, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)
	UpsertProductBySKU(ctx context.Context, params UpsertProductParams) (created bool, err error)
	Snapshot(ctx context.Context) ([]SnapshotItem, error)

	CreateCategory(ctx context.Context, parentID *uuid.UUID, title string, position int) (Category, error)
	ListCategories(ctx context.Context, parentID *uuid.UUID) ([]Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}
