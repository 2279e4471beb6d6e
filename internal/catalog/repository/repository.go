package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderbot_backend/platform/apperr"
)

const productNotFoundMessage = "product not found"

// Repo implements the catalog repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const productColumns = "id, sku, title, category_id, COALESCE(description, ''), stock_qty, price_cents, created_at, updated_at"

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&p.ID, &p.SKU, &p.Title, &p.CategoryID, &p.Description,
		&p.StockQty, &p.PriceCents, &createdAt, &updatedAt,
	); err != nil {
		return Product{}, err
	}
	p.CreatedAt = createdAt.Format(time.RFC3339)
	p.UpdatedAt = updatedAt.Format(time.RFC3339)
	return p, nil
}

// CreateProduct inserts a product. A duplicate SKU maps to a conflict error.
func (r *Repo) CreateProduct(ctx context.Context, params CreateProductParams) (Product, error) {
	query := `
		INSERT INTO products (sku, title, category_id, description, stock_qty, price_cents)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING ` + productColumns

	p, err := scanProduct(r.pool.QueryRow(ctx, query,
		params.SKU, params.Title, params.CategoryID, params.Description,
		params.StockQty, params.PriceCents,
	))
	if err != nil {
		if strings.Contains(err.Error(), "products_sku_key") {
			return Product{}, apperr.Conflict("product with this SKU already exists")
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// UpdateProduct updates the non-nil fields of a product.
func (r *Repo) UpdateProduct(ctx context.Context, params UpdateProductParams) (Product, error) {
	query := `
		UPDATE products
		SET title = COALESCE($2, title),
			category_id = COALESCE($3, category_id),
			description = COALESCE($4, description),
			stock_qty = COALESCE($5, stock_qty),
			price_cents = COALESCE($6, price_cents),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	p, err := scanProduct(r.pool.QueryRow(ctx, query,
		params.ID, params.Title, params.CategoryID, params.Description,
		params.StockQty, params.PriceCents,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, apperr.NotFound(productNotFoundMessage)
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a product.
func (r *Repo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(productNotFoundMessage)
	}
	return nil
}

// GetProductByID retrieves one product.
func (r *Repo) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, apperr.NotFound(productNotFoundMessage)
		}
		return Product{}, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// ListProducts lists products with filters and pagination.
func (r *Repo) ListProducts(ctx context.Context, params ListProductsParams) ([]Product, int, error) {
	whereClauses := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(title ILIKE $%d OR sku ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("category_id = $%d", argIdx))
		args = append(args, *params.CategoryID)
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	sortColumn := "title"
	switch params.SortBy {
	case "sku":
		sortColumn = "sku"
	case "priceCents":
		sortColumn = "price_cents"
	case "stockQty":
		sortColumn = "stock_qty"
	case "createdAt":
		sortColumn = "created_at"
	}
	sortOrder := "ASC"
	if params.SortOrder == "desc" {
		sortOrder = "DESC"
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, sortColumn, sortOrder, argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// SearchProducts returns a short prefix-match list for autocomplete.
func (r *Repo) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	sql := `
		SELECT ` + productColumns + `
		FROM products
		WHERE title ILIKE $1 OR sku ILIKE $1
		ORDER BY title
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProductBySKU inserts or refreshes a product keyed by SKU. Used by
// CSV import and ERP sync; reports whether a new row was created.
func (r *Repo) UpsertProductBySKU(ctx context.Context, params UpsertProductParams) (bool, error) {
	query := `
		INSERT INTO products (sku, title, price_cents, stock_qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE
		SET title = EXCLUDED.title,
			price_cents = EXCLUDED.price_cents,
			stock_qty = EXCLUDED.stock_qty,
			updated_at = now()
		RETURNING (xmax = 0)`

	var created bool
	if err := r.pool.QueryRow(ctx, query,
		params.SKU, params.Title, params.PriceCents, params.StockQty,
	).Scan(&created); err != nil {
		return false, fmt.Errorf("upsert product %s: %w", params.SKU, err)
	}
	return created, nil
}

// Snapshot returns all products in a stable order for matching.
func (r *Repo) Snapshot(ctx context.Context) ([]SnapshotItem, error) {
	query := `SELECT id, sku, title, price_cents, stock_qty FROM products ORDER BY title, sku`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog snapshot: %w", err)
	}
	defer rows.Close()

	items := []SnapshotItem{}
	for rows.Next() {
		var item SnapshotItem
		if err := rows.Scan(&item.ID, &item.SKU, &item.Title, &item.PriceCents, &item.StockQty); err != nil {
			return nil, fmt.Errorf("scan snapshot item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateCategory inserts a category node.
func (r *Repo) CreateCategory(ctx context.Context, parentID *uuid.UUID, title string, position int) (Category, error) {
	query := `
		INSERT INTO categories (parent_id, title, position)
		VALUES ($1, $2, $3)
		RETURNING id, parent_id, title, position`

	var cat Category
	if err := r.pool.QueryRow(ctx, query, parentID, title, position).Scan(
		&cat.ID, &cat.ParentID, &cat.Title, &cat.Position,
	); err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// ListCategories returns the children of parentID; nil lists root categories.
func (r *Repo) ListCategories(ctx context.Context, parentID *uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, parent_id, title, position
		FROM categories
		WHERE ($1::uuid IS NULL AND parent_id IS NULL) OR parent_id = $1
		ORDER BY position, title`

	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.ParentID, &cat.Title, &cat.Position); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category; children are detached by the FK.
func (r *Repo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("category not found")
	}
	return nil
}
