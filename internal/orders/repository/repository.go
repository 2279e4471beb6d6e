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

const orderNotFoundMessage = "order not found"

// Repo implements the orders repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new orders repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Create persists an order with its items and unresolved lines atomically.
func (r *Repo) Create(ctx context.Context, params CreateOrderParams) (Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID uuid.UUID
	var createdAt, updatedAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, note)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at, updated_at
	`, params.UserID, params.Note).Scan(&orderID, &createdAt, &updatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range params.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, price_cents, source, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, item.ProductID, item.Qty, item.PriceCents, item.Source, item.Confidence)
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, line := range params.Unresolved {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_unresolved_lines (order_id, line, qty)
			VALUES ($1, $2, $3)
		`, orderID, line.Line, line.Qty)
		if err != nil {
			return Order{}, fmt.Errorf("insert unresolved line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return r.GetByID(ctx, orderID)
}

// GetByID loads an order with items and unresolved lines.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	var order Order
	var createdAt, updatedAt time.Time
	var note *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, note, created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.Status, &note, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.NotFound(orderNotFoundMessage)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if note != nil {
		order.Note = *note
	}
	order.CreatedAt = createdAt.Format(time.RFC3339)
	order.UpdatedAt = updatedAt.Format(time.RFC3339)

	if err := r.loadLines(ctx, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *Repo) loadLines(ctx context.Context, order *Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.product_id, p.title, p.sku, i.qty, i.price_cents, i.source, COALESCE(i.confidence, 0)
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY p.title
	`, order.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	order.Items = []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Title, &item.SKU,
			&item.Qty, &item.PriceCents, &item.Source, &item.Confidence); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.TotalCents += item.PriceCents * int64(item.Qty)
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	lineRows, err := r.pool.Query(ctx, `
		SELECT id, line, qty FROM order_unresolved_lines WHERE order_id = $1 ORDER BY line
	`, order.ID)
	if err != nil {
		return fmt.Errorf("load unresolved lines: %w", err)
	}
	defer lineRows.Close()

	order.Unresolved = []UnresolvedLine{}
	for lineRows.Next() {
		var line UnresolvedLine
		if err := lineRows.Scan(&line.ID, &line.Line, &line.Qty); err != nil {
			return fmt.Errorf("scan unresolved line: %w", err)
		}
		order.Unresolved = append(order.Unresolved, line)
	}
	return lineRows.Err()
}

// List returns orders without line detail, newest first.
func (r *Repo) List(ctx context.Context, params ListOrdersParams) ([]Order, int, error) {
	whereClauses := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if params.Status != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}
	if params.UserID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}
	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.user_id, o.status, COALESCE(o.note, ''), o.created_at, o.updated_at,
			COALESCE((SELECT SUM(i.qty * i.price_cents) FROM order_items i WHERE i.order_id = o.id), 0)
		FROM orders o
		WHERE %s
		ORDER BY o.created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var order Order
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.Note,
			&createdAt, &updatedAt, &order.TotalCents); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		order.CreatedAt = createdAt.Format(time.RFC3339)
		order.UpdatedAt = updatedAt.Format(time.RFC3339)
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

// UpdateStatus applies the transition with the workflow guard inside the
// statement: the row is locked and the previous status re-checked against
// allowedFrom, so two concurrent transitions cannot both pass validation
// on the same stale state.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, allowedFrom []string) (StatusChange, error) {
	var change StatusChange
	err := r.pool.QueryRow(ctx, `
		UPDATE orders o
		SET status = $2, updated_at = now()
		FROM (SELECT id, status, user_id FROM orders WHERE id = $1 FOR UPDATE) prev
		WHERE o.id = prev.id AND prev.status = ANY($3)
		RETURNING prev.status,
			COALESCE((SELECT u.chat_id FROM users u WHERE u.id = prev.user_id), 0)
	`, id, status, allowedFrom).Scan(&change.Previous, &change.ChatID)
	if err == nil {
		return change, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return StatusChange{}, fmt.Errorf("update order status: %w", err)
	}

	// No row updated: either the order is gone or its current status is
	// outside allowedFrom.
	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusChange{}, apperr.NotFound(orderNotFoundMessage)
	}
	if err != nil {
		return StatusChange{}, fmt.Errorf("check order status: %w", err)
	}
	return StatusChange{}, apperr.Validation(fmt.Sprintf("cannot move order from %s to %s", current, status))
}
