package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists resolution audit records.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Record(ctx context.Context, entry LogEntry) error {
	var userID *uuid.UUID
	if entry.UserID != uuid.Nil {
		userID = &entry.UserID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO resolution_logs (user_id, raw_text, source, resolved_count, unresolved_count)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, entry.RawText, entry.Source, entry.ResolvedCount, entry.UnresolvedCount)
	if err != nil {
		return fmt.Errorf("insert resolution log: %w", err)
	}
	return nil
}

var _ LogStore = (*Repository)(nil)
