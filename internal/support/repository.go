// Package support handles customer question threads: a customer opens a
// thread from the bot, staff answer through the admin API.
package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderbot_backend/platform/apperr"
)

// Thread statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Thread is one customer question with its conversation.
type Thread struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Messages  []Message  `json:"messages,omitempty"`
	CreatedAt string     `json:"createdAt"`
	ClosedAt  string     `json:"closedAt,omitempty"`
}

// Message is one entry in a thread.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	ThreadID   uuid.UUID  `json:"threadId"`
	AuthorID   *uuid.UUID `json:"authorId,omitempty"`
	AuthorName string     `json:"authorName"`
	Body       string     `json:"body"`
	CreatedAt  string     `json:"createdAt"`
}

// Repository defines thread data access.
type Repository interface {
	CreateThread(ctx context.Context, userID *uuid.UUID, title string) (Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (Thread, error)
	ListThreads(ctx context.Context, status string, limit, offset int) ([]Thread, int, error)
	AddMessage(ctx context.Context, threadID uuid.UUID, authorID *uuid.UUID, authorName, body string) (Message, error)
	CloseThread(ctx context.Context, id uuid.UUID) error
	// LatestOpenThreadForUser finds the user's current open thread so bot
	// replies land in the right conversation.
	LatestOpenThreadForUser(ctx context.Context, userID uuid.UUID) (Thread, error)
}

// Repo implements Repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates the support repository.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func (r *Repo) CreateThread(ctx context.Context, userID *uuid.UUID, title string) (Thread, error) {
	var t Thread
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO threads (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, status, created_at
	`, userID, title).Scan(&t.ID, &t.UserID, &t.Title, &t.Status, &createdAt)
	if err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	t.CreatedAt = createdAt.Format(time.RFC3339)
	return t, nil
}

func (r *Repo) GetThread(ctx context.Context, id uuid.UUID) (Thread, error) {
	var t Thread
	var createdAt time.Time
	var closedAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, status, created_at, closed_at
		FROM threads WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Title, &t.Status, &createdAt, &closedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Thread{}, apperr.NotFound("thread not found")
		}
		return Thread{}, fmt.Errorf("get thread: %w", err)
	}
	t.CreatedAt = createdAt.Format(time.RFC3339)
	if closedAt != nil {
		t.ClosedAt = closedAt.Format(time.RFC3339)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, author_user_id, author_name, body, created_at
		FROM thread_messages
		WHERE thread_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return Thread{}, fmt.Errorf("load thread messages: %w", err)
	}
	defer rows.Close()

	t.Messages = []Message{}
	for rows.Next() {
		var m Message
		var msgCreatedAt time.Time
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.AuthorID, &m.AuthorName, &m.Body, &msgCreatedAt); err != nil {
			return Thread{}, fmt.Errorf("scan thread message: %w", err)
		}
		m.CreatedAt = msgCreatedAt.Format(time.RFC3339)
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

func (r *Repo) ListThreads(ctx context.Context, status string, limit, offset int) ([]Thread, int, error) {
	where := "TRUE"
	args := []interface{}{}
	argIdx := 1
	if status != "" {
		where = fmt.Sprintf("status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM threads WHERE %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, title, status, created_at, closed_at
		FROM threads WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := []Thread{}
	for rows.Next() {
		var t Thread
		var createdAt time.Time
		var closedAt *time.Time
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Status, &createdAt, &closedAt); err != nil {
			return nil, 0, fmt.Errorf("scan thread: %w", err)
		}
		t.CreatedAt = createdAt.Format(time.RFC3339)
		if closedAt != nil {
			t.ClosedAt = closedAt.Format(time.RFC3339)
		}
		threads = append(threads, t)
	}
	return threads, total, rows.Err()
}

func (r *Repo) AddMessage(ctx context.Context, threadID uuid.UUID, authorID *uuid.UUID, authorName, body string) (Message, error) {
	var m Message
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO thread_messages (thread_id, author_user_id, author_name, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, thread_id, author_user_id, author_name, body, created_at
	`, threadID, authorID, authorName, body).Scan(
		&m.ID, &m.ThreadID, &m.AuthorID, &m.AuthorName, &m.Body, &createdAt)
	if err != nil {
		return Message{}, fmt.Errorf("add thread message: %w", err)
	}
	m.CreatedAt = createdAt.Format(time.RFC3339)
	return m, nil
}

func (r *Repo) CloseThread(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE threads SET status = $2, closed_at = now()
		WHERE id = $1 AND status = $3
	`, id, StatusClosed, StatusOpen)
	if err != nil {
		return fmt.Errorf("close thread: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("open thread not found")
	}
	return nil
}

func (r *Repo) LatestOpenThreadForUser(ctx context.Context, userID uuid.UUID) (Thread, error) {
	var t Thread
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, status, created_at
		FROM threads
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, StatusOpen).Scan(&t.ID, &t.UserID, &t.Title, &t.Status, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Thread{}, apperr.NotFound("no open thread")
		}
		return Thread{}, fmt.Errorf("latest open thread: %w", err)
	}
	t.CreatedAt = createdAt.Format(time.RFC3339)
	return t, nil
}
