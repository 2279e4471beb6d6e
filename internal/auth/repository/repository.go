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

const userNotFoundMessage = "user not found"

// Repo implements the users repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new users repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const userColumns = "id, COALESCE(chat_id, 0), fio, phone, COALESCE(email, ''), password_hash, COALESCE(address, ''), role, created_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	var createdAt time.Time
	if err := row.Scan(&u.ID, &u.ChatID, &u.FIO, &u.Phone, &u.Email,
		&u.PasswordHash, &u.Address, &u.Role, &createdAt); err != nil {
		return User{}, err
	}
	u.CreatedAt = createdAt.Format(time.RFC3339)
	return u, nil
}

// Create inserts a user. Phone and chat id collisions map to conflicts.
func (r *Repo) Create(ctx context.Context, params CreateUserParams) (User, error) {
	query := `
		INSERT INTO users (chat_id, fio, phone, email, password_hash, address, role)
		VALUES (NULLIF($1, 0), $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7)
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		params.ChatID, params.FIO, params.Phone, params.Email,
		params.PasswordHash, params.Address, params.Role,
	))
	if err != nil {
		if strings.Contains(err.Error(), "users_phone_key") {
			return User{}, apperr.Conflict("user with this phone already exists")
		}
		if strings.Contains(err.Error(), "users_chat_id_key") {
			return User{}, apperr.Conflict("user with this chat already exists")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByPhone(ctx context.Context, phone string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		return User{}, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByChatID(ctx context.Context, chatID int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = $1`, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(userNotFoundMessage)
		}
		return User{}, fmt.Errorf("get user by chat id: %w", err)
	}
	return u, nil
}

// List returns users filtered by role, newest first.
func (r *Repo) List(ctx context.Context, role string, limit, offset int) ([]User, int, error) {
	where := "TRUE"
	args := []interface{}{}
	argIdx := 1
	if role != "" {
		where = fmt.Sprintf("role = $%d", argIdx)
		args = append(args, role)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT %s FROM users WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, userColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *Repo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(userNotFoundMessage)
	}
	return nil
}
