// Package repository provides data access for users.
package repository

import (
	"context"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleClient  = "client"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// User is a registered customer or staff member. Customers arriving through
// the bot are keyed by ChatID and may have no password.
type User struct {
	ID           uuid.UUID `json:"id"`
	ChatID       int64     `json:"chatId,omitempty"`
	FIO          string    `json:"fio"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    string    `json:"createdAt"`
}

// CreateUserParams holds fields for user creation.
type CreateUserParams struct {
	ChatID       int64
	FIO          string
	Phone        string
	Email        string
	PasswordHash string
	Address      string
	Role         string
}

// Repository defines user data access.
type Repository interface {
	Create(ctx context.Context, params CreateUserParams) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByPhone(ctx context.Context, phone string) (User, error)
	GetByChatID(ctx context.Context, chatID int64) (User, error)
	List(ctx context.Context, role string, limit, offset int) ([]User, int, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
}
