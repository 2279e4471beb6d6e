// Package transport defines request and response DTOs for the auth API.
package transport

import "orderbot_backend/internal/auth/repository"

// RegisterRequest creates a user account.
type RegisterRequest struct {
	FIO      string `json:"fio" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=client manager admin"`
}

// SignInRequest exchanges credentials for tokens.
type SignInRequest struct {
	Phone    string `json:"phone" validate:"required,max=32"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// SetRoleRequest changes a user's role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=client manager admin"`
}

// ListUsersResponse is the paginated user listing.
type ListUsersResponse struct {
	Items []repository.User `json:"items"`
	Total int               `json:"total"`
}
