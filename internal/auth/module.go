// Package auth provides the authentication bounded context module.
package auth

import (
	"orderbot_backend/internal/auth/handler"
	"orderbot_backend/internal/auth/repository"
	"orderbot_backend/internal/auth/service"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the service layer for external use (bot user lookup).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
// Credential endpoints sit behind the stricter auth rate limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	authGroup.POST("/sign-in", m.handler.SignIn)
	authGroup.POST("/refresh", m.handler.Refresh)

	ctx.Protected.GET("/auth/me", m.handler.Me)

	ctx.Admin.POST("/users", m.handler.Register)
	ctx.Admin.GET("/users", m.handler.ListUsers)
	ctx.Admin.PATCH("/users/:id/role", m.handler.SetRole)
}

var _ apphttp.Module = (*Module)(nil)
