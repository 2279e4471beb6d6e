// Package orders provides the orders bounded context module.
package orders

import (
	"orderbot_backend/internal/events"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/internal/orders/handler"
	"orderbot_backend/internal/orders/repository"
	"orderbot_backend/internal/orders/service"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the orders bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the orders module.
func NewModule(pool *pgxpool.Pool, res *resolver.Service, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, res, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "orders"
}

// Service returns the service layer for external use (bot order creation).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts order routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/orders", m.handler.Create)
	ctx.Protected.GET("/orders", m.handler.List)
	ctx.Protected.GET("/orders/:id", m.handler.GetByID)

	ctx.Admin.PATCH("/orders/:id/status", m.handler.ChangeStatus)
}

var _ apphttp.Module = (*Module)(nil)
