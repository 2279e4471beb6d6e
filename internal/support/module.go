package support

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"orderbot_backend/internal/events"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"
)

// Module is the support bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the support module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(NewRepo(pool), bus, log)
	h := NewHandler(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "support" }

// Service returns the service layer for external use (bot questions).
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts support routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/support/threads", m.handler.OpenQuestion)

	adminGroup := ctx.Admin.Group("/support")
	adminGroup.GET("/threads", m.handler.ListThreads)
	adminGroup.GET("/threads/:id", m.handler.GetThread)
	adminGroup.POST("/threads/:id/messages", m.handler.Reply)
	adminGroup.PATCH("/threads/:id/close", m.handler.CloseThread)
}

var _ apphttp.Module = (*Module)(nil)
