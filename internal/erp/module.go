package erp

import (
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
)

// Module is the ERP integration module implementing http.Module.
type Module struct {
	handler      *Handler
	service      *Service
	webhookToken string
}

// NewModule creates and initializes the ERP module. enqueuer may be nil
// when no task queue is available.
func NewModule(cfg config.ERPConfig, catalog CatalogWriter, enqueuer SyncEnqueuer, log *logger.Logger) *Module {
	svc := NewService(NewClient(cfg, log), catalog, log)

	return &Module{
		handler:      NewHandler(svc, enqueuer),
		service:      svc,
		webhookToken: cfg.GetERPWebhookToken(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "erp" }

// Service returns the sync service for external use (scheduler tasks).
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts the push webhook on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	erpGroup := ctx.V1.Group("/erp")
	erpGroup.Use(TokenAuthMiddleware(m.webhookToken))
	erpGroup.POST("/catalog", m.handler.PushCatalog)

	ctx.Admin.POST("/erp/sync", m.handler.TriggerSync)
}

var _ apphttp.Module = (*Module)(nil)
