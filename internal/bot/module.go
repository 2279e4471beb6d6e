package bot

import (
	"orderbot_backend/internal/events"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
)

// Module is the bot transport module implementing http.Module.
type Module struct {
	handler       *Handler
	webhookSecret string
}

// NewModule creates and initializes the bot module, including event
// subscriptions for chat notifications.
func NewModule(cfg config.BotConfig, res Resolver, orders OrderPlacer, accounts Accounts, questions Questions, catalog CategoryLister, bus events.Bus, log *logger.Logger) *Module {
	client := NewClient(cfg, log)
	svc := NewService(res, orders, accounts, questions, catalog, client, log)

	NewNotifier(client, cfg.GetManagerChatID(), log).Subscribe(bus)

	return &Module{
		handler:       NewHandler(svc, log),
		webhookSecret: cfg.GetBotWebhookSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "bot" }

// RegisterRoutes mounts the webhook on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	botGroup := ctx.V1.Group("/bot")
	botGroup.Use(SecretAuthMiddleware(m.webhookSecret))
	botGroup.POST("/webhook", m.handler.Webhook)
}

var _ apphttp.Module = (*Module)(nil)
