package resolver

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"
)

// Module is the resolver bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule wires the source chain in priority order. Providers without
// credentials stay in the chain but report Configured() false and are
// skipped at resolve time.
func NewModule(cfg config.ResolverConfig, pool *pgxpool.Pool, rdb *redis.Client, catalog CatalogReader, val *validator.Validator, log *logger.Logger) *Module {
	tokens := NewTokenCache(rdb, log)

	sources := []Source{
		NewProviderClient(cfg.GetPrimaryProvider(), tokens, log),
		NewProviderClient(cfg.GetSecondaryProvider(), tokens, log),
		NewLocalParser(),
	}

	var logs LogStore
	if pool != nil {
		logs = NewRepository(pool)
	}

	svc := NewService(sources, catalog, logs, rdb, cfg.GetSimilarityThreshold(), cfg.GetParseCacheTTL(), log)
	h := NewHandler(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string { return "resolver" }

// Service exposes the resolver to collaborating modules (bot, orders).
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts the preview endpoint for authenticated staff.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/resolve", m.handler.Resolve)
}

var _ apphttp.Module = (*Module)(nil)
