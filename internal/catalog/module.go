// Package catalog provides the catalog bounded context module.
package catalog

import (
	"orderbot_backend/internal/catalog/handler"
	"orderbot_backend/internal/catalog/repository"
	"orderbot_backend/internal/catalog/service"
	"orderbot_backend/internal/events"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/internal/storage"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the catalog module. uploader may be nil
// when object storage is not configured.
func NewModule(pool *pgxpool.Pool, uploader storage.Uploader, archiveBucket string, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, uploader, archiveBucket, bus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Service returns the service layer for external use (resolver snapshot,
// ERP sync upserts).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/catalog/products", m.handler.ListProducts)
	ctx.Protected.GET("/catalog/products/search", m.handler.SearchProducts)
	ctx.Protected.GET("/catalog/products/:id", m.handler.GetProductByID)
	ctx.Protected.GET("/catalog/categories", m.handler.ListCategories)

	adminGroup := ctx.Admin.Group("/catalog")
	adminGroup.POST("/products", m.handler.CreateProduct)
	adminGroup.PUT("/products/:id", m.handler.UpdateProduct)
	adminGroup.DELETE("/products/:id", m.handler.DeleteProduct)
	adminGroup.POST("/import", m.handler.ImportCSV)
	adminGroup.POST("/categories", m.handler.CreateCategory)
	adminGroup.DELETE("/categories/:id", m.handler.DeleteCategory)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
