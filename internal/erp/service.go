// Package erp synchronizes the product catalog with the external ERP,
// both by pulling on a schedule and by accepting pushed snapshots over a
// token-guarded webhook.
package erp

import (
	"context"

	"orderbot_backend/internal/catalog/repository"
	"orderbot_backend/platform/logger"
)

// Sync directions reported in audit events and logs.
const (
	SourcePull = "erp_pull"
	SourcePush = "erp_push"
)

// CatalogWriter is the slice of the catalog service the sync needs.
type CatalogWriter interface {
	UpsertBySKU(ctx context.Context, params repository.UpsertProductParams) (bool, error)
	PublishImported(ctx context.Context, source string, upserted, skipped int)
}

// Service applies ERP catalog snapshots to the local catalog.
type Service struct {
	client  *Client
	catalog CatalogWriter
	log     *logger.Logger
}

// NewService creates the ERP sync service. client may be nil when pull
// sync is not configured; pushes still work.
func NewService(client *Client, catalog CatalogWriter, log *logger.Logger) *Service {
	return &Service{client: client, catalog: catalog, log: log}
}

// PullSync fetches the catalog from the ERP and upserts it locally.
func (s *Service) PullSync(ctx context.Context) (upserted, skipped int, err error) {
	if s.client == nil {
		s.log.Info("erp pull skipped, no base url configured")
		return 0, 0, nil
	}

	items, err := s.client.FetchCatalog(ctx)
	if err != nil {
		s.log.SyncResult(SourcePull, 0, 0, err)
		return 0, 0, err
	}

	return s.Apply(ctx, SourcePull, items)
}

// Apply upserts a batch of normalized items. Individual failures are
// counted and skipped, never fatal, so one bad row cannot sink a sync.
func (s *Service) Apply(ctx context.Context, source string, items []Item) (upserted, skipped int, err error) {
	for _, item := range items {
		if item.Title == "" || item.SKU == "" {
			skipped++
			continue
		}

		_, upsertErr := s.catalog.UpsertBySKU(ctx, repository.UpsertProductParams{
			SKU:        item.SKU,
			Title:      item.Title,
			PriceCents: item.PriceCents,
			StockQty:   item.StockQty,
		})
		if upsertErr != nil {
			s.log.DatabaseError("erp upsert product", upsertErr)
			skipped++
			continue
		}
		upserted++
	}

	s.log.SyncResult(source, upserted, skipped, nil)
	if upserted > 0 || skipped > 0 {
		s.catalog.PublishImported(ctx, source, upserted, skipped)
	}
	return upserted, skipped, nil
}
