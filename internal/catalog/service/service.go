// Package service contains catalog business logic.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"orderbot_backend/internal/catalog/repository"
	"orderbot_backend/internal/events"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/internal/storage"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

// Service provides catalog operations.
type Service struct {
	repo          repository.Repository
	uploader      storage.Uploader
	archiveBucket string
	bus           events.Bus
	log           *logger.Logger
}

// New creates the catalog service. uploader may be nil when object storage
// is not configured; imports then skip archiving.
func New(repo repository.Repository, uploader storage.Uploader, archiveBucket string, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:          repo,
		uploader:      uploader,
		archiveBucket: archiveBucket,
		bus:           bus,
		log:           log,
	}
}

func (s *Service) CreateProduct(ctx context.Context, params repository.CreateProductParams) (repository.Product, error) {
	return s.repo.CreateProduct(ctx, params)
}

func (s *Service) UpdateProduct(ctx context.Context, params repository.UpdateProductParams) (repository.Product, error) {
	return s.repo.UpdateProduct(ctx, params)
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (repository.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, params repository.ListProductsParams) ([]repository.Product, int, error) {
	return s.repo.ListProducts(ctx, params)
}

func (s *Service) SearchProducts(ctx context.Context, query string, limit int) ([]repository.Product, error) {
	return s.repo.SearchProducts(ctx, query, limit)
}

func (s *Service) CreateCategory(ctx context.Context, parentID *uuid.UUID, title string, position int) (repository.Category, error) {
	return s.repo.CreateCategory(ctx, parentID, title, position)
}

func (s *Service) ListCategories(ctx context.Context, parentID *uuid.UUID) ([]repository.Category, error) {
	return s.repo.ListCategories(ctx, parentID)
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCategory(ctx, id)
}

// Snapshot returns the read-only product projection used by the resolver.
func (s *Service) Snapshot(ctx context.Context) ([]resolver.CatalogItem, error) {
	rows, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]resolver.CatalogItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, resolver.CatalogItem{
			ID:         row.ID,
			SKU:        row.SKU,
			Title:      row.Title,
			PriceCents: row.PriceCents,
			StockQty:   row.StockQty,
		})
	}
	return items, nil
}

// UpsertBySKU refreshes one product from an external feed (ERP sync).
func (s *Service) UpsertBySKU(ctx context.Context, params repository.UpsertProductParams) (bool, error) {
	return s.repo.UpsertProductBySKU(ctx, params)
}

// PublishImported announces a completed bulk load on the event bus.
func (s *Service) PublishImported(ctx context.Context, source string, upserted, skipped int) {
	s.bus.Publish(ctx, events.CatalogImported{
		BaseEvent: events.NewBaseEvent(),
		Source:    source,
		Upserted:  upserted,
		Skipped:   skipped,
	})
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Upserted   int    `json:"upserted"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	ArchiveKey string `json:"archiveKey,omitempty"`
}

// ImportCSV loads products from a CSV stream with the header
// sku,title,price,stock. Malformed rows are skipped and counted, never
// fatal. The raw file is archived to object storage when configured.
func (s *Service) ImportCSV(ctx context.Context, fileName string, r io.Reader) (ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import file: %w", err)
	}
	if len(raw) == 0 {
		return ImportResult{}, apperr.BadRequest("import file is empty")
	}

	var result ImportResult

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, apperr.BadRequest("import file is not valid CSV")
	}
	cols := columnIndex(header)
	if _, ok := cols["sku"]; !ok {
		return ImportResult{}, apperr.BadRequest("import file is missing the sku column")
	}
	if _, ok := cols["title"]; !ok {
		return ImportResult{}, apperr.BadRequest("import file is missing the title column")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		params, ok := importRow(cols, record)
		if !ok {
			result.Skipped++
			continue
		}

		created, err := s.repo.UpsertProductBySKU(ctx, params)
		if err != nil {
			s.log.DatabaseError("import_upsert", err)
			result.Skipped++
			continue
		}
		result.Upserted++
		if created {
			result.Created++
		}
	}

	if s.uploader != nil && s.archiveBucket != "" {
		key, err := s.uploader.Upload(ctx, s.archiveBucket, "catalog-imports", fileName, "text/csv",
			bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			s.log.Warn("import_archive_failed", "file", fileName, "error", err.Error())
		} else {
			result.ArchiveKey = key
		}
	}

	s.PublishImported(ctx, "csv", result.Upserted, result.Skipped)
	return result, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func importRow(cols map[string]int, record []string) (repository.UpsertProductParams, bool) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	params := repository.UpsertProductParams{
		SKU:   field("sku"),
		Title: field("title"),
	}
	if params.SKU == "" || params.Title == "" {
		return repository.UpsertProductParams{}, false
	}

	if priceRaw := field("price"); priceRaw != "" {
		cents, err := parsePriceCents(priceRaw)
		if err != nil {
			return repository.UpsertProductParams{}, false
		}
		params.PriceCents = cents
	}
	if stockRaw := field("stock"); stockRaw != "" {
		stock, err := strconv.Atoi(stockRaw)
		if err != nil || stock < 0 {
			return repository.UpsertProductParams{}, false
		}
		params.StockQty = stock
	}
	return params, true
}

// parsePriceCents accepts "125", "125.50" and the locale form "1 234,56".
func parsePriceCents(raw string) (int64, error) {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(raw)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return int64(value*100 + 0.5), nil
}
