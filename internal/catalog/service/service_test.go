package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"orderbot_backend/internal/catalog/repository"
	"orderbot_backend/internal/events"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

type fakeRepo struct {
	repository.Repository
	upserts []repository.UpsertProductParams
	failSKU string
}

func (f *fakeRepo) UpsertProductBySKU(_ context.Context, params repository.UpsertProductParams) (bool, error) {
	if params.SKU == f.failSKU {
		return false, errors.New("db error")
	}
	f.upserts = append(f.upserts, params)
	return true, nil
}

func newTestService(repo repository.Repository) *Service {
	log := logger.New("development")
	return New(repo, nil, "", events.NewInMemoryBus(log), log)
}

func TestImportCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"sku,title,price,stock",
		"PIPE-20,Труба ПВХ 20мм,125.50,10",
		`NAIL-01,Гвоздь строительный,"1 234,56",500`,
		",Без артикула,10,1",
		"BAD-PRICE,Плохая цена,дорого,1",
		"BAD-STOCK,Плохой остаток,10,-5",
		"VALVE-01,Кран шаровой,,",
	}, "\n")

	repo := &fakeRepo{}
	svc := newTestService(repo)

	result, err := svc.ImportCSV(context.Background(), "catalog.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	if result.Upserted != 3 {
		t.Errorf("upserted = %d, want 3", result.Upserted)
	}
	if result.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", result.Skipped)
	}
	if len(repo.upserts) != 3 {
		t.Fatalf("repo received %d upserts, want 3", len(repo.upserts))
	}

	first := repo.upserts[0]
	if first.SKU != "PIPE-20" || first.PriceCents != 12550 || first.StockQty != 10 {
		t.Errorf("first upsert = %+v", first)
	}
	second := repo.upserts[1]
	if second.PriceCents != 123456 {
		t.Errorf("locale price parsed to %d cents, want 123456", second.PriceCents)
	}
	third := repo.upserts[2]
	if third.SKU != "VALVE-01" || third.PriceCents != 0 || third.StockQty != 0 {
		t.Errorf("third upsert = %+v", third)
	}
}

func TestImportCSVFailedUpsertCountsAsSkipped(t *testing.T) {
	csvData := "sku,title\nOK-1,Первый\nFAIL-1,Второй\nOK-2,Третий"

	repo := &fakeRepo{failSKU: "FAIL-1"}
	svc := newTestService(repo)

	result, err := svc.ImportCSV(context.Background(), "catalog.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Upserted != 2 || result.Skipped != 1 {
		t.Fatalf("result = %+v, want 2 upserted / 1 skipped", result)
	}
}

func TestImportCSVRejectsUnusableFiles(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	if _, err := svc.ImportCSV(context.Background(), "empty.csv", strings.NewReader("")); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("empty file err = %v, want bad request", err)
	}
	if _, err := svc.ImportCSV(context.Background(), "no-sku.csv", strings.NewReader("title,price\nТруба,10")); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("missing sku column err = %v, want bad request", err)
	}
}

func TestParsePriceCents(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"125", 12500, true},
		{"125.50", 12550, true},
		{"1 234,56", 123456, true},
		{"0", 0, true},
		{"-5", 0, false},
		{"дорого", 0, false},
	}
	for _, tt := range tests {
		got, err := parsePriceCents(tt.raw)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("parsePriceCents(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("parsePriceCents(%q) succeeded, want error", tt.raw)
		}
	}
}

func TestSnapshotProjection(t *testing.T) {
	id := uuid.New()
	repo := &snapshotRepo{items: []repository.SnapshotItem{
		{ID: id, SKU: "PIPE-20", Title: "Труба", PriceCents: 100, StockQty: 3},
	}}
	svc := newTestService(repo)

	items, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(items) != 1 || items[0].ID != id || items[0].Title != "Труба" {
		t.Fatalf("snapshot = %+v", items)
	}
}

type snapshotRepo struct {
	repository.Repository
	items []repository.SnapshotItem
}

func (s *snapshotRepo) Snapshot(context.Context) ([]repository.SnapshotItem, error) {
	return s.items, nil
}
