package erp

import (
	"strings"
	"testing"
)

func TestNormalizeItemsPayloadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"bare array", `[{"sku":"A-1","title":"Труба"},{"sku":"A-2","title":"Кран"}]`, 2},
		{"items wrapper", `{"items":[{"sku":"A-1","title":"Труба"}]}`, 1},
		{"catalog wrapper", `{"catalog":[{"sku":"A-1","title":"Труба"}]}`, 1},
		{"single object", `{"sku":"A-1","title":"Труба"}`, 1},
		{"titleless entries dropped", `[{"sku":"A-1"},{"sku":"A-2","title":"Кран"}]`, 1},
		{"non-object entries dropped", `[42,"x",{"sku":"A-1","title":"Труба"}]`, 1},
		{"not json", `<html>`, 0},
		{"scalar payload", `"hello"`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeItems([]byte(tc.raw)); len(got) != tc.want {
				t.Fatalf("got %d items, want %d", len(got), tc.want)
			}
		})
	}
}

func TestNormalizeItemsFields(t *testing.T) {
	raw := `{"items":[
		{"id":17,"title_ru":"Гвоздь строительный","price":"1 234,56","stock_qty":"10"},
		{"sku":"B-2","title":"Кран шаровой","price":99.5,"stock_qty":7.0}
	]}`

	items := NormalizeItems([]byte(raw))
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	first := items[0]
	if first.SKU != "17" {
		t.Errorf("sku fallback to id: got %q", first.SKU)
	}
	if first.Title != "Гвоздь строительный" {
		t.Errorf("title_ru alias: got %q", first.Title)
	}
	if first.PriceCents != 123456 {
		t.Errorf("locale price: got %d, want 123456", first.PriceCents)
	}
	if first.StockQty != 10 {
		t.Errorf("string stock: got %d, want 10", first.StockQty)
	}

	second := items[1]
	if second.PriceCents != 9950 {
		t.Errorf("float price: got %d, want 9950", second.PriceCents)
	}
	if second.StockQty != 7 {
		t.Errorf("float stock: got %d, want 7", second.StockQty)
	}
}

func TestNormalizeSKUFallsBackToTitleAndHashesLongValues(t *testing.T) {
	items := NormalizeItems([]byte(`[{"title":"Труба ПВХ 20мм"}]`))
	if len(items) != 1 || items[0].SKU != "Труба ПВХ 20мм" {
		t.Fatalf("expected title fallback, got %+v", items)
	}

	long := strings.Repeat("д", 80)
	items = NormalizeItems([]byte(`[{"sku":"` + long + `","title":"x"}]`))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if len(items[0].SKU) != 40 {
		t.Errorf("oversized sku should collapse to sha1 hex, got %q", items[0].SKU)
	}

	again := NormalizeItems([]byte(`[{"sku":"` + long + `","title":"x"}]`))
	if again[0].SKU != items[0].SKU {
		t.Error("hashed sku must be stable across runs")
	}
}

func TestCoercePriceCents(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{125.0, 12500},
		{"125.50", 12550},
		{"1 234,56", 123456},
		{"", 0},
		{"дорого", 0},
		{-3.0, 0},
		{nil, 0},
	}

	for _, tc := range tests {
		if got := coercePriceCents(tc.in); got != tc.want {
			t.Errorf("coercePriceCents(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
