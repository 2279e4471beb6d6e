package erp

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

const skuMaxLen = 64

// Item is a catalog entry normalized out of an ERP payload.
type Item struct {
	SKU        string
	Title      string
	PriceCents int64
	StockQty   int
}

// NormalizeItems extracts catalog items from whatever shape the ERP sends.
// Accepted payloads: a bare JSON array, an object with an "items" or
// "catalog" array, or a single object. Entries without a usable title are
// dropped. Anything else yields an empty slice, never an error.
func NormalizeItems(raw []byte) []Item {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	var entries []any
	switch v := payload.(type) {
	case []any:
		entries = v
	case map[string]any:
		if list, ok := v["items"].([]any); ok {
			entries = list
		} else if list, ok := v["catalog"].([]any); ok {
			entries = list
		} else {
			entries = []any{v}
		}
	default:
		return nil
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		title := asString(fields["title"])
		if title == "" {
			title = asString(fields["title_ru"])
		}
		if title == "" {
			continue
		}

		sku := normalizeSKU(asString(fields["sku"]), asString(fields["id"]), title)

		items = append(items, Item{
			SKU:        sku,
			Title:      title,
			PriceCents: coercePriceCents(fields["price"]),
			StockQty:   coerceInt(fields["stock_qty"]),
		})
	}
	return items
}

// normalizeSKU picks the first non-empty candidate and caps its length.
// Oversized values are replaced with a stable sha1 hex so the unique
// constraint still holds.
func normalizeSKU(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if utf8.RuneCountInString(c) <= skuMaxLen {
			return c
		}
		sum := sha1.Sum([]byte(c))
		return hex.EncodeToString(sum[:])
	}
	return ""
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strings.TrimSpace(strconv.FormatFloat(s, 'f', -1, 64))
	case bool:
		if s {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// coerceInt tolerates numbers, numeric strings with spaces and decimal
// commas, and garbage (which maps to zero).
func coerceInt(v any) int {
	return int(coerceFloat(v))
}

// coercePriceCents converts an ERP price in rubles to integer kopecks.
// Negative and unparseable values map to zero.
func coercePriceCents(v any) int64 {
	value := coerceFloat(v)
	if value <= 0 {
		return 0
	}
	return int64(value*100 + 0.5)
}

func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(n))
		if cleaned == "" {
			return 0
		}
		value, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return value
	default:
		return 0
	}
}
