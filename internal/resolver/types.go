// Package resolver turns a free-text order message into a structured list of
// catalog positions. Extraction sources are tried in priority order (primary
// LLM provider, secondary LLM provider, local lexical parsing); the first
// source that succeeds is authoritative for the whole order, and its
// candidates are matched against a catalog snapshot. The resolver degrades,
// it never fails: total provider exhaustion falls back to the local parser.
package resolver

import (
	"context"

	"github.com/google/uuid"
)

// Candidate is an extracted (title, quantity) pair before catalog matching.
type Candidate struct {
	Title string `json:"title"`
	Qty   int    `json:"qty"`
}

// Source is one way of producing candidates from order text. Provider-backed
// sources are fallible; the local parser always succeeds.
type Source interface {
	// Name is the audit tag recorded on resolved lines
	// ("provider:primary", "provider:secondary", "local").
	Name() string
	// Configured reports whether the source may be invoked at all.
	Configured() bool
	Extract(ctx context.Context, orderText string) ([]Candidate, error)
}

// CatalogItem is the read-only projection of a product used for matching.
type CatalogItem struct {
	ID         uuid.UUID
	SKU        string
	Title      string
	PriceCents int64
	StockQty   int
}

// CatalogReader supplies the catalog snapshot the matcher scores against.
type CatalogReader interface {
	Snapshot(ctx context.Context) ([]CatalogItem, error)
}

// ResolvedLine binds a candidate to a concrete catalog item.
type ResolvedLine struct {
	ProductID  uuid.UUID `json:"productId"`
	SKU        string    `json:"sku"`
	Title      string    `json:"title"`
	Qty        int       `json:"qty"`
	PriceCents int64     `json:"priceCents"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// UnresolvedLine is a candidate no catalog item matched above the threshold.
// It is surfaced to the caller for manual handling, never dropped.
type UnresolvedLine struct {
	Text string `json:"text"`
	Qty  int    `json:"qty"`
}

// Resolution is the full partition of an order message. Every candidate the
// winning source produced appears in exactly one of the two slices.
type Resolution struct {
	Source     string           `json:"source"`
	Resolved   []ResolvedLine   `json:"resolved"`
	Unresolved []UnresolvedLine `json:"unresolved"`
}
