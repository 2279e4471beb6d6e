package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	name       string
	configured bool
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) Configured() bool { return f.configured }

func (f *fakeSource) Extract(context.Context, string) ([]Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeCatalog struct {
	items []CatalogItem
	err   error
}

func (f *fakeCatalog) Snapshot(context.Context) ([]CatalogItem, error) {
	return f.items, f.err
}

type memLogStore struct {
	entries []LogEntry
}

func (m *memLogStore) Record(_ context.Context, entry LogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{items: []CatalogItem{
		{ID: uuid.New(), SKU: "PIPE-20", Title: "Труба ПВХ 20мм", PriceCents: 12500},
		{ID: uuid.New(), SKU: "NAIL-01", Title: "Гвоздь строительный", PriceCents: 300},
	}}
}

func newTestService(sources []Source, catalog CatalogReader, logs LogStore, rdb *redis.Client) *Service {
	return NewService(sources, catalog, logs, rdb, 0.55, time.Minute, testLogger())
}

func TestResolvePrimarySourceWins(t *testing.T) {
	primary := &fakeSource{name: "provider:primary", configured: true,
		candidates: []Candidate{{Title: "труба пвх 20мм", Qty: 2}}}
	secondary := &fakeSource{name: "provider:secondary", configured: true,
		candidates: []Candidate{{Title: "другое", Qty: 1}}}

	svc := newTestService([]Source{primary, secondary, NewLocalParser()}, testCatalog(), nil, nil)

	res := svc.Resolve(context.Background(), uuid.Nil, "2 трубы пвх 20мм")
	if res.Source != "provider:primary" {
		t.Fatalf("source = %q, want provider:primary", res.Source)
	}
	if secondary.calls != 0 {
		t.Fatal("secondary consulted although primary succeeded")
	}
	if len(res.Resolved) != 1 || res.Resolved[0].SKU != "PIPE-20" || res.Resolved[0].Qty != 2 {
		t.Fatalf("resolved = %+v", res.Resolved)
	}
}

func TestResolveFallsBackThroughChain(t *testing.T) {
	primary := &fakeSource{name: "provider:primary", configured: true, err: ErrProviderUnavailable}
	secondary := &fakeSource{name: "provider:secondary", configured: true,
		candidates: []Candidate{{Title: "гвоздь строительный", Qty: 5}}}

	svc := newTestService([]Source{primary, secondary, NewLocalParser()}, testCatalog(), nil, nil)

	res := svc.Resolve(context.Background(), uuid.Nil, "5 гвоздей")
	if res.Source != "provider:secondary" {
		t.Fatalf("source = %q, want provider:secondary", res.Source)
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].SKU != "NAIL-01" {
		t.Fatalf("resolved = %+v", res.Resolved)
	}
}

func TestResolveSkipsUnconfiguredSources(t *testing.T) {
	primary := &fakeSource{name: "provider:primary", configured: false}
	secondary := &fakeSource{name: "provider:secondary", configured: false}

	svc := newTestService([]Source{primary, secondary, NewLocalParser()}, testCatalog(), nil, nil)

	res := svc.Resolve(context.Background(), uuid.Nil, "2 трубы ПВХ 20мм, кран")
	if res.Source != "local" {
		t.Fatalf("source = %q, want local", res.Source)
	}
	if primary.calls != 0 || secondary.calls != 0 {
		t.Fatal("unconfigured sources were invoked")
	}

	if len(res.Resolved) != 1 {
		t.Fatalf("resolved = %+v", res.Resolved)
	}
	line := res.Resolved[0]
	if line.SKU != "PIPE-20" || line.Qty != 2 || line.Source != "local" {
		t.Fatalf("resolved line = %+v", line)
	}
	if line.Confidence < 0.55 || line.Confidence > 1 {
		t.Fatalf("confidence = %v", line.Confidence)
	}

	if len(res.Unresolved) != 1 || res.Unresolved[0].Text != "кран" || res.Unresolved[0].Qty != 1 {
		t.Fatalf("unresolved = %+v", res.Unresolved)
	}
}

func TestResolveNeverFailsWhenEverythingIsDown(t *testing.T) {
	primary := &fakeSource{name: "provider:primary", configured: true, err: ErrProviderAuth}
	secondary := &fakeSource{name: "provider:secondary", configured: true, err: ErrMalformedResponse}
	catalog := &fakeCatalog{err: errors.New("db down")}

	svc := newTestService([]Source{primary, secondary, NewLocalParser()}, catalog, nil, nil)

	res := svc.Resolve(context.Background(), uuid.Nil, "кран, 2 трубы")
	if res.Source != "local" {
		t.Fatalf("source = %q, want local", res.Source)
	}
	if len(res.Resolved) != 0 {
		t.Fatalf("resolved = %+v, want none with catalog down", res.Resolved)
	}
	if len(res.Unresolved) != 2 {
		t.Fatalf("unresolved = %+v, want both lines kept", res.Unresolved)
	}
}

func TestResolveEmptyExtractionFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	// A source that answers with zero candidates for non-blank text must not
	// win the chain or pin the text in the parse cache.
	primary := &fakeSource{name: "provider:primary", configured: true, candidates: nil}

	svc := newTestService([]Source{primary, NewLocalParser()}, testCatalog(), nil, rdb)

	res := svc.Resolve(context.Background(), uuid.Nil, "2 трубы пвх 20мм, кран")
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
	if res.Source != "local" {
		t.Fatalf("source = %q, want local", res.Source)
	}
	if got := len(res.Resolved) + len(res.Unresolved); got != 2 {
		t.Fatalf("partition size = %d, want both input lines kept", got)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("redis keys = %v, want empty extraction uncached", mr.Keys())
	}

	// Blank input legitimately yields nothing and stays with the first source.
	blank := svc.Resolve(context.Background(), uuid.Nil, "   ")
	if blank.Source != "provider:primary" {
		t.Fatalf("blank input source = %q, want provider:primary", blank.Source)
	}
	if len(blank.Resolved)+len(blank.Unresolved) != 0 {
		t.Fatalf("blank input resolution = %+v, want empty", blank)
	}
}

func TestResolvePartitionIsComplete(t *testing.T) {
	candidates := []Candidate{
		{Title: "труба пвх 20мм", Qty: 1},
		{Title: "кран", Qty: 2},
		{Title: "гвоздь строительный", Qty: 3},
		{Title: "неизвестная позиция", Qty: 4},
	}
	primary := &fakeSource{name: "provider:primary", configured: true, candidates: candidates}

	svc := newTestService([]Source{primary, NewLocalParser()}, testCatalog(), nil, nil)

	res := svc.Resolve(context.Background(), uuid.Nil, "заказ")
	if got := len(res.Resolved) + len(res.Unresolved); got != len(candidates) {
		t.Fatalf("partition size = %d, want %d", got, len(candidates))
	}

	qtySeen := make(map[int]bool)
	for _, line := range res.Resolved {
		qtySeen[line.Qty] = true
	}
	for _, line := range res.Unresolved {
		qtySeen[line.Qty] = true
	}
	for _, cand := range candidates {
		if !qtySeen[cand.Qty] {
			t.Fatalf("candidate qty %d lost in partition", cand.Qty)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	svc := newTestService([]Source{NewLocalParser()}, testCatalog(), nil, nil)

	first := svc.Resolve(context.Background(), uuid.Nil, "2 трубы пвх 20мм, кран, гвоздь")
	for i := 0; i < 5; i++ {
		again := svc.Resolve(context.Background(), uuid.Nil, "2 трубы пвх 20мм, кран, гвоздь")
		if len(again.Resolved) != len(first.Resolved) || len(again.Unresolved) != len(first.Unresolved) {
			t.Fatalf("resolution changed between runs: %+v vs %+v", again, first)
		}
		for j := range first.Resolved {
			if again.Resolved[j] != first.Resolved[j] {
				t.Fatalf("resolved line %d changed: %+v vs %+v", j, again.Resolved[j], first.Resolved[j])
			}
		}
	}
}

func TestResolveRecordsAuditEntry(t *testing.T) {
	logs := &memLogStore{}
	svc := newTestService([]Source{NewLocalParser()}, testCatalog(), logs, nil)

	userID := uuid.New()
	svc.Resolve(context.Background(), userID, "2 трубы пвх 20мм, кран")

	if len(logs.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.UserID != userID || entry.Source != "local" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.ResolvedCount != 1 || entry.UnresolvedCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", entry.ResolvedCount, entry.UnresolvedCount)
	}
}

func TestResolveCachesProviderParses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	primary := &fakeSource{name: "provider:primary", configured: true,
		candidates: []Candidate{{Title: "труба пвх 20мм", Qty: 2}}}

	svc := newTestService([]Source{primary, NewLocalParser()}, testCatalog(), nil, rdb)

	first := svc.Resolve(context.Background(), uuid.Nil, "2 трубы")
	second := svc.Resolve(context.Background(), uuid.Nil, "2 трубы")

	if primary.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (second resolve served from cache)", primary.calls)
	}
	if second.Source != first.Source {
		t.Fatalf("cached source = %q, want %q", second.Source, first.Source)
	}
	if len(second.Resolved) != 1 || second.Resolved[0].SKU != "PIPE-20" {
		t.Fatalf("cached resolution = %+v", second)
	}

	// Different text misses the cache.
	svc.Resolve(context.Background(), uuid.Nil, "кран")
	if primary.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", primary.calls)
	}
}

func TestResolveLocalParsesAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	svc := newTestService([]Source{NewLocalParser()}, testCatalog(), nil, rdb)
	svc.Resolve(context.Background(), uuid.Nil, "кран")

	if len(mr.Keys()) != 0 {
		t.Fatalf("redis keys = %v, want none for local parses", mr.Keys())
	}
}
