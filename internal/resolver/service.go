package resolver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"orderbot_backend/platform/logger"
)

const parseCachePrefix = "resolver:parse:"

// LogStore records resolution outcomes for later inspection.
type LogStore interface {
	Record(ctx context.Context, entry LogEntry) error
}

// LogEntry is one resolution audit record.
type LogEntry struct {
	UserID          uuid.UUID
	RawText         string
	Source          string
	ResolvedCount   int
	UnresolvedCount int
}

// Service runs the extraction source chain and matches the resulting
// candidates against the catalog. Resolve never returns an error: when
// no source and no catalog data are available the result degrades to an
// all-unresolved Resolution.
type Service struct {
	sources   []Source
	catalog   CatalogReader
	logs      LogStore
	rdb       *redis.Client
	threshold float64
	cacheTTL  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewService builds the resolver. Sources are tried in the given order;
// the caller appends the local parser last so the chain always has a
// terminal source. rdb and logs may be nil.
func NewService(sources []Source, catalog CatalogReader, logs LogStore, rdb *redis.Client, threshold float64, cacheTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		sources:   sources,
		catalog:   catalog,
		logs:      logs,
		rdb:       rdb,
		threshold: threshold,
		cacheTTL:  cacheTTL,
		log:       log,
		now:       time.Now,
	}
}

type cachedParse struct {
	Source     string      `json:"source"`
	Candidates []Candidate `json:"candidates"`
}

// Resolve turns free-form order text into resolved and unresolved lines.
// userID may be uuid.Nil for anonymous callers.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, orderText string) Resolution {
	started := s.now()

	sourceName, candidates := s.extract(ctx, orderText)
	res := s.match(ctx, sourceName, candidates)

	latency := float64(s.now().Sub(started)) / float64(time.Millisecond)
	s.log.WithContext(ctx).ResolveResult(res.Source, len(res.Resolved), len(res.Unresolved), latency)

	if s.logs != nil {
		entry := LogEntry{
			UserID:          userID,
			RawText:         orderText,
			Source:          res.Source,
			ResolvedCount:   len(res.Resolved),
			UnresolvedCount: len(res.Unresolved),
		}
		if err := s.logs.Record(ctx, entry); err != nil {
			s.log.DatabaseError("resolution_log_insert", err)
		}
	}
	return res
}

// extract walks the source chain. A source is charged with the whole text:
// either it yields candidates or the next source gets the original input.
func (s *Service) extract(ctx context.Context, orderText string) (string, []Candidate) {
	if cached, ok := s.cacheGet(ctx, orderText); ok {
		return cached.Source, cached.Candidates
	}

	for _, src := range s.sources {
		if !src.Configured() {
			continue
		}

		candidates, err := src.Extract(ctx, orderText)
		if err == nil && len(candidates) == 0 && strings.TrimSpace(orderText) != "" {
			// Zero candidates for non-blank text means the source lost the
			// input; the next source gets a chance at it.
			err = fmt.Errorf("%w: %s produced no candidates", ErrMalformedResponse, src.Name())
		}
		if err != nil {
			s.log.WithContext(ctx).ProviderError(src.Name(), err)
			continue
		}

		s.cachePut(ctx, orderText, src.Name(), candidates)
		return src.Name(), candidates
	}

	// Unreachable when the local parser is wired in, but the chain must
	// still degrade rather than fail if it is not.
	return "none", nil
}

// match scores every candidate against the catalog snapshot and splits
// the outcome into resolved and unresolved lines. A missing or failing
// catalog leaves every candidate unresolved.
func (s *Service) match(ctx context.Context, sourceName string, candidates []Candidate) Resolution {
	res := Resolution{Source: sourceName}

	var items []CatalogItem
	if s.catalog != nil {
		snapshot, err := s.catalog.Snapshot(ctx)
		if err != nil {
			s.log.DatabaseError("catalog_snapshot", err)
		} else {
			items = snapshot
		}
	}

	for _, cand := range candidates {
		qty := cand.Qty
		if qty < 1 {
			qty = 1
		}

		item, score := bestMatch(items, cand.Title)
		if len(items) == 0 || score < s.threshold {
			res.Unresolved = append(res.Unresolved, UnresolvedLine{Text: cand.Title, Qty: qty})
			continue
		}

		res.Resolved = append(res.Resolved, ResolvedLine{
			ProductID:  item.ID,
			SKU:        item.SKU,
			Title:      item.Title,
			Qty:        qty,
			PriceCents: item.PriceCents,
			Confidence: score,
			Source:     sourceName,
		})
	}
	return res
}

func parseCacheKey(orderText string) string {
	sum := sha1.Sum([]byte(orderText))
	return parseCachePrefix + hex.EncodeToString(sum[:])
}

func (s *Service) cacheGet(ctx context.Context, orderText string) (cachedParse, bool) {
	if s.rdb == nil {
		return cachedParse{}, false
	}

	raw, err := s.rdb.Get(ctx, parseCacheKey(orderText)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("parse_cache_read_failed", "error", err.Error())
		}
		return cachedParse{}, false
	}

	var cached cachedParse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return cachedParse{}, false
	}
	return cached, true
}

// cachePut stores only non-empty provider results. The local parser is
// cheaper than the round trip to Redis, and an empty list must never pin
// the text to a failed extraction for the TTL.
func (s *Service) cachePut(ctx context.Context, orderText, sourceName string, candidates []Candidate) {
	if s.rdb == nil || sourceName == "local" || len(candidates) == 0 {
		return
	}

	raw, err := json.Marshal(cachedParse{Source: sourceName, Candidates: candidates})
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, parseCacheKey(orderText), raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn("parse_cache_write_failed", "error", err.Error())
	}
}
