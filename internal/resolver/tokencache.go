package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orderbot_backend/platform/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is subtracted from a credential's lifetime so a token is
// never handed out moments before the provider would reject it.
const refreshMargin = 60 * time.Second

// Credential is a short-lived bearer token for one provider.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

func (c Credential) valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt.Add(-refreshMargin))
}

// ExchangeFunc performs the synchronous credential exchange for one provider.
type ExchangeFunc func(ctx context.Context) (Credential, error)

// TokenCache holds one bearer token per provider identity. Concurrent
// refreshes for the same provider are collapsed into a single in-flight
// exchange; different providers refresh independently. When a Redis client
// is supplied, tokens survive process restarts; without one the cache is
// memory-only.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]Credential
	group   singleflight.Group
	rdb     *redis.Client
	log     *logger.Logger
	now     func() time.Time
}

// NewTokenCache creates a token cache. rdb may be nil.
func NewTokenCache(rdb *redis.Client, log *logger.Logger) *TokenCache {
	return &TokenCache{
		entries: make(map[string]Credential),
		rdb:     rdb,
		log:     log,
		now:     time.Now,
	}
}

// Token returns a cached, non-expired token for the provider, or performs
// the exchange and caches the result. Callers that arrive while an exchange
// is in flight join it instead of issuing their own.
func (c *TokenCache) Token(ctx context.Context, provider string, exchange ExchangeFunc) (string, error) {
	if cred, ok := c.lookup(ctx, provider); ok {
		return cred.Token, nil
	}

	ch := c.group.DoChan(provider, func() (interface{}, error) {
		// Re-check under the flight: a competing caller may have already
		// stored a fresh credential between lookup and DoChan.
		if cred, ok := c.lookup(ctx, provider); ok {
			return cred, nil
		}

		// The exchange outlives any single caller so an abandoned request
		// cannot poison the cache for the callers still waiting.
		cred, err := exchange(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAuthExchange, provider, err)
		}
		c.store(ctx, provider, cred)
		return cred, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Credential).Token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate forcibly evicts the provider's cached token. Called after an
// authentication rejection so the next Token call exchanges afresh.
func (c *TokenCache) Invalidate(ctx context.Context, provider string) {
	c.mu.Lock()
	delete(c.entries, provider)
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, redisTokenKey(provider)).Err(); err != nil {
			c.log.Warn("token cache redis delete failed", "provider", provider, "error", err.Error())
		}
	}
}

func (c *TokenCache) lookup(ctx context.Context, provider string) (Credential, bool) {
	c.mu.RLock()
	cred, ok := c.entries[provider]
	c.mu.RUnlock()
	if ok && cred.valid(c.now()) {
		return cred, true
	}

	if c.rdb == nil {
		return Credential{}, false
	}

	token, err := c.rdb.Get(ctx, redisTokenKey(provider)).Result()
	if err != nil || token == "" {
		return Credential{}, false
	}
	ttl, err := c.rdb.TTL(ctx, redisTokenKey(provider)).Result()
	if err != nil || ttl <= refreshMargin {
		return Credential{}, false
	}

	cred = Credential{Token: token, ExpiresAt: c.now().Add(ttl)}
	c.mu.Lock()
	c.entries[provider] = cred
	c.mu.Unlock()
	return cred, true
}

func (c *TokenCache) store(ctx context.Context, provider string, cred Credential) {
	c.mu.Lock()
	c.entries[provider] = cred
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	ttl := cred.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, redisTokenKey(provider), cred.Token, ttl).Err(); err != nil {
		c.log.Warn("token cache redis set failed", "provider", provider, "error", err.Error())
	}
}

func redisTokenKey(provider string) string {
	return "llm:token:" + provider
}
