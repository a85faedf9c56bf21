// --- File: internal/storage/cache/tokenstore.go ---
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// CacheClient is the subset of cache commands the store needs.
type CacheClient interface {
	// Get returns an error (redis.Nil on a plain miss) when key is absent.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedTokenStore decorates a TokenStore with read-aside caching of each
// user's token list. Writes invalidate the user's entry.
type CachedTokenStore struct {
	realStore dispatch.TokenStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedTokenStore(realStore dispatch.TokenStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedTokenStore"),
	}
}

// --- Read path ---

func (s *CachedTokenStore) Fetch(ctx context.Context, user urn.URN) ([]string, error) {
	key := s.cacheKey(user)

	var tokens []string
	err := s.cache.Get(ctx, key, &tokens)
	if err == nil {
		return tokens, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("Token cache read failed, falling back to store", "err", err)
	}

	tokens, err = s.realStore.Fetch(ctx, user)
	if err != nil {
		return nil, err
	}

	// Caching is best effort; the store stays the source of truth.
	if err := s.cache.Set(ctx, key, tokens, s.ttl); err != nil {
		s.logger.Warn("Token cache write failed", "err", err)
	}
	return tokens, nil
}

// --- Write paths ---

func (s *CachedTokenStore) RegisterFCM(ctx context.Context, user urn.URN, token string) error {
	if err := s.realStore.RegisterFCM(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

// UnregisterFCM clears the cache even though the store write already
// succeeded, so a dead token stops receiving sends immediately.
func (s *CachedTokenStore) UnregisterFCM(ctx context.Context, user urn.URN, token string) error {
	if err := s.realStore.UnregisterFCM(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

func (s *CachedTokenStore) invalidate(ctx context.Context, user urn.URN) error {
	if err := s.cache.Del(ctx, s.cacheKey(user)); err != nil {
		return fmt.Errorf("failed to invalidate token cache: %w", err)
	}
	return nil
}

func (s *CachedTokenStore) cacheKey(user urn.URN) string {
	return fmt.Sprintf("fcm:tokens:%s", user.String())
}
