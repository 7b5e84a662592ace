package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by Get when the key is absent or caching is disabled
var ErrCacheMiss = errors.New("cache miss")

const (
	cacheKeyPrefix = "pv:"

	defaultLoadTimeout = 30 * time.Second
)

// CacheService is a keyed JSON cache over redis. A nil client disables caching; loads still
// coalesce per key.
type CacheService struct {
	client      *redis.Client
	logger      *logrus.Logger
	group       singleflight.Group
	loadTimeout time.Duration
}

func NewCacheService(client *redis.Client, logger *logrus.Logger) *CacheService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheService{
		client:      client,
		logger:      logger,
		loadTimeout: defaultLoadTimeout,
	}
}

// SetLoadTimeout bounds a shared load. Loads are detached from any single caller's context.
func (s *CacheService) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		s.loadTimeout = d
	}
}

// Enabled reports whether a redis client is configured
func (s *CacheService) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return ErrCacheMiss
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

func (s *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache existence: %w", err)
	}
	return val > 0, nil
}

// InvalidatePrefix deletes every key under prefix and returns how many were removed
func (s *CacheService) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan cache: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete cache: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping checks the redis connection. A disabled cache is always healthy.
func (s *CacheService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Cached returns the cached value for key, or loads, stores and returns it.
// Concurrent callers for the same key share one load, which outlives any one caller; each
// caller stops waiting when its own ctx is done. Cache errors never fail the call.
func Cached[T any](ctx context.Context, s *CacheService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if err := s.Get(ctx, key, &cached); err == nil {
		return cached, true, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.WithFields(logrus.Fields{
			"component": "cache",
			"key":       key,
		}).WithError(err).Warn("Cache read failed")
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		loaded, err := load(loadCtx)
		if err != nil {
			return loaded, err
		}
		if setErr := s.Set(loadCtx, key, loaded, ttl); setErr != nil {
			s.logger.WithFields(logrus.Fields{
				"component": "cache",
				"key":       key,
			}).WithError(setErr).Warn("Cache write failed")
		}
		return loaded, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

// Cache key generators
func StatsCacheKey(label string) string {
	return StatsCachePrefix + label
}

func LeaderboardCacheKey(board string, season int) string {
	return fmt.Sprintf("%s%s:%d", LeaderboardCachePrefix, board, season)
}

func SessionCacheKey(sessionID string) string {
	return cacheKeyPrefix + "session:" + sessionID
}

// Upstream payload prefixes. Session keys live outside them.
const (
	StatsCachePrefix       = cacheKeyPrefix + "stats:"
	LeaderboardCachePrefix = cacheKeyPrefix + "leaderboard:"
)

// UpstreamCachePrefixes maps an invalidation target to the prefixes it clears
var UpstreamCachePrefixes = map[string][]string{
	"stats":        {StatsCachePrefix},
	"leaderboards": {LeaderboardCachePrefix},
	"all":          {StatsCachePrefix, LeaderboardCachePrefix},
}
