package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Options configures the in-memory layer in front of Redis.
type Options struct {
	// MemorySize is the number of entries kept in process. 0 disables the layer.
	MemorySize int

	// MemoryTTL bounds how long an entry stays in process regardless of its Expires.
	MemoryTTL time.Duration
}

// Manager handles caching operations with an optional in-memory LRU layer
// and a Redis backend.
type Manager struct {
	redis  *redis.Client
	memory *expirable.LRU[string, *CacheEntry]
}

// NewManager creates a new cache manager with Redis backend only.
func NewManager(redisClient *redis.Client) *Manager {
	return NewManagerWithOptions(redisClient, Options{})
}

// NewManagerWithOptions creates a cache manager with an in-memory layer.
func NewManagerWithOptions(redisClient *redis.Client, opts Options) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{redis: redisClient}
	if opts.MemorySize > 0 {
		ttl := opts.MemoryTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		m.memory = expirable.NewLRU[string, *CacheEntry](opts.MemorySize, nil, ttl)
	}
	return m
}

// Get retrieves a cache entry by key, memory first.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	if m.memory != nil {
		if entry, ok := m.memory.Get(cacheKey); ok {
			if !entry.IsExpired() {
				CacheHits.WithLabelValues("memory").Inc()
				return entry, nil
			}
			m.memory.Remove(cacheKey)
		}
	}

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	if m.memory != nil {
		m.memory.Add(cacheKey, &entry)
	}

	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// Expired entries are not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	cacheKey := key.String()

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	if m.memory != nil {
		m.memory.Add(cacheKey, entry)
		CacheSize.WithLabelValues("memory").Set(float64(m.memory.Len()))
	}

	return nil
}

// Delete removes a cache entry from both layers.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	cacheKey := key.String()

	if m.memory != nil {
		m.memory.Remove(cacheKey)
	}

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// UpdateTTL updates the expiry of an existing cache entry.
// Used when a 304 Not Modified response carries fresh expiry headers.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	updated := *entry
	updated.Expires = newExpires

	return m.Set(ctx, key, &updated)
}
