// Package cache provides API response caching with a Redis backend and an
// optional in-process LRU layer.
//
// Features:
//
// - TTL derived from Cache-Control max-age, Expires, or DefaultTTL
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Per-user scoping of keys for authenticated responses
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManagerWithOptions(redisClient, cache.Options{
//		MemorySize: 256,
//		MemoryTTL:  time.Minute,
//	})
//
//	key := cache.CacheKey{
//		Endpoint:    "/topics/nature/photos",
//		QueryParams: url.Values{"page": []string{"2"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//	// on 304: resp = cache.EntryToResponse(entry)
//
// # Metrics
//
//   - plashr_cache_hits_total{layer} - Cache hits (memory, redis)
//   - plashr_cache_misses_total - Cache misses
//   - plashr_cache_size_bytes{layer} - Cache size
//   - plashr_304_responses_total - Conditional request successes
//   - plashr_cache_errors_total{operation} - Cache operation errors
package cache
