//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plashr/plashr/pkg/cache"
	"github.com/plashr/plashr/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(ctx)
	})

	return client
}

func newIntegrationClient(t *testing.T, redisClient *redis.Client, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig(redisClient, "integration-key")
	cfg.BaseURL = baseURL
	cfg.MemoryCacheSize = 0

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient := setupRedisContainer(t)

	var requestsMade, conditionalRequests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsMade.Add(1)

		w.Header().Set(ratelimit.HeaderLimit, "50")
		w.Header().Set(ratelimit.HeaderRemaining, "45")

		if r.Header.Get("If-None-Match") != "" {
			conditionalRequests.Add(1)
			w.Header().Set("Expires", time.Now().Add(10*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.Header().Set("ETag", `"photos-etag"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))
	defer server.Close()

	client := newIntegrationClient(t, redisClient, server.URL)
	ctx := context.Background()

	resp1, err := client.Get(ctx, "/photos", nil)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Request 1 status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}

	resp2, err := client.Get(ctx, "/photos", nil)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	resp2.Body.Close()

	if requestsMade.Load() != 2 {
		t.Errorf("requestsMade = %d, want 2", requestsMade.Load())
	}
	if conditionalRequests.Load() != 1 {
		t.Errorf("conditionalRequests = %d, want 1", conditionalRequests.Load())
	}

	cachedEntry, err := client.cache.Get(ctx, cache.CacheKey{Endpoint: "/photos"})
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if cachedEntry.ETag != `"photos-etag"` {
		t.Errorf("Cached ETag = %q, want %q", cachedEntry.ETag, `"photos-etag"`)
	}

	state, err := client.rateLimiter.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Remaining != 45 || state.Limit != 50 {
		t.Errorf("state = %d/%d, want 45/50", state.Remaining, state.Limit)
	}
}

func TestIntegration_RateLimitBlocks(t *testing.T) {
	redisClient := setupRedisContainer(t)
	ctx := context.Background()

	redisClient.Set(ctx, ratelimit.RedisKeyRemaining, 0, 0)
	redisClient.Set(ctx, ratelimit.RedisKeyResetTimestamp, time.Now().Add(time.Hour).Unix(), 0)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newIntegrationClient(t, redisClient, server.URL)

	_, err := client.Get(ctx, "/photos", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("blocked request reached the server %d times", calls.Load())
	}
}

func TestIntegration_CacheExpiration(t *testing.T) {
	redisClient := setupRedisContainer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=1")
		w.Header().Set("ETag", `"short-lived"`)
		w.Write([]byte(`{"id":"a"}`))
	}))
	defer server.Close()

	client := newIntegrationClient(t, redisClient, server.URL)
	ctx := context.Background()

	resp, err := client.Get(ctx, "/photos/a", nil)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp.Body.Close()

	key := cache.CacheKey{Endpoint: "/photos/a"}
	entry, err := client.cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if entry.IsExpired() {
		t.Error("Entry should not be expired yet")
	}

	time.Sleep(2 * time.Second)

	if _, err := client.cache.Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected cache miss after expiration, got %v", err)
	}
}
