package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/plashr/plashr/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// setupTestRedis starts an in-process Redis for the test.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func newTestClient(t *testing.T, serverURL string, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(setupTestRedis(t), "test-key")
	cfg.BaseURL = serverURL
	cfg.InitialBackoff = 10 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	redisClient := setupTestRedis(t)

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:     "nil redis",
			mutate:   func(c *Config) { c.Redis = nil },
			errorMsg: "redis client is required",
		},
		{
			name:     "no credentials",
			mutate:   func(c *Config) { c.AccessKey = "" },
			errorMsg: "access key or token source is required",
		},
		{
			name: "token source without key",
			mutate: func(c *Config) {
				c.AccessKey = ""
				c.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})
			},
		},
		{
			name:     "negative threshold",
			mutate:   func(c *Config) { c.RemainingThreshold = -1 },
			errorMsg: "remaining_threshold must be >= 0 (got -1)",
		},
		{
			name:     "negative retries",
			mutate:   func(c *Config) { c.MaxRetries = -2 },
			errorMsg: "max_retries must be >= 0 (got -2)",
		},
		{
			name:     "relative base url",
			mutate:   func(c *Config) { c.BaseURL = "/api" },
			errorMsg: "base url must be absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(redisClient, "test-key")
			tt.mutate(&cfg)

			_, err := New(cfg)
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(nil, "key")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.RemainingThreshold != ratelimit.RemainingCritical {
		t.Errorf("RemainingThreshold = %d, want %d", cfg.RemainingThreshold, ratelimit.RemainingCritical)
	}
}

func TestClient_URL(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/")

	got := c.URL("/photos", url.Values{"page": {"2"}, "per_page": {"30"}})
	want := "https://api.example.com/photos?page=2&per_page=30"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	if got := c.URL("topics/nature", nil); got != "https://api.example.com/topics/nature" {
		t.Errorf("URL() without query = %q", got)
	}
}

func TestClient_Get_SetsHeaders(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Get(context.Background(), "/photos", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if got := gotHeaders.Get("Authorization"); got != "Client-ID test-key" {
		t.Errorf("Authorization = %q, want Client-ID test-key", got)
	}
	if got := gotHeaders.Get("Accept-Version"); got != "v1" {
		t.Errorf("Accept-Version = %q, want v1", got)
	}
	if got := gotHeaders.Get("User-Agent"); got != "plashr/1.0" {
		t.Errorf("User-Agent = %q, want plashr/1.0", got)
	}
}

func TestClient_TokenSourceUsesBearer(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"})
	})

	resp, err := c.Post(context.Background(), "/photos/abc/like", nil, nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if auth != "Bearer user-token" {
		t.Errorf("Authorization = %q, want Bearer user-token", auth)
	}
}

func TestClient_PostSendsJSONBody(t *testing.T) {
	var body, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"c1"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Post(context.Background(), "/collections", nil, map[string]string{"title": "Trips"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if body != `{"title":"Trips"}` {
		t.Errorf("body = %q", body)
	}
}

func TestClient_ClientErrorReturnedAsResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":["Couldn't find Photo"]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.MaxRetries = 2 })

	resp, err := c.Get(context.Background(), "/photos/missing", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("client errors must not be retried, got %d calls", calls.Load())
	}
}

func TestClient_ServerErrorNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Get(context.Background(), "/photos", nil)
	if err == nil {
		t.Fatal("Expected error for 503")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus() = %d, want 503", apiErr.HTTPStatus())
	}
	if apiErr.ErrorClass != ErrorClassServer {
		t.Errorf("ErrorClass = %q, want server", apiErr.ErrorClass)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected single attempt, got %d", calls.Load())
	}
}

func TestClient_RetriesServerErrorsWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.MaxRetries = 2 })

	resp, err := c.Get(context.Background(), "/photos", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.MaxRetries = 1 })

	_, err := c.Get(context.Background(), "/photos", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}

	var status interface{ HTTPStatus() int }
	if !errors.As(err, &status) || status.HTTPStatus() != 500 {
		t.Errorf("Expected HTTP status 500 in chain, got %v", err)
	}
}

func TestClient_RetriedPostResendsBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.MaxRetries = 1 })

	resp, err := c.Put(context.Background(), "/collections/c1", nil, map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] {
		t.Errorf("Expected identical bodies on retry, got %q", bodies)
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := newTestClient(t, addr)

	_, err := c.Get(context.Background(), "/photos", nil)
	if err == nil {
		t.Fatal("Expected network error")
	}

	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		t.Errorf("network errors must not carry an HTTP status, got %d", status.HTTPStatus())
	}
}

func TestClient_RateLimitBlock(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(ratelimit.HeaderLimit, "50")
		w.Header().Set(ratelimit.HeaderRemaining, "0")
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()

	resp, err := c.Get(ctx, "/photos", nil)
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	resp.Body.Close()

	_, err = c.Get(ctx, "/photos", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Errorf("Expected 429 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("blocked request must not reach the server, got %d calls", calls.Load())
	}
}

func TestClient_ForbiddenWithZeroRemainingIsRateLimit(t *testing.T) {
	c := newTestClient(t, "https://api.example.com")

	resp := &http.Response{StatusCode: http.StatusForbidden, Header: http.Header{}}
	resp.Header.Set(ratelimit.HeaderRemaining, "0")

	if got := c.classifyError(resp, nil); got != ErrorClassRateLimit {
		t.Errorf("classifyError() = %q, want rate_limit", got)
	}

	resp.Header.Set(ratelimit.HeaderRemaining, "12")
	if got := c.classifyError(resp, nil); got != ErrorClassClient {
		t.Errorf("classifyError() = %q, want client", got)
	}
}

func TestClient_ConditionalRequestUsesCache(t *testing.T) {
	var calls atomic.Int32
	var ifNoneMatch atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if inm := r.Header.Get("If-None-Match"); inm != "" {
			ifNoneMatch.Store(inm)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=300")
		w.Write([]byte(`[{"id":"a"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()
	query := url.Values{"page": {"1"}}

	resp, err := c.Get(ctx, "/photos", query)
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	resp.Body.Close()

	resp, err = c.Get(ctx, "/photos", query)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `[{"id":"a"}]` {
		t.Errorf("body = %q, want cached body", body)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200 from cache", resp.StatusCode)
	}
	if resp.Header.Get("X-Plashr-Cache") != "hit" {
		t.Error("Expected cache hit marker")
	}
	if got, _ := ifNoneMatch.Load().(string); got != `"v1"` {
		t.Errorf("If-None-Match = %q, want \"v1\"", got)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 server calls, got %d", calls.Load())
	}
}

func TestClient_ScopeSeparatesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"me"`)
		w.Header().Set("Cache-Control", "max-age=300")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	redisClient := setupTestRedis(t)
	newScoped := func(scope string) *Client {
		cfg := DefaultConfig(redisClient, "test-key")
		cfg.BaseURL = server.URL
		cfg.Scope = scope
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	ctx := context.Background()
	alice := newScoped("alice")
	resp, err := alice.Get(ctx, "/me", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	bob := newScoped("bob")
	req, _ := bob.NewRequest(ctx, http.MethodGet, "/me", nil, nil)
	resp, err = bob.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if req.Header.Get("If-None-Match") != "" {
		t.Error("another scope must not reuse cached entries")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Get(ctx, "/photos", nil); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, "https://api.example.com")

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
