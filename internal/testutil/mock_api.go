// Package testutil provides a mock photo API and Redis helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/plashr/plashr/pkg/client"
	"github.com/redis/go-redis/v9"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request seen by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// MockAPI is a configurable mock photo API server.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests         []RecordedRequest
	conditionalCount int
}

// NewMockAPI creates a mock server that is closed when the test ends.
// Unknown paths answer 404 with an API error body.
func NewMockAPI(t testing.TB) *MockAPI {
	t.Helper()

	mock := &MockAPI{handlers: make(map[string]http.HandlerFunc)}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.Unlock()

		w.Header().Set("X-Ratelimit-Limit", "50")
		w.Header().Set("X-Ratelimit-Remaining", "49")

		if !exists {
			WriteJSON(w, http.StatusNotFound, map[string][]string{"errors": {"Couldn't find " + r.URL.Path}})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(mock.server.Close)

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Handle registers a handler for a path, optionally prefixed with a method
// ("POST /photos/abc/like").
func (m *MockAPI) Handle(pattern string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = handler
}

// SetResponse configures a fixed response for a pattern.
func (m *MockAPI) SetResponse(pattern string, resp MockResponse) {
	m.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON answers pattern with v encoded as JSON.
func (m *MockAPI) SetJSON(pattern string, status int, v any) {
	m.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, v)
	})
}

// SetPagedList serves total generated records on path, honouring the page
// and per_page query parameters. wrap, when set, turns a page of records
// into the response document (for search envelopes).
func (m *MockAPI) SetPagedList(path string, total int, wrap func(items []map[string]any, total int) any) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if page < 1 {
			page = 1
		}
		if perPage < 1 {
			perPage = 10
		}

		items := []map[string]any{}
		for i := (page - 1) * perPage; i < page*perPage && i < total; i++ {
			items = append(items, Record(i+1))
		}

		w.Header().Set("X-Total", strconv.Itoa(total))
		w.Header().Set("Cache-Control", "no-store")
		if wrap != nil {
			WriteJSON(w, http.StatusOK, wrap(items, total))
			return
		}
		WriteJSON(w, http.StatusOK, items)
	})
}

// SearchEnvelope wraps a page of records like the search endpoints do.
func SearchEnvelope(perPage int) func(items []map[string]any, total int) any {
	return func(items []map[string]any, total int) any {
		return map[string]any{
			"total":       total,
			"total_pages": (total + perPage - 1) / perPage,
			"results":     items,
		}
	}
}

// Record returns a minimal record with id "item-<n>".
func Record(n int) map[string]any {
	id := fmt.Sprintf("item-%d", n)
	return map[string]any{
		"id":       id,
		"slug":     id,
		"username": id,
		"title":    id,
		"width":    4000,
		"height":   3000,
		"urls": map[string]string{
			"raw":     "/img/" + id + "?q=raw",
			"full":    "/img/" + id + "?q=full",
			"regular": "/img/" + id + "?q=regular",
			"small":   "/img/" + id + "?q=small",
			"thumb":   "/img/" + id + "?q=thumb",
		},
		"links": map[string]string{
			"download_location": "/photos/" + id + "/download",
		},
	}
}

// Requests returns a copy of the requests seen so far.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// Reset clears the recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.conditionalCount = 0
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewConditionalHandler answers 304 when If-None-Match matches etag.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Cache-Control", "max-age=300")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=300")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(data))
	}
}

// NewRedis starts an in-process Redis and returns a client for it.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// NewClient returns an API client pointed at the mock with its own Redis.
func (m *MockAPI) NewClient(t testing.TB) *client.Client {
	t.Helper()

	rdb, _ := NewRedis(t)
	cfg := client.DefaultConfig(rdb, "test-access-key")
	cfg.BaseURL = m.URL()
	cfg.MemoryCacheSize = 0

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
