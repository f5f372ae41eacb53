// Package client provides the HTTP client for the photo API with rate
// limiting, caching, authentication and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/plashr/plashr/pkg/cache"
	"github.com/plashr/plashr/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public photo API endpoint.
const DefaultBaseURL = "https://api.unsplash.com"

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_api_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plashr_api_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client is the photo API client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	baseURL     *url.URL
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API (default DefaultBaseURL)
	BaseURL string

	// AccessKey is the application's public key, sent as
	// "Authorization: Client-ID <key>" on unauthenticated requests.
	AccessKey string

	// TokenSource, when set, authenticates requests as a user (Bearer token).
	TokenSource oauth2.TokenSource

	// Scope separates cached responses of different users (e.g. the username).
	Scope string

	// UserAgent header
	UserAgent string

	// Redis client for caching and rate limit state
	Redis *redis.Client

	// Timeout per HTTP request
	Timeout time.Duration

	// RemainingThreshold blocks requests when fewer than this many remain
	// in the hourly window.
	RemainingThreshold int

	// In-memory cache layer in front of Redis
	MemoryCacheSize int
	MemoryCacheTTL  time.Duration

	// Retry. MaxRetries 0 sends each request once.
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, accessKey string) Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		AccessKey:          accessKey,
		UserAgent:          "plashr/1.0",
		Redis:              redis,
		Timeout:            30 * time.Second,
		RemainingThreshold: ratelimit.RemainingCritical,
		MemoryCacheSize:    256,
		MemoryCacheTTL:     60 * time.Second,
		MaxRetries:         0,
		InitialBackoff:     1 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.AccessKey == "" && cfg.TokenSource == nil {
		return nil, fmt.Errorf("access key or token source is required")
	}

	if cfg.RemainingThreshold < 0 {
		return nil, fmt.Errorf("remaining_threshold must be >= 0 (got %d)", cfg.RemainingThreshold)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "api-client").Logger()

	th := ratelimit.DefaultThresholds()
	th.Critical = cfg.RemainingThreshold
	if th.Warning < th.Critical {
		th.Warning = th.Critical
	}
	if th.Healthy < th.Warning {
		th.Healthy = th.Warning
	}
	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger).WithThresholds(th)

	cacheManager := cache.NewManagerWithOptions(cfg.Redis, cache.Options{
		MemorySize: cfg.MemoryCacheSize,
		MemoryTTL:  cfg.MemoryCacheTTL,
	})

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: cfg.TokenSource, Base: transport}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		baseURL:     base,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
//
// Responses with 4xx status are returned to the caller unchanged. Server,
// rate-limit and network failures are retried when MaxRetries > 0 and
// returned as errors once attempts run out; HTTP rejections are *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Rate limit gate
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
		apiRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, &APIError{
			StatusCode: http.StatusTooManyRequests,
			ErrorClass: ErrorClassRateLimit,
			Message:    "blocked locally",
			Err:        ErrRateLimited,
		}
	}

	// Cache lookup for reads
	cacheable := req.Method == http.MethodGet
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
		Scope:       c.config.Scope,
	}

	var cachedEntry *cache.CacheEntry
	if cacheable {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	c.setHeaders(req)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.config.MaxRetries+1, c.config.InitialBackoff, func() (ErrorClass, error) {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err := rewindBody(req); err != nil {
			return "", err
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			resp = nil
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			class := c.classifyError(nil, reqErr)
			apiErrorsTotal.WithLabelValues(string(class)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return class, reqErr
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		if resp.StatusCode == http.StatusNotModified {
			return "", nil
		}

		if resp.StatusCode >= 400 {
			class := c.classifyError(resp, nil)
			apiErrorsTotal.WithLabelValues(string(class)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("API request error")

			if shouldRetry(class) {
				apiErr := &APIError{
					StatusCode: resp.StatusCode,
					ErrorClass: class,
					Message:    resp.Status,
				}
				resp.Body.Close()
				resp = nil
				return class, apiErr
			}

			// client errors go back to the caller as responses
			return "", nil
		}

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return "", nil
	})

	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified {
		apiRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		if cachedEntry == nil {
			return resp, nil
		}
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("age", cachedEntry.Age()).
			Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if resp.Header.Get("Expires") != "" || resp.Header.Get("Cache-Control") != "" {
			if fresh, err := cache.ResponseToEntry(resp); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, fresh.Expires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")
	if c.config.TokenSource == nil {
		req.Header.Set("Authorization", "Client-ID "+c.config.AccessKey)
	}
}

// rewindBody resets a request body before a retry.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// classifyError categorizes a failure for observability and retry decisions.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get(ratelimit.HeaderRemaining) == "0":
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// URL resolves an API path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// NewRequest builds a request for an API path. A non-nil body is sent as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Get performs a GET request to an API path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, query, body)
}

// Put performs a PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, path, query, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, path, query, nil)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ping checks the Redis backend the client depends on.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
