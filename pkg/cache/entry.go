// Package cache provides API response caching with a Redis backend
// and ETag support for conditional requests.
package cache

import (
	"net/http"
	"time"
)

// CacheEntry is one stored API response. It stays in Redis until Expires;
// while it is stored, requests for the same key carry its validators and a
// 304 answer is served from Data.
type CacheEntry struct {
	Data       []byte      `json:"data"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// Validators echoed as If-None-Match and If-Modified-Since.
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`

	CachedAt time.Time `json:"cached_at"`
	Expires  time.Time `json:"expires"`
}

// IsExpired reports whether the entry may no longer be served.
func (e *CacheEntry) IsExpired() bool {
	return e.ttlAt(time.Now()) == 0
}

// TTL is the remaining lifetime, 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	return e.ttlAt(time.Now())
}

func (e *CacheEntry) ttlAt(now time.Time) time.Duration {
	return max(e.Expires.Sub(now), 0)
}

// Age is how long ago the response was stored.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Revalidatable reports whether the entry has a validator to send back.
func (e *CacheEntry) Revalidatable() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

// Size is the approximate number of bytes the entry occupies.
func (e *CacheEntry) Size() int {
	n := len(e.Data) + len(e.ETag)
	for k, vs := range e.Headers {
		n += len(k)
		for _, v := range vs {
			n += len(v)
		}
	}
	return n
}
