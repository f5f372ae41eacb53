package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every cache key written by this package.
const KeyPrefix = "plashr"

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/topics/{slug}/photos")
	Endpoint string

	// PathParams are the path parameters (e.g., {"slug": "nature"})
	PathParams map[string]string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values

	// Scope separates responses that depend on the caller, such as
	// liked_by_user flags for an authenticated user. Empty for public data.
	Scope string
}

// String generates a deterministic cache key string.
// Format: plashr:endpoint:param1=val1:query1=val1:scope=name
//
// Example:
//
//	plashr:topics/nature/photos:page=2:per_page=30
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	parts = appendSorted(parts, len(k.PathParams), func(yield func(string, string)) {
		for key, val := range k.PathParams {
			yield(key, val)
		}
	})

	parts = appendSorted(parts, len(k.QueryParams), func(yield func(string, string)) {
		for key := range k.QueryParams {
			yield(key, strings.Join(k.QueryParams[key], ","))
		}
	})

	if k.Scope != "" {
		parts = append(parts, fmt.Sprintf("scope=%s", k.Scope))
	}

	return strings.Join(parts, ":")
}

func appendSorted(parts []string, n int, each func(yield func(string, string))) []string {
	if n == 0 {
		return parts
	}
	pairs := make([]string, 0, n)
	each(func(key, val string) {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, val))
	})
	sort.Strings(pairs)
	return append(parts, pairs...)
}
