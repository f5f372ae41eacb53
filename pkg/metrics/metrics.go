// Package metrics provides the Prometheus registry used by the plashr packages.
// Metrics are defined next to the code that records them (client, cache,
// ratelimit, pagination, report, download) to avoid import cycles.
//
// This package documents them in one place and exposes the handler served
// by the proxy.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by plashr.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - plashr_api_requests_total{endpoint, status} (Counter)
//   - plashr_api_request_duration_seconds{endpoint} (Histogram)
//   - plashr_api_errors_total{class} (Counter): client, server, rate_limit, network
//   - plashr_api_retries_total{error_class} (Counter)
//   - plashr_api_retry_backoff_seconds{error_class} (Histogram)
//   - plashr_api_retry_exhausted_total{error_class} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - plashr_ratelimit_remaining (Gauge): last X-Ratelimit-Remaining seen
//   - plashr_rate_limit_blocks_total (Counter)
//   - plashr_rate_limit_throttles_total (Counter)
//
// Cache Metrics (pkg/cache):
//   - plashr_cache_hits_total{layer} (Counter): memory, redis
//   - plashr_cache_misses_total (Counter)
//   - plashr_cache_size_bytes{layer} (Gauge)
//   - plashr_304_responses_total (Counter)
//   - plashr_conditional_requests_total (Counter)
//   - plashr_cache_errors_total{operation} (Counter)
//
// Paging Metrics (pkg/pagination):
//   - plashr_pages_loaded_total{source} (Counter)
//   - plashr_page_load_failures_total{source, kind} (Counter)
//   - plashr_page_load_duration_seconds{source} (Histogram)
//
// Reporting Metrics (pkg/report):
//   - plashr_failure_reports_total{reporter} (Counter)
//   - plashr_failure_reports_dropped_total (Counter)
//
// Download Metrics (pkg/download):
//   - plashr_downloads_total{quality, result} (Counter)
//   - plashr_download_bytes_total (Counter)
//
// Example Prometheus Queries:
//
//   # Page failure ratio per source
//   sum by (source) (rate(plashr_page_load_failures_total[5m])) /
//   sum by (source) (rate(plashr_pages_loaded_total[5m]))
//
//   # Hourly budget running low
//   plashr_ratelimit_remaining < 10
//
//   # Cache hit rate
//   sum(rate(plashr_cache_hits_total[5m])) /
//   (sum(rate(plashr_cache_hits_total[5m])) + sum(rate(plashr_cache_misses_total[5m])))
