// Package ratelimit tracks the photo API's hourly request budget and gates
// requests. It reads the X-Ratelimit-Limit and X-Ratelimit-Remaining headers
// and keeps the latest state in Redis so every process sharing an access key
// sees the same budget.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit          = "plashr:rate_limit:limit"
	RedisKeyRemaining      = "plashr:rate_limit:remaining"
	RedisKeyResetTimestamp = "plashr:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "plashr:rate_limit:last_update"
)

// Window is the length of the provider's rate limit window.
const Window = time.Hour

// Default thresholds on the remaining request budget.
const (
	// RemainingCritical blocks requests when remaining falls below this value.
	RemainingCritical = 1

	// RemainingWarning throttles requests when remaining falls below this value.
	RemainingWarning = 5

	// RemainingHealthy marks the budget as healthy at or above this value.
	RemainingHealthy = 10
)

// Thresholds holds the decision points for a tracker.
type Thresholds struct {
	Critical int
	Warning  int
	Healthy  int
}

// DefaultThresholds returns the package default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: RemainingCritical,
		Warning:  RemainingWarning,
		Healthy:  RemainingHealthy,
	}
}

// RateLimitState represents the current request budget.
type RateLimitState struct {
	// Limit is the hourly budget from X-Ratelimit-Limit.
	Limit int `json:"limit"`

	// Remaining is the budget left in the window from X-Ratelimit-Remaining.
	Remaining int `json:"remaining"`

	// ResetAt estimates when the window rolls over. The provider sends no
	// reset header, so this is the first observation in a window plus Window.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= the healthy threshold.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A window that has already rolled over never blocks.
func (s *RateLimitState) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining < th.Critical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling(th Thresholds) bool {
	return s.Remaining < th.Warning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock(th)
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth(th Thresholds) {
	s.IsHealthy = s.Remaining >= th.Healthy
}
