package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Header names sent by the photo API.
const (
	HeaderLimit     = "X-Ratelimit-Limit"
	HeaderRemaining = "X-Ratelimit-Remaining"
)

var (
	remainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plashr_ratelimit_remaining",
		Help: "Requests remaining in the current rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plashr_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the budget is exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plashr_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the budget is low",
	})
)

// Tracker monitors the request budget and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	thresholds    Thresholds
	throttleDelay time.Duration
}

// NewTracker creates a tracker with default thresholds and a one second throttle.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		thresholds:    DefaultThresholds(),
		throttleDelay: time.Second,
	}
}

// WithThresholds returns the tracker using th.
func (t *Tracker) WithThresholds(th Thresholds) *Tracker {
	t.thresholds = th
	return t
}

// WithThrottleDelay sets how long a throttled request waits.
func (t *Tracker) WithThrottleDelay(d time.Duration) *Tracker {
	t.throttleDelay = d
	return t
}

// Thresholds returns the active thresholds.
func (t *Tracker) Thresholds() Thresholds {
	return t.thresholds
}

// GetState retrieves the current state from Redis.
// Returns a healthy default if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyLimit, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if vals[1] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy")
		return &RateLimitState{
			Limit:      0,
			Remaining:  t.thresholds.Healthy,
			ResetAt:    time.Now().Add(Window),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	ints := make([]int64, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit value type %T", v)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse rate limit value %q: %w", s, err)
		}
		ints[i] = n
	}

	state := &RateLimitState{
		Limit:      int(ints[0]),
		Remaining:  int(ints[1]),
		ResetAt:    time.Unix(ints[2], 0),
		LastUpdate: time.UnixMilli(ints[3]),
	}
	state.UpdateHealth(t.thresholds)

	return state, nil
}

// UpdateFromHeaders parses the rate limit headers and stores the new state.
// Responses without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()

	// Keep the current window's reset time unless it has passed.
	resetAt := now.Add(Window)
	if prev, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64(); err == nil {
		if existing := time.Unix(prev, 0); existing.After(now) {
			resetAt = existing
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get reset timestamp: %w", err)
	}

	state := &RateLimitState{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth(t.thresholds)

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyLimit, limit, 0)
	pipe.Set(ctx, RedisKeyRemaining, remain, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	remainingGauge.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(t.thresholds):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted - requests will be blocked")
	case state.NeedsThrottling(t.thresholds):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// In the warning band it waits for the throttle delay first, returning the
// context error if ctx ends while waiting.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock(t.thresholds) {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit exhausted - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(t.thresholds) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.Inc()

		if t.throttleDelay > 0 {
			timer := time.NewTimer(t.throttleDelay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return true, nil
}
