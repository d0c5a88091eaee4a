package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	makoConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mako_throttle_consecutive_errors",
		Help: "Consecutive 429 and 5xx responses since the last success",
	})

	makoThrottleBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mako_throttle_blocks_total",
		Help: "Total number of requests blocked by an active 429 block",
	})

	makoThrottleThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mako_throttle_throttles_total",
		Help: "Total number of requests delayed due to consecutive server errors",
	})
)

// Tracker records throttle signals from responses and gates requests.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
	delay  time.Duration
}

// NewTracker creates a tracker over store. A nil store keeps state in memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		delay:  ThrottleDelay,
	}
}

// GetState returns the current throttle state.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load throttle state: %w", err)
	}
	return state, nil
}

// UpdateFromResponse records the throttle signal carried by a response.
// 429 starts a block for Retry-After (DefaultRetryAfter when absent), 5xx
// extends the error run and any status below 400 ends it.
func (t *Tracker) UpdateFromResponse(ctx context.Context, status int, headers http.Header) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	now := t.now()
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := ParseRetryAfter(headers.Get("Retry-After"), now)
		state.BlockedUntil = now.Add(retryAfter)
		state.ConsecutiveErrors++

		t.logger.Error().
			Dur("retry_after", retryAfter).
			Time("blocked_until", state.BlockedUntil).
			Msg("Upstream rate limit hit - requests will be blocked")

	case status >= 500:
		state.ConsecutiveErrors++
		if state.ConsecutiveErrors >= ConsecutiveErrorsWarning {
			t.logger.Warn().
				Int("consecutive_errors", state.ConsecutiveErrors).
				Msg("Consecutive server errors - requests will be throttled")
		}

	case status < 400:
		if state.ConsecutiveErrors == 0 {
			return nil
		}
		state.ConsecutiveErrors = 0
		t.logger.Info().Msg("Throttle state recovered")

	default:
		return nil
	}

	state.LastUpdate = now
	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save throttle state: %w", err)
	}
	makoConsecutiveErrors.Set(float64(state.ConsecutiveErrors))

	return nil
}

// ShouldAllowRequest checks whether a request may be sent now.
// Returns false while a 429 block is active.
// Returns true but may pause first if throttling applies.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get throttle state: %w", err)
	}

	now := t.now()
	if state.NeedsBlock(now) {
		t.logger.Error().
			Dur("wait_duration", state.TimeUntilUnblock(now)).
			Msg("Upstream rate limit block active - blocking request")

		makoThrottleBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(now) {
		t.logger.Warn().
			Int("consecutive_errors", state.ConsecutiveErrors).
			Msg("Consecutive server errors - throttling request")

		makoThrottleThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.delay):
		}
	}

	return true, nil
}

// ParseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Missing or invalid values yield DefaultRetryAfter.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}
