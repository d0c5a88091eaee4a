// Package ratelimit tracks upstream throttling signals and gates requests.
// A 429 response blocks requests until its Retry-After passes; a run of
// consecutive server errors slows requests down until a success resets it.
// The state can be shared between client instances through Redis.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyBlockedUntil      = "mako:throttle:blocked_until"
	RedisKeyConsecutiveErrors = "mako:throttle:consecutive_errors"
	RedisKeyLastUpdate        = "mako:throttle:last_update"
)

// Thresholds for throttle decisions.
const (
	// ConsecutiveErrorsWarning applies throttling once this many server
	// errors arrived in a row.
	ConsecutiveErrorsWarning = 3

	// DefaultRetryAfter is used when a 429 response carries no usable
	// Retry-After header.
	DefaultRetryAfter = 60 * time.Second

	// ThrottleDelay is the pause applied to each request while throttling.
	ThrottleDelay = 1 * time.Second
)

// ThrottleState is the current upstream throttle state.
type ThrottleState struct {
	// BlockedUntil is when the last 429 block ends. Zero when never blocked.
	BlockedUntil time.Time `json:"blocked_until"`

	// ConsecutiveErrors counts 429 and 5xx responses since the last success.
	ConsecutiveErrors int `json:"consecutive_errors"`

	// LastUpdate is when the state last changed.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock returns true while a 429 block is active at now.
func (s *ThrottleState) NeedsBlock(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// NeedsThrottling returns true when requests should be slowed down.
func (s *ThrottleState) NeedsThrottling(now time.Time) bool {
	return s.ConsecutiveErrors >= ConsecutiveErrorsWarning && !s.NeedsBlock(now)
}

// TimeUntilUnblock returns how long the active block lasts, or 0.
func (s *ThrottleState) TimeUntilUnblock(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsHealthy reports whether no restriction applies at now.
func (s *ThrottleState) IsHealthy(now time.Time) bool {
	return !s.NeedsBlock(now) && !s.NeedsThrottling(now)
}
