package ratelimit

import (
	"testing"
	"time"
)

func TestThrottleState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *ThrottleState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &ThrottleState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &ThrottleState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &ThrottleState{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestThrottleState_Decisions(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		state          ThrottleState
		expectBlock    bool
		expectThrottle bool
		expectHealthy  bool
	}{
		{
			name:          "zero state",
			state:         ThrottleState{},
			expectHealthy: true,
		},
		{
			name:        "active block",
			state:       ThrottleState{BlockedUntil: now.Add(30 * time.Second), ConsecutiveErrors: 5},
			expectBlock: true,
		},
		{
			name:          "expired block",
			state:         ThrottleState{BlockedUntil: now.Add(-time.Second)},
			expectHealthy: true,
		},
		{
			name:          "below warning",
			state:         ThrottleState{ConsecutiveErrors: ConsecutiveErrorsWarning - 1},
			expectHealthy: true,
		},
		{
			name:           "at warning",
			state:          ThrottleState{ConsecutiveErrors: ConsecutiveErrorsWarning},
			expectThrottle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsBlock(now); got != tt.expectBlock {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.expectBlock)
			}
			if got := tt.state.NeedsThrottling(now); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if got := tt.state.IsHealthy(now); got != tt.expectHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expectHealthy)
			}
		})
	}
}

func TestThrottleState_TimeUntilUnblock(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	blocked := &ThrottleState{BlockedUntil: now.Add(45 * time.Second)}
	if got := blocked.TimeUntilUnblock(now); got != 45*time.Second {
		t.Errorf("TimeUntilUnblock() = %v, want 45s", got)
	}

	expired := &ThrottleState{BlockedUntil: now.Add(-time.Minute)}
	if got := expired.TimeUntilUnblock(now); got != 0 {
		t.Errorf("TimeUntilUnblock() = %v, want 0", got)
	}
}
