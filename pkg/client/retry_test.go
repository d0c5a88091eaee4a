package client

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var quietLogger = zerolog.New(os.Stderr).Level(zerolog.Disabled)

// msRetry mirrors RetryConfigForErrorClass with millisecond backoffs.
func msRetry(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	rc.InitialBackoff /= 100
	rc.MaxBackoff /= 100
	return rc
}

func classAs(class ErrorClass) func(error) ErrorClass {
	return func(error) ErrorClass { return class }
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name             string
		errorClass       ErrorClass
		expectedInitial  time.Duration
		expectedMax      time.Duration
		expectedAttempts int
	}{
		{
			name:             "server error config",
			errorClass:       ErrorClassServer,
			expectedInitial:  1 * time.Second,
			expectedMax:      10 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "rate limit config",
			errorClass:       ErrorClassRateLimit,
			expectedInitial:  5 * time.Second,
			expectedMax:      60 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "network error config",
			errorClass:       ErrorClassNetwork,
			expectedInitial:  2 * time.Second,
			expectedMax:      30 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "unknown error class uses default",
			errorClass:       "",
			expectedInitial:  1 * time.Second,
			expectedMax:      30 * time.Second,
			expectedAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)

			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != tt.expectedAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedAttempts)
			}
		})
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		return nil
	}

	err := retryWithBackoff(context.Background(), quietLogger, msRetry, fn, classAs(ErrorClassServer))

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	start := time.Now()
	err := retryWithBackoff(context.Background(), quietLogger, msRetry, fn, classAs(ErrorClassServer))
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success after retry, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
	// ~10ms then ~20ms of backoff, minus jitter
	if duration < 20*time.Millisecond {
		t.Errorf("Expected some backoff delay, got %v", duration)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")
	fn := func() error {
		callCount++
		return testErr
	}

	err := retryWithBackoff(context.Background(), quietLogger, msRetry, fn, classAs(ErrorClassServer))

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected last error to stay wrapped, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorNoRetry(t *testing.T) {
	callCount := 0
	testErr := errors.New("client error")
	fn := func() error {
		callCount++
		return testErr
	}

	err := retryWithBackoff(context.Background(), quietLogger, msRetry, fn, classAs(ErrorClassClient))

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted for client errors (no retry attempted)")
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callCount := 0
	fn := func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("error")
	}

	err := retryWithBackoff(ctx, quietLogger, RetryConfigForErrorClass, fn, classAs(ErrorClassServer))

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled to stay wrapped, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	timestamps := []time.Time{}
	fn := func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("error")
	}

	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    20 * time.Millisecond,
			MaxBackoff:        time.Second,
			BackoffMultiplier: 3.0,
		}
	}
	_ = retryWithBackoff(context.Background(), quietLogger, policy, fn, classAs(ErrorClassServer))

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	// [16ms, 24ms] then [48ms, 72ms]
	if firstDelay < 16*time.Millisecond {
		t.Errorf("First retry delay %v below jitter range", firstDelay)
	}
	if secondDelay < 48*time.Millisecond {
		t.Errorf("Second retry delay %v below jitter range", secondDelay)
	}
	if secondDelay <= firstDelay {
		t.Errorf("Second delay (%v) not larger than first (%v)", secondDelay, firstDelay)
	}
}

func TestRetryWithBackoff_RetryAfterStretchesBackoff(t *testing.T) {
	timestamps := []time.Time{}
	fn := func() error {
		timestamps = append(timestamps, time.Now())
		if len(timestamps) == 1 {
			return &APIError{StatusCode: 429, ErrorClass: ErrorClassRateLimit, RetryAfter: 40 * time.Millisecond}
		}
		return nil
	}

	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Second,
			BackoffMultiplier: 2.0,
		}
	}
	err := retryWithBackoff(context.Background(), quietLogger, policy, fn, classifyError)
	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}

	if delay := timestamps[1].Sub(timestamps[0]); delay < 40*time.Millisecond {
		t.Errorf("Retry delay %v shorter than Retry-After", delay)
	}
}

func TestRetryWithBackoff_RetryAfterCappedByMaxBackoff(t *testing.T) {
	timestamps := []time.Time{}
	fn := func() error {
		timestamps = append(timestamps, time.Now())
		if len(timestamps) == 1 {
			return &APIError{StatusCode: 429, ErrorClass: ErrorClassRateLimit, RetryAfter: time.Hour}
		}
		return nil
	}

	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        10 * time.Millisecond,
			BackoffMultiplier: 2.0,
		}
	}
	if err := retryWithBackoff(context.Background(), quietLogger, policy, fn, classifyError); err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}

	if delay := timestamps[1].Sub(timestamps[0]); delay > time.Second {
		t.Errorf("Retry delay %v not capped by MaxBackoff", delay)
	}
}

func TestRetryWithBackoff_Jitter(t *testing.T) {
	delays := []time.Duration{}

	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    50 * time.Millisecond,
			MaxBackoff:        time.Second,
			BackoffMultiplier: 2.0,
		}
	}

	for i := 0; i < 5; i++ {
		timestamps := []time.Time{}
		fn := func() error {
			timestamps = append(timestamps, time.Now())
			if len(timestamps) < 2 {
				return errors.New("error")
			}
			return nil
		}

		_ = retryWithBackoff(context.Background(), quietLogger, policy, fn, classAs(ErrorClassServer))

		if len(timestamps) >= 2 {
			delays = append(delays, timestamps[1].Sub(timestamps[0]))
		}
	}

	allSame := true
	first := delays[0]
	for _, d := range delays {
		if d < 40*time.Millisecond {
			t.Errorf("Delay %v below jitter range [40ms, 60ms]", d)
		}
		if d != first {
			allSame = false
		}
	}

	if allSame {
		t.Logf("Warning: All delays were the same - jitter may not be working (or very unlucky)")
	}
}

func TestRetryWithBackoff_NilPolicyUsesDefaults(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		return errors.New("client error")
	}

	_ = retryWithBackoff(context.Background(), quietLogger, nil, fn, classAs(ErrorClassClient))

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}
