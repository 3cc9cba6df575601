package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// BackoffLinear waits BaseDelay * (attempt+1).
	BackoffLinear Backoff = iota
	// BackoffExponential waits BaseDelay * 2^attempt with jitter, capped at MaxDelay.
	BackoffExponential
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Delay unit between retries
	MaxDelay    time.Duration // Cap for exponential backoff (0 = uncapped)
	Backoff     Backoff
	Sleep       SleepFunc        // nil uses Sleep
	Retryable   func(error) bool // nil uses IsRetryable
}

// NetworkRetryConfig retries transport failures up to maxRetries times with
// exponential backoff from baseDelay, capped at four times baseDelay.
func NetworkRetryConfig(baseDelay time.Duration, maxRetries int, sleep SleepFunc) RetryConfig {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryConfig{
		MaxAttempts: maxRetries + 1,
		BaseDelay:   baseDelay,
		MaxDelay:    4 * baseDelay,
		Backoff:     BackoffExponential,
		Sleep:       sleep,
		Retryable:   IsTransient,
	}
}

// RateLimitRetryConfig retries a 429 up to maxRetries times, waiting delay*(attempt+1) between tries.
func RateLimitRetryConfig(delay time.Duration, maxRetries int, sleep SleepFunc) RetryConfig {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryConfig{
		MaxAttempts: maxRetries + 1,
		BaseDelay:   delay,
		Backoff:     BackoffLinear,
		Sleep:       sleep,
	}
}

// RetryWithConfig executes the operation with the specified retry configuration.
// Only errors accepted by cfg.Retryable are repeated.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	var err error

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !retryable(err) {
			return result, err
		}

		if attempt < attempts-1 {
			if sleepErr := sleep(ctx, cfg.delay(attempt)); sleepErr != nil {
				return result, sleepErr
			}
		}
	}

	return result, fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
}

// delay returns the wait before the attempt following attempt.
func (c RetryConfig) delay(attempt int) time.Duration {
	if c.Backoff == BackoffLinear {
		return c.BaseDelay * time.Duration(attempt+1)
	}
	return calculateDelay(attempt, c.BaseDelay, c.MaxDelay)
}

// calculateDelay calculates exponential backoff with jitter in [delay/2, delay).
func calculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half) //nolint:gosec // G404: Jitter does not require cryptographic randomness
}

// Sleep waits for d or returns ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err is an explorer rate limit.
func IsRetryable(err error) bool {
	return err != nil && errors.Is(err, vigilerr.ErrRateLimited)
}

// IsTransient reports whether err is a transport failure worth repeating.
// Caller cancellation is not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, vigilerr.ErrNetwork)
}

// ParseRetryAfter parses the Retry-After header value.
// Returns the duration to wait, or 0 if parsing fails.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
