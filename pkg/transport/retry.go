package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// permanentError stops retries
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Caller runs RPC operations with a shared rate limit and exponential backoff
type Caller struct {
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewCaller limits calls to requestsPerSecond (unlimited when <= 0)
func NewCaller(retryConfig RetryConfig, requestsPerSecond float64, logger *zap.Logger) *Caller {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	if retryConfig.MaxAttempts < 1 {
		retryConfig.MaxAttempts = 1
	}
	return &Caller{
		retryConfig: retryConfig,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
	}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out or ctx is done.
func (c *Caller) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	backoff := c.retryConfig.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var permanent *permanentError
		if errors.As(lastErr, &permanent) {
			return permanent.err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}

		c.logger.Sugar().Warnw("RPC call failed",
			"operation", operation,
			"attempt", attempt+1,
			"maxAttempts", c.retryConfig.MaxAttempts,
			"error", lastErr,
		)

		if attempt < c.retryConfig.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", operation, ctx.Err())
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, c.retryConfig.MaxAttempts, lastErr)
}
