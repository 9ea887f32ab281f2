package service

import (
	"context"
	"log/slog"
	"time"

	"atelier-sync-core/internal/logging"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 4
	// DefaultBaseDelay is the first backoff delay; it doubles per attempt.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the doubling.
	DefaultMaxDelay = 8 * time.Second
)

// RetryPolicy wraps adapter calls with bounded exponential backoff.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		sleep:      time.Sleep,
	}
}

// Do runs fn up to MaxRetries+1 times, sleeping with doubling delay between
// attempts. The last error is returned only after every attempt fails; a
// canceled context stops the retries early.
func (p *RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxRetries {
			break
		}

		delay := p.delayFor(attempt)
		logging.Warn("operation failed, backing off",
			logging.Operation(operation),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			logging.Err(lastErr),
		)
		p.sleep(delay)
	}

	return lastErr
}

func (p *RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay << attempt
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
