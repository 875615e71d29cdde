package retryhttp

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Policy describes how transient failures are retried.  MaxAttempts counts
// the first request, so a policy with MaxAttempts 1 never retries.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	Multiplier        float64
	RetryableStatuses []int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		Multiplier:        2,
		RetryableStatuses: []int{500, 502, 503, 504},
	}
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry policy needs at least one attempt")
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return errors.New("retry policy backoff must not be negative")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return errors.New("retry policy multiplier must be at least 1")
	}
	return nil
}

func (p Policy) IsRetryableStatus(statusCode int) bool {
	return slices.Contains(p.RetryableStatuses, statusCode)
}

// Schedule returns the waits between consecutive attempts.
func (p Policy) Schedule() []time.Duration {
	b := p.newBackOff(context.Background())

	var waits []time.Duration
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			break
		}
		waits = append(waits, next)
	}
	return waits
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.InitialBackoff
	expBackoff.MaxInterval = p.MaxBackoff
	expBackoff.RandomizationFactor = 0
	expBackoff.MaxElapsedTime = 0
	if p.Multiplier != 0 {
		expBackoff.Multiplier = p.Multiplier
	}
	expBackoff.Reset()

	maxRetries := 0
	if p.MaxAttempts > 1 {
		maxRetries = p.MaxAttempts - 1
	}

	return backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(maxRetries)), ctx)
}
