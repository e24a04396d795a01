package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries of transient capability failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy is 3 attempts with exponential backoff from 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 200 * time.Millisecond}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := p.BaseBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
}

// do runs fn under the policy. Validation failures and context cancellation
// are returned immediately; everything else is retried.
func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func isPermanent(err error) bool {
	return domain.HasCode(err, domain.ErrCodeValidation) ||
		domain.HasCode(err, domain.ErrCodeInvalidParameter) ||
		domain.HasCode(err, domain.ErrCodeInvalidQuizState) ||
		domain.HasCode(err, domain.ErrCodeNotFound)
}
