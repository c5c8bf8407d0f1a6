package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/repository"
)

// RetryPolicy bounds the retries of transient storage failures.
type RetryPolicy struct {
	Attempts int           // total attempts including the first
	Initial  time.Duration // first backoff interval
	Max      time.Duration // cap on a single backoff interval
}

// DefaultRetryPolicy is used when a zero policy is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 50 * time.Millisecond, Max: time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts < 1 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial * 20
	}
	return p
}

// Settings configures the services.
type Settings struct {
	Retry        RetryPolicy
	MaxRangeDays int              // longest range accepted by BulkBookedSlots
	Clock        func() time.Time // defaults to time.Now
}

func (s Settings) withDefaults() Settings {
	s.Retry = s.Retry.withDefaults()
	if s.MaxRangeDays < 1 {
		s.MaxRangeDays = 62
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// retry runs fn until it succeeds, fails permanently or the attempts are
// used up.  Only repository.ErrTransient is retried; conflicts, validation
// failures and coupon rejections return on the first attempt.  Exhausted
// retries surface as ErrTransient.
func retry[T any](ctx context.Context, p RetryPolicy, log *zap.Logger, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !repository.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("retrying after transient storage failure",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	// The last attempt returns its error as is, still wrapped.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if err != nil && repository.IsTransient(err) {
		return res, fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return res, fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}
	return res, err
}
