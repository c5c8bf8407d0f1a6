package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/repository"
)

func TestRetry(t *testing.T) {
	p := RetryPolicy{Attempts: 4, Initial: time.Millisecond, Max: time.Millisecond}
	log := zap.NewNop()

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		v, err := retry(context.Background(), p, log, "op", func() (int, error) {
			calls++
			if calls < 3 {
				return 0, fmt.Errorf("%w: deadlock", repository.ErrTransient)
			}
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops at once", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), p, log, "op", func() (int, error) {
			calls++
			return 0, &ConflictError{}
		})
		assert.ErrorIs(t, err, ErrConflict)
		var ce *ConflictError
		assert.True(t, errors.As(err, &ce))
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted attempts surface as transient", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), p, log, "op", func() (int, error) {
			calls++
			return 0, repository.ErrTransient
		})
		assert.ErrorIs(t, err, ErrTransient)
		assert.ErrorIs(t, err, repository.ErrTransient)
		assert.Equal(t, 4, calls)
	})
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, DefaultRetryPolicy(), p)

	p = RetryPolicy{Attempts: 2, Initial: 10 * time.Millisecond}.withDefaults()
	assert.Equal(t, 200*time.Millisecond, p.Max)
}
