// Package service holds the conversation resolver, the message pipeline and
// the signaling relay.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
)

const defaultStoreTimeout = 3 * time.Second

// storeCaller bounds every store call with a timeout and folds driver
// failures into domain.ErrTransientStore.
type storeCaller struct {
	timeout time.Duration
	metrics *metrics.Metrics
}

func newStoreCaller(timeout time.Duration, m *metrics.Metrics) storeCaller {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return storeCaller{timeout: timeout, metrics: m}
}

func call[T any](ctx context.Context, s storeCaller, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	s.metrics.ObserveStore(op, time.Since(start))
	return v, storeErr(op, err)
}

func exec(ctx context.Context, s storeCaller, op string, fn func(context.Context) error) error {
	_, err := call(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// storeErr keeps domain errors as they are and marks everything else transient.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTransientStore):
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrTransientStore, err)
}
