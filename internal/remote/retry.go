package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vytor/bunpo/internal/logger"
)

// RetryPolicy bounds how remote calls are attempted.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration // per attempt
	Backoff  time.Duration // multiplied by the attempt number
}

// Retrying wraps a Store so every call gets a per-attempt timeout and is
// retried on ErrUnavailable or an attempt timeout.
type Retrying struct {
	next   Store
	policy RetryPolicy
}

// WithRetry decorates next with policy.
func WithRetry(next Store, policy RetryPolicy) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Retrying{next: next, policy: policy}
}

func retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Retrying) run(ctx context.Context, name string, fn func(context.Context) error) error {
	log := logger.FromContext(ctx).WithPrefix("remote")
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		}
		err = fn(attemptCtx)
		cancel()

		if err == nil || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == r.policy.Attempts {
			break
		}
		log.Debug("%s attempt %d/%d failed: %v", name, attempt, r.policy.Attempts, err)
		if r.policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * r.policy.Backoff):
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		err = errors.Join(ErrUnavailable, err)
	}
	log.Warn("%s gave up after %d attempts: %v", name, r.policy.Attempts, err)
	return err
}

func (r *Retrying) List(ctx context.Context, collection string) ([]Doc, error) {
	var docs []Doc
	err := r.run(ctx, "list "+collection, func(ctx context.Context) error {
		var err error
		docs, err = r.next.List(ctx, collection)
		return err
	})
	return docs, err
}

func (r *Retrying) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var data json.RawMessage
	err := r.run(ctx, "get "+collection+"/"+id, func(ctx context.Context) error {
		var err error
		data, err = r.next.Get(ctx, collection, id)
		return err
	})
	return data, err
}

func (r *Retrying) Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error {
	return r.run(ctx, "set "+collection+"/"+id, func(ctx context.Context) error {
		return r.next.Set(ctx, collection, id, data, merge)
	})
}

func (r *Retrying) Delete(ctx context.Context, collection, id string) error {
	return r.run(ctx, "delete "+collection+"/"+id, func(ctx context.Context) error {
		return r.next.Delete(ctx, collection, id)
	})
}

func (r *Retrying) Commit(ctx context.Context, ops []Op) error {
	return r.run(ctx, "commit", func(ctx context.Context) error {
		return r.next.Commit(ctx, ops)
	})
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.run(ctx, "ping", r.next.Ping)
}
