package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how transient failures are retried.
// The zero value is not useful; start from DefaultPolicy.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// operation runs at most MaxRetries+1 times.
	MaxRetries uint

	// InitialInterval is the first backoff delay. Subsequent delays grow
	// exponentially with randomized jitter to avoid thundering herds.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay between attempts.
	MaxInterval time.Duration

	// Notify, if set, is called before each sleep with the error that
	// triggered the retry and the upcoming delay.
	Notify func(err error, next time.Duration)
}

// DefaultPolicy returns the shared policy for external API calls: the
// first attempt plus three retries with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do executes op under the policy, retrying errors that transient reports
// as retry-eligible. Non-transient errors stop the loop immediately and are
// returned as-is. Once the initial attempt and MaxRetries retries have all
// failed, the last error is returned.
//
// The context bounds the whole loop including backoff sleeps; individual
// request timeouts are the caller's responsibility.
func Do[T any](ctx context.Context, p Policy, transient func(error) bool, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxRetries + 1),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(p.Notify)))
	}

	return backoff.Retry(ctx, wrapped, opts...)
}

// HTTPStatusTransient reports whether an HTTP status code is retry-eligible:
// rate limiting (429) and server-side errors (5xx). Other 4xx codes are
// permanent by definition.
func HTTPStatusTransient(code int) bool {
	return code == 429 || (code >= 500 && code <= 599)
}
