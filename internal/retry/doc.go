// Package retry provides a single retry-policy abstraction shared by the
// mail gateway and the LLM client.
//
// Callers supply a classifier that decides whether an error is transient
// (rate limit, server-side failure) or permanent; only transient errors are
// retried, with exponential backoff and jitter from cenkalti/backoff.
package retry
