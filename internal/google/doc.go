// Package google manages OAuth2 credentials for Gmail access.
//
// Each account gets a Store that owns its credential: the out-of-band
// authorization flow, durable token persistence under the user cache
// directory, transparent serialized refresh and invalidation on revocation.
package google
