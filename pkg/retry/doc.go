// Package retry re-runs transient operations with backoff.
//
// Do stops at the first success, at the first non-retryable error (returned
// as is), or after MaxAttempts retryable failures (returned wrapped in
// ExhaustedError). Expired sessions and verification challenges are never
// retried by DefaultRetryIf.
package retry
