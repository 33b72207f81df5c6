// Package ratelimit paces requests to the remote collection.
//
// Pacer enforces a fixed minimum delay between consecutive requests and is
// what keeps document downloads and page fetches polite. SlidingWindow adds
// an optional budget per time window. Both implement Limiter and can be
// combined with Chain. Waits honour context cancellation.
package ratelimit
