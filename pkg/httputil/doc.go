// Package httputil provides HTTP helpers for outbound service clients.
//
//   - [Retry]: retry with capped exponential backoff for errors wrapped in
//     [RetryableError], honouring server-requested delays
//   - [PostJSON]: one JSON request/response exchange that classifies
//     failures (network errors, 429 and 5xx are retryable; other non-2xx
//     statuses are returned as [*StatusError])
//
// Usage:
//
//	policy := httputil.Policy{Attempts: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second}
//	err := httputil.Retry(ctx, policy, func() error {
//	    return httputil.PostJSON(ctx, client, url, headers, req, &resp)
//	})
package httputil
