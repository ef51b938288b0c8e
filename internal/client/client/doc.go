// Package client is the REST side of the mobile banking client.
//
// # Overview
//
// The package provides:
//  1. The backend contract (Client): login, token refresh in either of the
//     two body shapes the backend accepts, logout, profile and health.
//  2. HTTPClient, a net/http implementation that maps non-2xx responses to
//     *StatusError, including the Retry-After hint on 429.
//  3. AuthTransport, an http.RoundTripper that injects the bearer token from
//     a TokenSource, records API activity for the auto-lock timer and replays
//     a request once after refreshing when the server answers 401.
//
// # Error Handling
//
// Callers match errors with errors.Is against ErrUnauthorized (401/403),
// ErrRateLimited (429), ErrUnavailable (network failures and 5xx) and
// ErrBadResponse. StatusCode and RetryAfter extract details.
//
// All operations accept context.Context; HTTP timeouts come from the
// configured request timeout.
package client
