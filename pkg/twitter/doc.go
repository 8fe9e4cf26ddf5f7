// Package twitter is a small REST client for the two paginated resources the
// pipeline collects: the account's friends list and its home timeline.
//
// Requests are authenticated with the browser session cookies (auth_token and
// ct0) plus a bearer token, paced by a ratelimit.Limiter, and every non-2xx
// response is classified into an errors.Kind so callers can apply a per-kind
// policy without inspecting HTTP details.
package twitter
