// Package ratelimit paces calls to the remote service. It is a thin layer
// over golang.org/x/time/rate so the API client can depend on an interface
// and tests can substitute Unlimited.
package ratelimit
