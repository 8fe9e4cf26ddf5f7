// Package retry holds the waiting primitives shared by the collectors and the
// outbound integrations: cancellable sleeps, jittered ranges, per-kind
// cooldowns and a small bounded retry loop with exponential backoff.
//
// Collectors do not use Do; they retry the same cursor themselves using
// Cooldowns.For so every attempt is counted against the session. Do is for
// one-shot side effects such as database pings and broker publishes:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return db.PingContext(ctx)
//	}, &retry.Config{MaxAttempts: 5, Backoff: retry.DefaultExponentialBackoff()})
package retry
