package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/schedule"
	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

// Authenticator establishes the remote session
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context, sess *session.Session) error
	User() *twitter.User
}

// Client is the remote API surface the pipeline pages through
type Client interface {
	UserByScreenName(ctx context.Context, screenName string) (*twitter.User, error)
	Following(ctx context.Context, userID string, count int, cursor string) (*twitter.FriendsPage, error)
	HomeTimeline(ctx context.Context, count int, cursor string) (*twitter.TimelinePage, error)
}

// Gate decides whether the following collection runs
type Gate interface {
	Decide(now time.Time) (schedule.Decision, error)
}

// Notifier receives the end-of-run summary
type Notifier interface {
	Notify(ctx context.Context, s session.Summary) error
}

// RunLock excludes concurrent runs
type RunLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}
