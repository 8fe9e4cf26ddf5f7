package collector

import (
	"context"

	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

// FollowingClient fetches pages of followed accounts
type FollowingClient interface {
	Following(ctx context.Context, userID string, count int, cursor string) (*twitter.FriendsPage, error)
}

// TimelineClient fetches pages of the home timeline
type TimelineClient interface {
	HomeTimeline(ctx context.Context, count int, cursor string) (*twitter.TimelinePage, error)
}

// FollowingSource pages through the accounts UserID follows
type FollowingSource struct {
	Client   FollowingClient
	UserID   string
	PageSize int
}

func (s FollowingSource) FetchPage(ctx context.Context, cursor string) (Page[twitter.User], error) {
	resp, err := s.Client.Following(ctx, s.UserID, s.PageSize, cursor)
	if err != nil {
		return Page[twitter.User]{}, err
	}
	return Page[twitter.User]{Items: resp.Users, Cursor: resp.NextCursor}, nil
}

// TimelineSource pages through the home timeline
type TimelineSource struct {
	Client   TimelineClient
	PageSize int
}

func (s TimelineSource) FetchPage(ctx context.Context, cursor string) (Page[twitter.Tweet], error) {
	resp, err := s.Client.HomeTimeline(ctx, s.PageSize, cursor)
	if err != nil {
		return Page[twitter.Tweet]{}, err
	}
	return Page[twitter.Tweet]{Items: resp.Tweets, Cursor: resp.NextCursor}, nil
}
