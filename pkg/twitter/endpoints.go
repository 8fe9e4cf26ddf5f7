package twitter

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the REST API host
	DefaultBaseURL = "https://api.twitter.com"

	VerifyCredentialsPath = "/1.1/account/verify_credentials.json"
	UserShowPath          = "/1.1/users/show.json"
	FriendsListPath       = "/1.1/friends/list.json"
	HomeTimelinePath      = "/1.1/statuses/home_timeline.json"

	// MaxPageSize is the largest count either paginated endpoint accepts
	MaxPageSize = 200

	// ProfileURLPrefix prefixes a screen name to form its public profile URL
	ProfileURLPrefix = "https://twitter.com/"
)

// VerifyCredentials returns the account owning the installed cookies
func (c *Client) VerifyCredentials(ctx context.Context) (*User, error) {
	q := url.Values{}
	q.Set("skip_status", "true")

	var user User
	if err := c.GetJSON(ctx, VerifyCredentialsPath, q, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByScreenName looks up a user by handle
func (c *Client) UserByScreenName(ctx context.Context, screenName string) (*User, error) {
	q := url.Values{}
	q.Set("screen_name", SanitizeScreenName(screenName))

	c.logger.DebugWithFields("looking up user", map[string]interface{}{
		"screen_name": screenName,
	})

	var user User
	if err := c.GetJSON(ctx, UserShowPath, q, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Following fetches one page of the accounts userID follows. An empty cursor
// requests the first page; the returned NextCursor is empty on the last page.
func (c *Client) Following(ctx context.Context, userID string, count int, cursor string) (*FriendsPage, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("count", strconv.Itoa(clampCount(count)))
	q.Set("skip_status", "true")
	q.Set("include_user_entities", "false")
	if cursor == "" {
		cursor = "-1"
	}
	q.Set("cursor", cursor)

	var page FriendsPage
	if err := c.GetJSON(ctx, FriendsListPath, q, &page); err != nil {
		return nil, err
	}
	if page.NextCursor == "0" {
		page.NextCursor = ""
	}
	return &page, nil
}

// HomeTimeline fetches one page of the home timeline, newest first. The
// cursor is a max_id; the next cursor is one below the oldest id returned.
func (c *Client) HomeTimeline(ctx context.Context, count int, cursor string) (*TimelinePage, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(clampCount(count)))
	q.Set("tweet_mode", "extended")
	q.Set("include_entities", "true")
	if cursor != "" {
		q.Set("max_id", cursor)
	}

	var tweets []Tweet
	if err := c.GetJSON(ctx, HomeTimelinePath, q, &tweets); err != nil {
		return nil, err
	}
	return &TimelinePage{Tweets: tweets, NextCursor: nextMaxID(tweets)}, nil
}

// nextMaxID returns the max_id that continues below the oldest tweet, or ""
// when there is nothing further to request.
func nextMaxID(tweets []Tweet) string {
	var oldest uint64
	for _, t := range tweets {
		id, err := strconv.ParseUint(t.ID, 10, 64)
		if err != nil {
			continue
		}
		if oldest == 0 || id < oldest {
			oldest = id
		}
	}
	if oldest <= 1 {
		return ""
	}
	return strconv.FormatUint(oldest-1, 10)
}

func clampCount(count int) int {
	if count <= 0 || count > MaxPageSize {
		return MaxPageSize
	}
	return count
}

// ProfileURL returns the public profile URL for a screen name
func ProfileURL(screenName string) string {
	return ProfileURLPrefix + screenName
}

// SanitizeScreenName strips a leading @ and surrounding slashes or spaces
func SanitizeScreenName(screenName string) string {
	s := strings.TrimSpace(screenName)
	s = strings.TrimPrefix(s, "@")
	return strings.Trim(s, "/ ")
}
