package twitter

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowingPagination(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FriendsListPath, r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("user_id"))
		assert.Equal(t, "200", r.URL.Query().Get("count"))

		switch r.URL.Query().Get("cursor") {
		case "-1":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"users":           []map[string]interface{}{{"id_str": "1", "screen_name": "a", "name": "A"}},
				"next_cursor_str": "1700",
			})
		case "1700":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"users":           []map[string]interface{}{{"id_str": "2", "screen_name": "b", "name": "B", "description": "hi"}},
				"next_cursor_str": "0",
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	first, err := c.Following(context.Background(), "42", 0, "")
	require.NoError(t, err)
	require.Len(t, first.Users, 1)
	assert.Nil(t, first.Users[0].Description)
	assert.Equal(t, "1700", first.NextCursor)

	second, err := c.Following(context.Background(), "42", 500, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "hi", *second.Users[0].Description)
	assert.Empty(t, second.NextCursor, "cursor 0 marks the last page")
}

func TestHomeTimelineCursor(t *testing.T) {
	var maxIDs []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HomeTimelinePath, r.URL.Path)
		assert.Equal(t, "extended", r.URL.Query().Get("tweet_mode"))
		maxIDs = append(maxIDs, r.URL.Query().Get("max_id"))

		if r.URL.Query().Get("max_id") == "" {
			writeJSON(w, http.StatusOK, []map[string]interface{}{
				{"id_str": "300", "full_text": "newest", "retweet_count": 3},
				{"id_str": "250", "text": "older", "retweet_count": "7", "view_count": nil},
			})
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{})
	})

	page, err := c.HomeTimeline(context.Background(), 200, "")
	require.NoError(t, err)
	require.Len(t, page.Tweets, 2)
	assert.Equal(t, "249", page.NextCursor)
	assert.Equal(t, "newest", page.Tweets[0].Body())
	assert.Equal(t, "older", page.Tweets[1].Body())
	assert.Equal(t, int64(7), page.Tweets[1].RetweetCount.Value)
	assert.False(t, page.Tweets[1].ViewCount.Valid)

	last, err := c.HomeTimeline(context.Background(), 200, page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, last.Tweets)
	assert.Empty(t, last.NextCursor)
	assert.Equal(t, []string{"", "249"}, maxIDs)
}

func TestUserByScreenNameSanitizes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jack", r.URL.Query().Get("screen_name"))
		writeJSON(w, http.StatusOK, map[string]string{"id_str": "12", "screen_name": "jack"})
	})

	u, err := c.UserByScreenName(context.Background(), " @jack/")
	require.NoError(t, err)
	assert.Equal(t, "12", u.ID)
}

func TestNextMaxID(t *testing.T) {
	assert.Equal(t, "", nextMaxID(nil))
	assert.Equal(t, "", nextMaxID([]Tweet{{ID: "not-a-number"}}))
	assert.Equal(t, "9", nextMaxID([]Tweet{{ID: "12"}, {ID: "10"}, {ID: "bad"}}))
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://twitter.com/jack", ProfileURL("jack"))
}
