package collector

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/danielbelay23/data-pipelines/pkg/store"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

var sourcePolicy = bluemonday.StrictPolicy()

// UserKey identifies a followed account
func UserKey(u twitter.User) string { return u.ID }

// TweetKey identifies a tweet
func TweetKey(t twitter.Tweet) string { return t.ID }

// ProjectUser maps a user onto the persisted following schema
func ProjectUser(u twitter.User) store.Following {
	return store.Following{
		ID:          u.ID,
		Username:    u.ScreenName,
		Name:        u.Name,
		URL:         twitter.ProfileURL(u.ScreenName),
		Description: deref(u.Description, ""),
	}
}

// ProjectTweet maps a tweet onto the persisted timeline schema. Absent
// optional fields get defaults; projection never fails.
func ProjectTweet(t twitter.Tweet) store.Tweet {
	out := store.Tweet{
		ID:            t.ID,
		Text:          t.Body(),
		CreatedAt:     deref(t.CreatedAt, ""),
		RetweetCount:  t.RetweetCount.Value,
		FavoriteCount: t.FavoriteCount.Value,
		ViewCount:     t.ViewCount.Ptr(),
		Media:         projectMedia(t.MediaItems()),
		Entities:      t.Entities,
		URLs:          entityList(t.Entities, "urls"),
		Hashtags:      entityList(t.Entities, "hashtags"),
		IsRetweet:     t.Retweeted != nil,
		IsQuote:       t.Quoted != nil,
		Lang:          deref(t.Lang, ""),
		Source:        SanitizeSource(deref(t.Source, "")),
	}
	if t.User != nil {
		out.Author = t.User.ScreenName
		out.AuthorName = t.User.Name
	}
	if out.Entities == nil {
		out.Entities = map[string]interface{}{}
	}
	if out.Lang == "" {
		out.Lang = "unknown"
	}

	if q := t.Quoted; q != nil {
		text := q.Body()
		quote := &store.QuoteTweet{ID: q.ID, Text: &text, Media: projectMedia(q.MediaItems())}
		if q.User != nil {
			author := q.User.ScreenName
			quote.Author = &author
		}
		out.QuoteTweet = quote
	}
	return out
}

func projectMedia(items []twitter.Media) []store.Media {
	out := make([]store.Media, 0, len(items))
	for _, m := range items {
		mediaURL := deref(m.MediaURLHTTPS, deref(m.MediaURL, ""))
		sizes := m.Sizes
		if sizes == nil {
			sizes = map[string]interface{}{}
		}
		out = append(out, store.Media{
			Type:        deref(m.Type, "unknown"),
			URL:         deref(m.URL, ""),
			MediaURL:    mediaURL,
			DisplayURL:  deref(m.DisplayURL, ""),
			ExpandedURL: deref(m.ExpandedURL, ""),
			Sizes:       sizes,
			VideoInfo:   m.VideoInfo,
		})
	}
	return out
}

func entityList(entities map[string]interface{}, key string) []interface{} {
	if list, ok := entities[key].([]interface{}); ok {
		return list
	}
	return []interface{}{}
}

// SanitizeSource reduces the HTML anchor the API returns for a client name
// to its plain text
func SanitizeSource(src string) string {
	if src == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(sourcePolicy.Sanitize(src)))
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
