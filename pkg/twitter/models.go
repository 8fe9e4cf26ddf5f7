package twitter

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// User is the subset of a user object the pipeline reads
type User struct {
	ID          string  `json:"id_str"`
	ScreenName  string  `json:"screen_name"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// FriendsPage is one page of friends/list
type FriendsPage struct {
	Users      []User `json:"users"`
	NextCursor string `json:"next_cursor_str"`
}

// TimelinePage is one page of the home timeline
type TimelinePage struct {
	Tweets     []Tweet
	NextCursor string
}

// Media is an attached photo, video or animated gif. Every field may be absent.
type Media struct {
	Type          *string                `json:"type"`
	URL           *string                `json:"url"`
	MediaURLHTTPS *string                `json:"media_url_https"`
	MediaURL      *string                `json:"media_url"`
	DisplayURL    *string                `json:"display_url"`
	ExpandedURL   *string                `json:"expanded_url"`
	Sizes         map[string]interface{} `json:"sizes"`
	VideoInfo     map[string]interface{} `json:"video_info"`
}

// ExtendedEntities carries the full media list
type ExtendedEntities struct {
	Media []Media `json:"media"`
}

// Tweet is a status as returned with tweet_mode=extended
type Tweet struct {
	ID               string                 `json:"id_str"`
	FullText         *string                `json:"full_text"`
	Text             *string                `json:"text"`
	User             *User                  `json:"user"`
	CreatedAt        *string                `json:"created_at"`
	RetweetCount     FlexInt                `json:"retweet_count"`
	FavoriteCount    FlexInt                `json:"favorite_count"`
	ViewCount        FlexInt                `json:"view_count"`
	Entities         map[string]interface{} `json:"entities"`
	ExtendedEntities *ExtendedEntities      `json:"extended_entities"`
	Quoted           *Tweet                 `json:"quoted_status"`
	Retweeted        *Tweet                 `json:"retweeted_status"`
	Lang             *string                `json:"lang"`
	Source           *string                `json:"source"`
}

// Body returns full_text, falling back to text
func (t *Tweet) Body() string {
	switch {
	case t.FullText != nil:
		return *t.FullText
	case t.Text != nil:
		return *t.Text
	default:
		return ""
	}
}

// MediaItems returns the attached media, preferring extended_entities
func (t *Tweet) MediaItems() []Media {
	if t.ExtendedEntities != nil && len(t.ExtendedEntities.Media) > 0 {
		return t.ExtendedEntities.Media
	}
	raw, ok := t.Entities["media"]
	if !ok {
		return nil
	}
	// entities.media is only held as a generic map; round-trip it into Media
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var media []Media
	if err := json.Unmarshal(data, &media); err != nil {
		return nil
	}
	return media
}

// FlexInt decodes a count that may arrive as a number, a numeric string or
// null. Anything it cannot read, such as "1.2K", decodes as not valid.
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil || s == "" {
			return nil
		}
		data = []byte(s)
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return nil
		}
		n = int64(fl)
	}
	*f = FlexInt{Value: n, Valid: true}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// Ptr returns nil for an absent value
func (f FlexInt) Ptr() *int64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
