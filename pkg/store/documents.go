package store

// Following is one followed account as persisted in following.json
type Following struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Media is one attachment of a persisted tweet
type Media struct {
	Type        string                 `json:"type"`
	URL         string                 `json:"url"`
	MediaURL    string                 `json:"media_url"`
	DisplayURL  string                 `json:"display_url"`
	ExpandedURL string                 `json:"expanded_url"`
	Sizes       map[string]interface{} `json:"sizes"`
	VideoInfo   map[string]interface{} `json:"video_info"`
}

// QuoteTweet is the embedded summary of a quoted tweet
type QuoteTweet struct {
	ID     string  `json:"id"`
	Text   *string `json:"text"`
	Author *string `json:"author"`
	Media  []Media `json:"media"`
}

// Tweet is one timeline entry as persisted in tweets.json
type Tweet struct {
	ID            string                 `json:"id"`
	Text          string                 `json:"text"`
	Author        string                 `json:"author"`
	AuthorName    string                 `json:"author_name"`
	CreatedAt     string                 `json:"created_at"`
	RetweetCount  int64                  `json:"retweet_count"`
	FavoriteCount int64                  `json:"favorite_count"`
	ViewCount     *int64                 `json:"view_count"`
	Media         []Media                `json:"media"`
	QuoteTweet    *QuoteTweet            `json:"quote_tweet"`
	Entities      map[string]interface{} `json:"entities"`
	URLs          []interface{}          `json:"urls"`
	Hashtags      []interface{}          `json:"hashtags"`
	IsRetweet     bool                   `json:"is_retweet"`
	IsQuote       bool                   `json:"is_quote"`
	Lang          string                 `json:"lang"`
	Source        string                 `json:"source,omitempty"`
}

// Profile caches the collecting account's identity
type Profile struct {
	UserID     string `json:"user_id"`
	ScreenName string `json:"screen_name,omitempty"`
	CachedAt   string `json:"cached_at,omitempty"`
}
