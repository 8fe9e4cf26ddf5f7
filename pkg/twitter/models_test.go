package twitter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIntDecoding(t *testing.T) {
	tests := []struct {
		in    string
		value int64
		valid bool
	}{
		{`12`, 12, true},
		{`"1534"`, 1534, true},
		{`null`, 0, false},
		{`""`, 0, false},
		{`3.0`, 3, true},
		{`"many"`, 0, false},
		{`"1.2K"`, 0, false},
		{`true`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexInt
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.value, f.Value)
			assert.Equal(t, tt.valid, f.Valid)
		})
	}
}

func TestTweetWithUnreadableCountStillDecodes(t *testing.T) {
	raw := `{"id_str": "10", "full_text": "hi", "retweet_count": 3, "view_count": "1.2K"}`

	var tw Tweet
	require.NoError(t, json.Unmarshal([]byte(raw), &tw))
	assert.Equal(t, int64(3), tw.RetweetCount.Value)
	assert.False(t, tw.ViewCount.Valid)
	assert.Nil(t, tw.ViewCount.Ptr())
}

func TestFlexIntPtr(t *testing.T) {
	assert.Nil(t, FlexInt{}.Ptr())
	assert.Equal(t, int64(5), *FlexInt{Value: 5, Valid: true}.Ptr())
}

func TestTweetDecodesNestedAndMedia(t *testing.T) {
	raw := `{
		"id_str": "10",
		"full_text": "look",
		"user": {"id_str": "1", "screen_name": "a", "name": "A"},
		"entities": {"hashtags": [{"text": "go"}], "media": [{"type": "photo", "url": "https://t.co/x"}]},
		"quoted_status": {"id_str": "9", "full_text": "quoted", "user": {"screen_name": "b"}},
		"source": "<a href=\"https://example.com\">Web App</a>"
	}`

	var tw Tweet
	require.NoError(t, json.Unmarshal([]byte(raw), &tw))

	assert.Equal(t, "a", tw.User.ScreenName)
	require.NotNil(t, tw.Quoted)
	assert.Equal(t, "quoted", tw.Quoted.Body())
	assert.Nil(t, tw.Retweeted)
	assert.False(t, tw.RetweetCount.Valid)

	media := tw.MediaItems()
	require.Len(t, media, 1)
	assert.Equal(t, "photo", *media[0].Type)
	assert.Nil(t, media[0].MediaURLHTTPS)
}

func TestMediaItemsPrefersExtended(t *testing.T) {
	photo, video := "photo", "video"
	tw := Tweet{
		Entities:         map[string]interface{}{"media": []interface{}{map[string]interface{}{"type": photo}}},
		ExtendedEntities: &ExtendedEntities{Media: []Media{{Type: &video}}},
	}
	require.Len(t, tw.MediaItems(), 1)
	assert.Equal(t, "video", *tw.MediaItems()[0].Type)
}
