package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingWriter(n *int) writeFunc {
	return func(path string, v interface{}) error {
		*n++
		return WriteJSON(path, v)
	}
}

func followings(ids ...string) []Following {
	out := make([]Following, 0, len(ids))
	for _, id := range ids {
		out = append(out, Following{ID: id, Username: "u" + id, URL: "https://twitter.com/u" + id})
	}
	return out
}

func tweets(ids ...string) []Tweet {
	out := make([]Tweet, 0, len(ids))
	for _, id := range ids {
		out = append(out, Tweet{ID: id, Text: "t" + id, Lang: "en"})
	}
	return out
}

func TestFollowingMergeIsIdempotent(t *testing.T) {
	s := NewFollowingStore(filepath.Join(t.TempDir(), "following.json"), nil)
	writes := 0
	s.write = countingWriter(&writes)

	added, err := s.Merge(followings("1", "2", "2"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = s.Merge(followings("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, writes, "a merge with nothing new does not rewrite")

	added, err = s.Merge(followings("3"))
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{items[0].ID, items[1].ID, items[2].ID})

	ids, err := s.IDs()
	require.NoError(t, err)
	assert.Contains(t, ids, "3")
}

func TestFollowingLoadMissingIsEmpty(t *testing.T) {
	s := NewFollowingStore(filepath.Join(t.TempDir(), "following.json"), nil)

	items, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFollowingCorruptDocumentIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "following.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "1"`), 0644))

	log := logger.NewTestLogger()
	s := NewFollowingStore(path, log)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	added, err := s.Merge(followings("9"))
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, err = os.Stat(path + ".corrupt-1700000000")
	assert.NoError(t, err)
	assert.True(t, log.HasMessage("Corrupt document quarantined, starting empty"))

	items, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFollowingWriteFailureReportsError(t *testing.T) {
	s := NewFollowingStore(filepath.Join(t.TempDir(), "following.json"), nil)
	s.write = func(string, interface{}) error { return errors.New("disk full") }

	_, err := s.Merge(followings("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	items, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTimelineMergeBucketsByReferenceDate(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	s := NewTimelineStore(filepath.Join(t.TempDir(), "tweets.json"), chicago, nil)
	// 03:00 UTC on the 2nd is still the 1st in Chicago
	s.now = func() time.Time { return time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC) }

	added, err := s.Merge(tweets("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	s.now = func() time.Time { return time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC) }
	added, err = s.Merge(tweets("b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, added, "ids are unique across dates")

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, doc["2024-03-01"], 2)
	assert.Len(t, doc["2024-03-02"], 1)
	assert.Equal(t, 3, doc.Count())
}

func TestTimelineTwoPagesTwoWrites(t *testing.T) {
	s := NewTimelineStore(filepath.Join(t.TempDir(), "tweets.json"), time.UTC, nil)
	writes := 0
	s.write = countingWriter(&writes)

	_, err := s.Merge(tweets("1", "2", "3", "4", "5"))
	require.NoError(t, err)
	_, err = s.Merge(tweets("6", "7", "8", "9", "10"))
	require.NoError(t, err)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 2, writes)
}

func TestTimelineGrowsMonotonically(t *testing.T) {
	s := NewTimelineStore(filepath.Join(t.TempDir(), "tweets.json"), time.UTC, nil)

	prev := 0
	for _, batch := range [][]Tweet{tweets("1"), tweets("1", "2"), tweets(), tweets("2", "3", "4")} {
		_, err := s.Merge(batch)
		require.NoError(t, err)
		n, err := s.Count()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
	assert.Equal(t, 4, prev)
}

func TestTimelineMergeKeepsLegacyRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tweets.json")
	legacy := `{"2024-01-01":[{"id":"1","text":"old","view_count":"1234","retweet_count":0,"bookmark_count":7}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := NewTimelineStore(path, time.UTC, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC) }

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	added, err := s.Merge(tweets("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, added, "the legacy id still dedups")

	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["2024-01-01"], 1)
	old := doc["2024-01-01"][0]
	assert.Equal(t, "old", old["text"])
	assert.Equal(t, "1234", old["view_count"])
	assert.Equal(t, float64(7), old["bookmark_count"])
	require.Len(t, doc["2024-03-02"], 1)
	assert.Equal(t, "2", doc["2024-03-02"][0]["id"])
}

func TestFollowingMergeKeepsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "following.json")
	legacy := `[{"id":1,"username":"u1","followers":"12K"},{"username":"no-id"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := NewFollowingStore(path, nil)
	added, err := s.Merge(followings("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, added, "numeric ids match their string form")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 3)
	assert.Equal(t, "12K", items[0]["followers"])
	assert.Equal(t, "no-id", items[1]["username"])
	assert.Equal(t, "2", items[2]["id"])
}

func TestRecordRoundTrip(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":"42","extra":[1,2]}`), &rec))
	assert.Equal(t, "42", rec.ID)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","extra":[1,2]}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`"not an object"`), &rec))
	assert.Empty(t, rec.ID)

	fresh, err := newRecord("7", Tweet{ID: "7", Text: "a <b> & c"})
	require.NoError(t, err)
	assert.Contains(t, string(fresh.Raw), "a <b> & c")
}

func TestProfileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_config.json")
	s := NewProfileStore(path, nil)

	p, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.Save("12345", "me"))
	p, err = s.Load()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "12345", p.UserID)
	assert.Equal(t, "me", p.ScreenName)

	require.NoError(t, os.WriteFile(path, []byte(`{"user_id": `), 0644))
	p, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileStoreReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user_id": "777"}`), 0644))

	p, err := NewProfileStore(path, nil).Load()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "777", p.UserID)
}
