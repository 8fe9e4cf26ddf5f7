package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestNewSession(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := New(clock.Now, chicago(t))

	assert.Equal(t, "session_1700000000", s.ID)
	assert.Equal(t, "2023-11-14T16:13:20.000000-06:00", s.Format(s.StartTime))
	assert.NotNil(t, s.Errors)

	clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, s.Runtime())
}

func TestRecordError(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := New(clock.Now, time.UTC)

	clock.Advance(time.Second)
	s.RecordError("rate_limited", "429", "collect_timeline")

	require.Len(t, s.Errors, 1)
	assert.Equal(t, ErrorEvent{
		Timestamp: "2023-11-14T22:13:21.000000+00:00",
		Type:      "rate_limited",
		Message:   "429",
		Function:  "collect_timeline",
	}, s.Errors[0])
}

func TestEntryJSONFlattensExtras(t *testing.T) {
	e := Entry{
		SessionID:       "session_1",
		Status:          StatusTweetsComplete,
		TweetsCollected: 3,
		Extra:           map[string]interface{}{"tweets_collected": 7, "outcome": "target_reached"},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, float64(7), m["tweets_collected"], "extras override counters")
	assert.Equal(t, "target_reached", m["outcome"])
	assert.Equal(t, []interface{}{}, m["errors"])

	var back Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusTweetsComplete, back.Status)
	assert.Equal(t, 7, back.TweetsCollected)
	outcome, ok := back.Str("outcome")
	assert.True(t, ok)
	assert.Equal(t, "target_reached", outcome)
}

func TestEntryLenientDecoding(t *testing.T) {
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{
		"session_id": "session_9",
		"status": "following_complete",
		"start_time": null,
		"calls": "many",
		"following_collected": 12,
		"success": true
	}`), &e))

	assert.Equal(t, "session_9", e.SessionID)
	n, ok := e.Int("following_collected")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = e.Int("calls")
	assert.False(t, ok, "a mistyped counter is kept as a non-integer extra")

	success, ok := e.Bool("success")
	assert.True(t, ok)
	assert.True(t, success)

	_, ok = e.Int("missing")
	assert.False(t, ok)
}

func TestLogAppendAndQuery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	path := filepath.Join(t.TempDir(), "logging.json")
	l := NewLog(path, nil)

	s := New(clock.Now, chicago(t))
	s.Calls = 2

	_, err := l.Append(s, StatusStarted, nil)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	s.NewFollowingCount = 4
	entry, err := l.Append(s, StatusFollowingComplete, map[string]interface{}{"following_collected": 40})
	require.NoError(t, err)
	assert.Equal(t, 600.0, entry.RuntimeSeconds)

	other := New(func() time.Time { return time.Unix(1700003600, 0) }, chicago(t))
	_, err = l.Append(other, StatusStarted, nil)
	require.NoError(t, err)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[1].Calls)

	latest, found, err := l.MostRecentMatching(func(e Entry) bool {
		n, _ := e.Int("following_collected")
		return e.Status == StatusFollowingComplete && n > 0
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, s.ID, latest.SessionID)

	recent, err := l.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, other.ID, recent[0].SessionID)

	bySession, err := l.BySession(s.ID)
	require.NoError(t, err)
	assert.Len(t, bySession, 2)
}

func TestLogEntriesAreImmutableSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.json")
	l := NewLog(path, nil)
	s := New(nil, time.UTC)

	_, err := l.Append(s, StatusStarted, nil)
	require.NoError(t, err)
	s.RecordError("server_error", "502", "collect_following")
	_, err = l.Append(s, StatusCompleted, nil)
	require.NoError(t, err)

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries[0].Errors)
	assert.Len(t, entries[1].Errors, 1)
}

func TestLogCorruptFileIsQuarantined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"status": "started"`), 0644))

	tl := logger.NewTestLogger()
	l := NewLog(path, tl)
	l.now = func() time.Time { return time.Unix(42, 0) }

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = l.Append(New(nil, time.UTC), StatusStarted, nil)
	require.NoError(t, err)

	_, err = os.Stat(path + ".corrupt-42")
	assert.NoError(t, err)
	assert.True(t, tl.HasMessage("Corrupt session log quarantined, starting empty"))

	entries, err = l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLogKeepsForeignEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.json")
	legacy := `[{"session_id": "session_1", "status": "completed", "custom": {"nested": [1, 2]}}, 7]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	l := NewLog(path, nil)
	_, err := l.Append(New(nil, time.UTC), StatusStarted, nil)
	require.NoError(t, err)

	var raw []interface{}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, float64(7), raw[1])

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the non-object element is skipped when reading")
}

func TestAppendUnencodableExtra(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "logging.json"), nil)

	_, err := l.Append(New(nil, time.UTC), StatusCompleted, map[string]interface{}{"bad": func() {}})
	assert.ErrorIs(t, err, ErrEncode)
}

func TestSummarize(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := New(clock.Now, time.UTC)
	s.Calls, s.Attempts, s.TweetsCollected, s.NewFollowingCount = 5, 1, 20, 3
	s.RecordError("server_error", "x", "y")
	clock.Advance(2 * time.Minute)

	sum := s.Summarize()
	assert.Equal(t, s.ID, sum.SessionID)
	assert.Equal(t, 120.0, sum.RuntimeSeconds)
	assert.Equal(t, 5, sum.Calls)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 20, sum.TweetsCollected)
}
