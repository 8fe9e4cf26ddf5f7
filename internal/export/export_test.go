package export

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/retry"
	"github.com/danielbelay23/data-pipelines/pkg/store"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantIDs []string
		wantErr bool
	}{
		{name: "list", doc: `[{"id":"1"},{"id":"2"}]`, wantIDs: []string{"1", "2"}},
		{name: "dict of lists in key order", doc: `{"2024-03-02":[{"id":"3"}],"2024-03-01":[{"id":"1"},{"id":"2"}]}`, wantIDs: []string{"1", "2", "3"}},
		{name: "single object", doc: `{"id":"9","name":"solo"}`, wantIDs: []string{"9"}},
		{name: "empty object is one record", doc: `{}`, wantIDs: []string{""}},
		{name: "null", doc: `null`},
		{name: "scalar", doc: `42`, wantErr: true},
		{name: "list of scalars", doc: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Flatten(decode(t, tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, r := range records {
				id, _ := r["id"].(string)
				ids = append(ids, id)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{"text", "text"},
		{true, "true"},
		{float64(12), "12"},
		{1.5, "1.5"},
		{json.Number("123456789012345678"), "123456789012345678"},
		{map[string]interface{}{"a": float64(1)}, `{"a":1}`},
		{[]interface{}{"x", "y"}, `["x","y"]`},
	}
	for _, tt := range tests {
		got, err := cellValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestColumns(t *testing.T) {
	cols := Columns([]Record{{"b": 1, "a": 2}, {"c": 3, "a": 4}})
	assert.Equal(t, []string{"a", "b", "c"}, cols)
}

type exportHarness struct {
	dir string
	exp *Exporter
}

func newExportHarness(t *testing.T) *exportHarness {
	t.Helper()
	dir := t.TempDir()
	exp, err := OpenSQLite(filepath.Join(dir, "db", "twitter_data.db"), logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { exp.Close() })
	return &exportHarness{dir: dir, exp: exp}
}

func (h *exportHarness) write(t *testing.T, name string, v interface{}) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, store.WriteJSON(path, v))
	return path
}

func (h *exportHarness) rows(t *testing.T, query string, args ...interface{}) []map[string]interface{} {
	t.Helper()
	rows, err := h.exp.db.Queryx(query, args...)
	require.NoError(t, err)
	defer rows.Close()
	var out []map[string]interface{}
	for rows.Next() {
		m := map[string]interface{}{}
		require.NoError(t, rows.MapScan(m))
		out = append(out, m)
	}
	require.NoError(t, rows.Err())
	return out
}

func (h *exportHarness) columns(t *testing.T, table string) []string {
	t.Helper()
	var cols []string
	require.NoError(t, h.exp.db.Select(&cols, `SELECT name FROM pragma_table_info(?) ORDER BY name`, table))
	return cols
}

func str(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return ""
	}
}

func TestSyncTableInsertsThenUpdates(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()

	path := h.write(t, "following.json", []map[string]interface{}{
		{"id": "1", "username": "alice", "name": "Alice"},
		{"id": "2", "username": "bob", "name": "Bob"},
	})
	table := Table{Name: "following", File: path, PrimaryKey: "id"}

	report, err := h.exp.SyncTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.ElementsMatch(t, []string{"name", "username"}, report.AddedColumns)

	// a new field appears and one record changes
	h.write(t, "following.json", []map[string]interface{}{
		{"id": "1", "username": "alice", "name": "Alice A.", "description": "hi"},
		{"id": "2", "username": "bob", "name": "Bob"},
		{"id": "3", "username": "carol", "name": "Carol"},
	})
	report, err = h.exp.SyncTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, []string{"description"}, report.AddedColumns)

	assert.Equal(t, []string{"description", "id", "name", "username"}, h.columns(t, "following"))

	rows := h.rows(t, `SELECT name, description FROM following WHERE id = ?`, "1")
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice A.", str(rows[0]["name"]))
	assert.Equal(t, "hi", str(rows[0]["description"]))

	var count int
	require.NoError(t, h.exp.db.Get(&count, `SELECT COUNT(*) FROM following`))
	assert.Equal(t, 3, count)
}

func TestSyncTableTimelineNestedValues(t *testing.T) {
	h := newExportHarness(t)

	path := h.write(t, "tweets.json", map[string]interface{}{
		"2024-03-01": []map[string]interface{}{
			{
				"id":            "t1",
				"text":          "hello",
				"retweet_count": 3,
				"is_retweet":    false,
				"entities":      map[string]interface{}{"hashtags": []interface{}{}},
				"quote_tweet":   nil,
			},
		},
		"2024-03-02": []map[string]interface{}{
			{"id": "t2", "text": "again", "lang": "en"},
		},
	})

	report, err := h.exp.SyncTable(context.Background(), Table{Name: "tweets", File: path, PrimaryKey: "id"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)

	rows := h.rows(t, `SELECT retweet_count, is_retweet, entities, quote_tweet FROM tweets WHERE id = ?`, "t1")
	require.Len(t, rows, 1)
	assert.Equal(t, "3", str(rows[0]["retweet_count"]))
	assert.Equal(t, "false", str(rows[0]["is_retweet"]))
	assert.JSONEq(t, `{"hashtags":[]}`, str(rows[0]["entities"]))
	assert.Nil(t, rows[0]["quote_tweet"])
}

func TestSyncTableStaticKey(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()
	table := Table{Name: "profile", File: filepath.Join(h.dir, "user_config.json"), PrimaryKey: "account", StaticKey: "active_account"}

	h.write(t, "user_config.json", map[string]interface{}{"user_id": "42", "screen_name": "me"})
	report, err := h.exp.SyncTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	h.write(t, "user_config.json", map[string]interface{}{"user_id": "43", "screen_name": "me"})
	report, err = h.exp.SyncTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Updated)

	rows := h.rows(t, `SELECT account, user_id FROM profile`)
	require.Len(t, rows, 1)
	assert.Equal(t, "active_account", str(rows[0]["account"]))
	assert.Equal(t, "43", str(rows[0]["user_id"]))
}

func TestSyncTableCompositeKey(t *testing.T) {
	h := newExportHarness(t)

	path := h.write(t, "logging.json", []map[string]interface{}{
		{"session_id": "s1", "status": "started", "calls": 0, "errors": []interface{}{}},
		{"session_id": "s1", "status": "completed", "calls": 4, "errors": []interface{}{}},
		{"status": "orphan"},
	})

	report, err := h.exp.SyncTable(context.Background(), Table{
		Name:       "session_log",
		File:       path,
		PrimaryKey: "entry_key",
		KeyFields:  []string{"session_id", "status"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Skipped)

	rows := h.rows(t, `SELECT entry_key FROM session_log ORDER BY entry_key`)
	require.Len(t, rows, 2)
	assert.Equal(t, "s1:completed", str(rows[0]["entry_key"]))
	assert.Equal(t, "s1:started", str(rows[1]["entry_key"]))
}

func TestSyncTableMissingFile(t *testing.T) {
	h := newExportHarness(t)

	report, err := h.exp.SyncTable(context.Background(), Table{Name: "following", File: filepath.Join(h.dir, "nope.json"), PrimaryKey: "id"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Records)
	assert.Equal(t, []string{"id"}, h.columns(t, "following"))
}

func TestSyncContinuesPastFailures(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()

	good := h.write(t, "following.json", []map[string]interface{}{{"id": "1"}})
	bad := filepath.Join(h.dir, "tweets.json")
	require.NoError(t, store.WriteJSON(bad, 7))

	reports, err := h.exp.Sync(ctx, []Table{
		{Name: "tweets", File: bad, PrimaryKey: "id"},
		{Name: "following", File: good, PrimaryKey: "id"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tweets")
	require.Len(t, reports, 1)
	assert.Equal(t, "following", reports[0].Table)
	assert.Equal(t, 1, reports[0].Inserted)
}

func TestTables(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = "/data"

	tables := Tables(&cfg.Storage)
	require.Len(t, tables, 4)
	names := make([]string, 0, len(tables))
	for _, tb := range tables {
		names = append(names, tb.Name)
		assert.Equal(t, "/data", filepath.Dir(tb.File))
	}
	assert.Equal(t, []string{"following", "tweets", "profile", "session_log"}, names)
	assert.Equal(t, "active_account", tables[2].StaticKey)
	assert.Equal(t, []string{"session_id", "status"}, tables[3].KeyFields)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := dialectFor("mysql")
	assert.Error(t, err)
}

func TestOpenPostgresRetriesWithFixedDelay(t *testing.T) {
	cfg := ConnectRetry(nil)
	var slept []time.Duration
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := OpenPostgres(context.Background(), "postgres://user@host:%zz/db", cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to postgres")

	require.Len(t, slept, cfg.MaxAttempts-1)
	for _, d := range slept {
		assert.Equal(t, 3*time.Second, d)
	}
	assert.IsType(t, &retry.ConstantBackoff{}, cfg.Backoff)
}
