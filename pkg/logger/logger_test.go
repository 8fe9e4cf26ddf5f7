package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		l, err := New(&config.LoggingConfig{Level: "info"})
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(&config.LoggingConfig{Level: "chatty"})
		assert.Error(t, err)
	})

	t.Run("with file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "run.log")
		l, err := New(&config.LoggingConfig{Level: "info", File: path})
		require.NoError(t, err)
		l.Info("written to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file")
		assert.Contains(t, string(data), `"app":"twpipeline"`)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldsAreTyped(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("resource", "timeline").InfoWithFields("page merged", map[string]interface{}{
		"page":     3,
		"cooldown": 2 * time.Second,
		"ok":       true,
	})

	m := decodeLine(t, &buf)
	assert.Equal(t, "page merged", m["message"])
	assert.Equal(t, "timeline", m["resource"])
	assert.Equal(t, float64(3), m["page"])
	assert.Equal(t, true, m["ok"])
	assert.Equal(t, float64(2000), m["cooldown"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf)
	_ = parent.WithField("child_only", 1)

	parent.Info("parent")
	m := decodeLine(t, &buf)
	assert.NotContains(t, m, "child_only")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("socket closed")).Error("request failed")
	m := decodeLine(t, &buf)
	assert.Equal(t, "socket closed", m["error"])
}

func TestTestLoggerCapturesChildFields(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("resource", "following").WithError(errors.New("boom"))
	child.WarnWithFields("cooldown", map[string]interface{}{"kind": "rate_limited"})
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "following", msgs[0].Fields["resource"])
	assert.Equal(t, "rate_limited", msgs[0].Fields["kind"])
	assert.EqualError(t, msgs[0].Error, "boom")
	assert.Nil(t, msgs[1].Fields)

	assert.True(t, tl.HasMessage("plain"))
	assert.False(t, tl.HasError())
	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "/2/timeline/home.json", 503, 120*time.Millisecond)
	LogRateLimit(tl, "timeline", time.Minute)
	LogCollectionProgress(tl, "timeline", 2, 40, 200)

	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	msg, ok := tl.FindMessage("Rate limit reached, cooling down")
	require.True(t, ok)
	assert.Equal(t, "timeline", msg.Fields["resource"])

	progress, ok := tl.FindMessage("Collection progress")
	require.True(t, ok)
	assert.Equal(t, 200, progress.Fields["target"])
}
