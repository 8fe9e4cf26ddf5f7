package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielbelay23/data-pipelines/pkg/session"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "7 collected", ProgressBar(7, 0))
	assert.Equal(t, "[██████████░░░░░░░░░░] 100/200", ProgressBar(100, 200))
	assert.Contains(t, ProgressBar(500, 200), "500/200")
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintError("failed", "boom")
	PrintWarning("careful")
	PrintInfo("Data", "/tmp")

	out := buf.String()
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "Data")
}

func TestPrintSummary(t *testing.T) {
	buf := captureOutput(t)

	PrintSummary(session.Summary{
		SessionID:       "session_1",
		GateReason:      "recent_run",
		TweetsCollected: 40,
		TweetsTotal:     900,
		TimelineOutcome: "exhausted",
		Errors:          2,
		Success:         true,
	}, 200)

	out := buf.String()
	assert.Contains(t, out, "session_1")
	assert.Contains(t, out, "skipped: recent_run")
	assert.Contains(t, out, "40/200")
	assert.Contains(t, out, "2 error events")
	assert.Contains(t, out, "Run completed")
}
