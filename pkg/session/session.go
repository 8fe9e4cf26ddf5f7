package session

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout of every timestamp the log writes
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Status is the lifecycle marker of a log entry
type Status string

const (
	StatusStarted           Status = "started"
	StatusFollowingComplete Status = "following_complete"
	StatusFollowingSkipped  Status = "following_skipped"
	StatusTweetsComplete    Status = "tweets_complete"
	StatusCompleted         Status = "completed"
)

// Error event types that are not remote failure kinds
const (
	EventCookieLoadFailed = "cookie_load_failed"
	EventLoginFailed      = "login_failed"
	EventPersistFailed    = "persist_failed"
	EventUserLookupFailed = "user_lookup_failed"
)

// ErrorEvent is one recorded failure
type ErrorEvent struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Function  string `json:"function"`
}

// Session carries the counters of one pipeline run. It is created once per
// run and passed by pointer to every component that updates it.
type Session struct {
	ID                string
	StartTime         time.Time
	Calls             int
	NewFollowingCount int
	TweetsCollected   int
	Attempts          int
	Errors            []ErrorEvent

	loc   *time.Location
	clock func() time.Time
}

// New starts a session at clock() with timestamps rendered in loc
func New(clock func() time.Time, loc *time.Location) *Session {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	start := clock().In(loc)
	return &Session{
		ID:        fmt.Sprintf("session_%d", start.Unix()),
		StartTime: start,
		Errors:    []ErrorEvent{},
		loc:       loc,
		clock:     clock,
	}
}

// Now returns the session clock's current time in the reference zone
func (s *Session) Now() time.Time {
	return s.clock().In(s.loc)
}

// Location returns the reference zone
func (s *Session) Location() *time.Location {
	return s.loc
}

// Format renders t in the log's timestamp layout
func (s *Session) Format(t time.Time) string {
	return t.In(s.loc).Format(TimestampLayout)
}

// RecordError appends an error event stamped with the current time
func (s *Session) RecordError(kind, message, function string) {
	s.Errors = append(s.Errors, ErrorEvent{
		Timestamp: s.Format(s.clock()),
		Type:      kind,
		Message:   message,
		Function:  function,
	})
}

// Runtime returns the time elapsed since StartTime
func (s *Session) Runtime() time.Duration {
	return s.clock().Sub(s.StartTime)
}

// Summary is the end-of-run report handed to metrics and notifiers
type Summary struct {
	SessionID        string        `json:"session_id"`
	StartTime        time.Time     `json:"start_time"`
	Duration         time.Duration `json:"-"`
	RuntimeSeconds   float64       `json:"runtime_seconds"`
	FollowingRan     bool          `json:"following_ran"`
	GateReason       string        `json:"gate_reason"`
	FollowingOutcome string        `json:"following_outcome,omitempty"`
	NewFollowing     int           `json:"new_following_count"`
	FollowingTotal   int           `json:"following_total"`
	TimelineOutcome  string        `json:"timeline_outcome"`
	TweetsCollected  int           `json:"tweets_collected"`
	TweetsTotal      int           `json:"tweets_total"`
	Calls            int           `json:"calls"`
	Attempts         int           `json:"attempts"`
	Errors           int           `json:"errors"`
	Success          bool          `json:"success"`
}

// Summarize builds a Summary from the session counters
func (s *Session) Summarize() Summary {
	d := s.Runtime()
	return Summary{
		SessionID:       s.ID,
		StartTime:       s.StartTime,
		Duration:        d,
		RuntimeSeconds:  d.Seconds(),
		NewFollowing:    s.NewFollowingCount,
		TweetsCollected: s.TweetsCollected,
		Calls:           s.Calls,
		Attempts:        s.Attempts,
		Errors:          len(s.Errors),
	}
}
