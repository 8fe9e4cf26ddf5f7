package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/store"
)

// ErrEncode means a log entry could not be serialized. It is the only session
// log failure that should end the process.
var ErrEncode = errors.New("session log entry cannot be encoded")

// Log is the append-only session log document. Reads scan the whole file,
// which is fine for the few entries a day this pipeline produces.
type Log struct {
	path   string
	logger logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewLog creates a log backed by path
func NewLog(path string, log logger.Logger) *Log {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Log{path: path, logger: log, now: time.Now}
}

// Path returns the document location
func (l *Log) Path() string { return l.path }

// Append records an entry for status built from the session counters plus
// extra, and returns it.
func (l *Log) Append(s *Session, status Status, extra map[string]interface{}) (Entry, error) {
	now := s.Now()
	entry := Entry{
		SessionID:         s.ID,
		Timestamp:         s.Format(now),
		Status:            status,
		StartTime:         s.Format(s.StartTime),
		RuntimeSeconds:    now.Sub(s.StartTime).Seconds(),
		Errors:            append([]ErrorEvent(nil), s.Errors...),
		Calls:             s.Calls,
		NewFollowingCount: s.NewFollowingCount,
		TweetsCollected:   s.TweetsCollected,
		Attempts:          s.Attempts,
	}
	if len(extra) > 0 {
		entry.Extra = make(map[string]interface{}, len(extra))
		for k, v := range extra {
			entry.Extra[k] = v
		}
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("%w: %s: %v", ErrEncode, status, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.readRaw()
	if err != nil {
		return entry, err
	}
	raw = append(raw, encoded)
	if err := store.WriteJSON(l.path, raw); err != nil {
		return entry, fmt.Errorf("failed to write session log: %w", err)
	}

	l.logger.DebugWithFields("Session log entry appended", map[string]interface{}{
		"session_id": s.ID,
		"status":     string(status),
		"entries":    len(raw),
	})
	return entry, nil
}

// readRaw loads the log as raw elements so entries written by other tools
// keep their fields unchanged. A corrupt log is copied aside and read as empty.
func (l *Log) readRaw() ([]json.RawMessage, error) {
	var raw []json.RawMessage
	_, err := store.ReadJSON(l.path, &raw)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, store.ErrCorrupt) {
		return nil, err
	}

	backup, qerr := store.Quarantine(l.path, l.now())
	if qerr != nil {
		return nil, errors.Join(err, qerr)
	}
	l.logger.WarnWithFields("Corrupt session log quarantined, starting empty", map[string]interface{}{
		"path":   l.path,
		"backup": backup,
	})
	return nil, nil
}

// Entries returns every decodable entry in file order
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.readRaw()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			l.logger.DebugWithFields("Skipping undecodable session log entry", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// MostRecentMatching scans from the newest entry backwards and returns the
// first one pred accepts
func (l *Log) MostRecentMatching(pred func(Entry) bool) (Entry, bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return Entry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if pred(entries[i]) {
			return entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

// Recent returns up to n of the newest entries, newest last
func (l *Log) Recent(n int) ([]Entry, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// BySession returns the entries of one session in order
func (l *Log) BySession(id string) ([]Entry, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
