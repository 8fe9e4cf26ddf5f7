package pipeline

import (
	"context"

	"github.com/danielbelay23/data-pipelines/pkg/collector"
	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/store"
)

// SessionLog appends status entries for a session
type SessionLog interface {
	Append(s *session.Session, status session.Status, extra map[string]interface{}) (session.Entry, error)
}

// FollowingStore is the persisted following document
type FollowingStore interface {
	IDs() (map[string]struct{}, error)
	Count() (int, error)
	Merge(batch []store.Following) (int, error)
}

// TimelineStore is the persisted timeline document
type TimelineStore interface {
	IDs() (map[string]struct{}, error)
	Count() (int, error)
	Merge(batch []store.Tweet) (int, error)
}

// ProfileCache remembers the collecting account's id
type ProfileCache interface {
	Load() (*store.Profile, error)
	Save(userID, screenName string) error
}

// Recorder observes collections, gate decisions and finished runs
type Recorder interface {
	collector.Recorder
	RecordGate(reason string)
	RecordRun(s session.Summary)
}

type nopRecorder struct{ collector.NopRecorder }

func (nopRecorder) RecordGate(string)          {}
func (nopRecorder) RecordRun(session.Summary) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, session.Summary) error { return nil }
