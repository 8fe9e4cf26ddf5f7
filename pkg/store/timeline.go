package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
)

// DateLayout is the bucket key format of the timeline document
const DateLayout = "2006-01-02"

// Timeline maps a calendar date in the reference zone to the tweets
// collected that day
type Timeline map[string][]Record

// Count returns the number of tweets across all dates
func (t Timeline) Count() int {
	n := 0
	for _, tweets := range t {
		n += len(tweets)
	}
	return n
}

// TimelineStore persists date-bucketed tweets
type TimelineStore struct {
	path   string
	loc    *time.Location
	logger logger.Logger
	now    func() time.Time
	write  writeFunc
	mu     sync.Mutex
}

// NewTimelineStore creates a store backed by path. Dates are computed in loc.
func NewTimelineStore(path string, loc *time.Location, log logger.Logger) *TimelineStore {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &TimelineStore{path: path, loc: loc, logger: log, now: time.Now, write: WriteJSON}
}

// Path returns the document location
func (s *TimelineStore) Path() string { return s.path }

// Load returns the stored timeline; missing or corrupt documents load as empty
func (s *TimelineStore) Load() (Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	return doc, err
}

func (s *TimelineStore) load() (Timeline, bool, error) {
	var doc Timeline
	recovered, err := loadDocument(s.path, &doc, s.now(), s.logger)
	if err != nil {
		return nil, false, err
	}
	if recovered || doc == nil {
		doc = Timeline{}
	}
	return doc, recovered, nil
}

// IDs returns the set of stored ids across every date
func (s *TimelineStore) IDs() (map[string]struct{}, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, doc.Count())
	for _, tweets := range doc {
		for _, t := range tweets {
			if t.ID != "" {
				ids[t.ID] = struct{}{}
			}
		}
	}
	return ids, nil
}

// Count returns the number of stored tweets
func (s *TimelineStore) Count() (int, error) {
	doc, err := s.Load()
	return doc.Count(), err
}

// Merge appends unseen tweets under today's date and writes the document
// back. It returns how many tweets were added.
func (s *TimelineStore) Merge(batch []Tweet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, recovered, err := s.load()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	for _, tweets := range doc {
		for _, t := range tweets {
			if t.ID != "" {
				seen[t.ID] = struct{}{}
			}
		}
	}

	today := s.now().In(s.loc).Format(DateLayout)
	added := 0
	for _, t := range batch {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		rec, err := newRecord(t.ID, t)
		if err != nil {
			return 0, err
		}
		seen[t.ID] = struct{}{}
		doc[today] = append(doc[today], rec)
		added++
	}

	if added == 0 && !recovered {
		return 0, nil
	}
	if err := s.write(s.path, doc); err != nil {
		return 0, fmt.Errorf("failed to persist timeline: %w", err)
	}

	s.logger.DebugWithFields("Timeline merged", map[string]interface{}{
		"date":  today,
		"added": added,
		"total": doc.Count(),
	})
	return added, nil
}
