package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
)

// FollowingStore persists the flat following list
type FollowingStore struct {
	path   string
	logger logger.Logger
	now    func() time.Time
	write  writeFunc
	mu     sync.Mutex
}

// NewFollowingStore creates a store backed by path
func NewFollowingStore(path string, log logger.Logger) *FollowingStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FollowingStore{path: path, logger: log, now: time.Now, write: WriteJSON}
}

// Path returns the document location
func (s *FollowingStore) Path() string { return s.path }

// Load returns the stored list; missing or corrupt documents load as empty
func (s *FollowingStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, _, err := s.load()
	return items, err
}

func (s *FollowingStore) load() ([]Record, bool, error) {
	var items []Record
	recovered, err := loadDocument(s.path, &items, s.now(), s.logger)
	if err != nil {
		return nil, false, err
	}
	if recovered || items == nil {
		items = []Record{}
	}
	return items, recovered, nil
}

// IDs returns the set of stored ids
func (s *FollowingStore) IDs() (map[string]struct{}, error) {
	items, err := s.Load()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(items))
	for _, f := range items {
		if f.ID != "" {
			ids[f.ID] = struct{}{}
		}
	}
	return ids, nil
}

// Count returns the number of stored accounts
func (s *FollowingStore) Count() (int, error) {
	items, err := s.Load()
	return len(items), err
}

// Merge appends the items whose ids are not stored yet and writes the
// document back. It returns how many items were added.
func (s *FollowingStore) Merge(batch []Following) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, recovered, err := s.load()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(items)+len(batch))
	for _, f := range items {
		if f.ID != "" {
			seen[f.ID] = struct{}{}
		}
	}

	added := 0
	for _, f := range batch {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		rec, err := newRecord(f.ID, f)
		if err != nil {
			return 0, err
		}
		seen[f.ID] = struct{}{}
		items = append(items, rec)
		added++
	}

	if added == 0 && !recovered {
		return 0, nil
	}
	if err := s.write(s.path, items); err != nil {
		return 0, fmt.Errorf("failed to persist following: %w", err)
	}

	s.logger.DebugWithFields("Following merged", map[string]interface{}{
		"added": added,
		"total": len(items),
	})
	return added, nil
}
