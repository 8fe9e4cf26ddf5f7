package store

import (
	"fmt"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
)

// ProfileStore caches the collecting account's user id so it is looked up once
type ProfileStore struct {
	path   string
	logger logger.Logger
	now    func() time.Time
}

// NewProfileStore creates a store backed by path
func NewProfileStore(path string, log logger.Logger) *ProfileStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ProfileStore{path: path, logger: log, now: time.Now}
}

// Path returns the document location
func (s *ProfileStore) Path() string { return s.path }

// Load returns the cached profile, or nil when none is usable
func (s *ProfileStore) Load() (*Profile, error) {
	var p Profile
	recovered, err := loadDocument(s.path, &p, s.now(), s.logger)
	if err != nil {
		return nil, err
	}
	if recovered || p.UserID == "" {
		return nil, nil
	}
	return &p, nil
}

// Save caches userID for screenName
func (s *ProfileStore) Save(userID, screenName string) error {
	p := Profile{
		UserID:     userID,
		ScreenName: screenName,
		CachedAt:   s.now().Format(time.RFC3339),
	}
	if err := WriteJSON(s.path, p); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}
