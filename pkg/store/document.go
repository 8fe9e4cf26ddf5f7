package store

import (
	"errors"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
)

type writeFunc func(path string, v interface{}) error

// loadDocument reads path into v. Only a document whose JSON cannot be parsed
// into the expected shape is corrupt; it is copied aside and reported as
// recovered so the caller starts from an empty value.
func loadDocument(path string, v interface{}, now time.Time, log logger.Logger) (recovered bool, err error) {
	_, err = ReadJSON(path, v)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrCorrupt) {
		return false, err
	}

	backup, qerr := Quarantine(path, now)
	if qerr != nil {
		return false, errors.Join(err, qerr)
	}
	log.WarnWithFields("Corrupt document quarantined, starting empty", map[string]interface{}{
		"path":   path,
		"backup": backup,
		"error":  err.Error(),
	})
	return true, nil
}
