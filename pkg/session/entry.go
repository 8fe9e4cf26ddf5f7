package session

import (
	"encoding/json"
	"math"
)

// Entry is one immutable record of the session log. Status-specific extras
// are flattened into the same JSON object and win over counters of the same
// name.
type Entry struct {
	SessionID         string
	Timestamp         string
	Status            Status
	StartTime         string
	RuntimeSeconds    float64
	Errors            []ErrorEvent
	Calls             int
	NewFollowingCount int
	TweetsCollected   int
	Attempts          int
	Extra             map[string]interface{}
}

func (e Entry) MarshalJSON() ([]byte, error) {
	errs := e.Errors
	if errs == nil {
		errs = []ErrorEvent{}
	}
	m := map[string]interface{}{
		"session_id":          e.SessionID,
		"timestamp":           e.Timestamp,
		"status":              e.Status,
		"start_time":          e.StartTime,
		"runtime_seconds":     e.RuntimeSeconds,
		"errors":              errs,
		"calls":               e.Calls,
		"new_following_count": e.NewFollowingCount,
		"tweets_collected":    e.TweetsCollected,
		"attempts":            e.Attempts,
	}
	for k, v := range e.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entry{}
	known := map[string]interface{}{
		"session_id":          &e.SessionID,
		"timestamp":           &e.Timestamp,
		"status":              &e.Status,
		"start_time":          &e.StartTime,
		"runtime_seconds":     &e.RuntimeSeconds,
		"errors":              &e.Errors,
		"calls":               &e.Calls,
		"new_following_count": &e.NewFollowingCount,
		"tweets_collected":    &e.TweetsCollected,
		"attempts":            &e.Attempts,
	}

	for key, value := range raw {
		if dst, ok := known[key]; ok {
			if json.Unmarshal(value, dst) == nil {
				continue
			}
		}
		// unknown keys, and known keys holding an unexpected type, stay as extras
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		if e.Extra == nil {
			e.Extra = make(map[string]interface{})
		}
		e.Extra[key] = v
	}
	return nil
}

// Int returns an integer-valued field, looking at extras first
func (e Entry) Int(key string) (int, bool) {
	if v, ok := e.Extra[key]; ok {
		return toInt(v)
	}
	switch key {
	case "calls":
		return e.Calls, true
	case "new_following_count":
		return e.NewFollowingCount, true
	case "tweets_collected":
		return e.TweetsCollected, true
	case "attempts":
		return e.Attempts, true
	}
	return 0, false
}

// Str returns a string-valued extra
func (e Entry) Str(key string) (string, bool) {
	s, ok := e.Extra[key].(string)
	return s, ok
}

// Bool returns a boolean-valued extra
func (e Entry) Bool(key string) (bool, bool) {
	b, ok := e.Extra[key].(bool)
	return b, ok
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
