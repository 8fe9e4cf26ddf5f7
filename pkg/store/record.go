package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one stored item held as the JSON it was read from. Only the id is
// interpreted, so fields written by older collectors, or with other value
// types, survive a rewrite unchanged.
type Record struct {
	ID  string
	Raw json.RawMessage
}

// UnmarshalJSON keeps data verbatim. An item without a usable id is kept but
// never matches during dedup.
func (r *Record) UnmarshalJSON(data []byte) error {
	r.Raw = append(json.RawMessage(nil), data...)
	r.ID = ""

	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil
	}
	r.ID = recordID(head.ID)
	return nil
}

// MarshalJSON writes the stored bytes back out
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// recordID accepts string and numeric ids
func recordID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

// newRecord encodes v without HTML escaping, matching WriteJSON
func newRecord(id string, v interface{}) (Record, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Record{}, fmt.Errorf("failed to encode item %s: %w", id, err)
	}
	return Record{ID: id, Raw: json.RawMessage(strings.TrimRight(buf.String(), "\n"))}, nil
}
