package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/danielbelay23/data-pipelines/pkg/store"
)

// Record is one flattened JSON object
type Record map[string]interface{}

// LoadRecords reads a JSON document and flattens it into records. A list is
// taken as is, an object whose values are all lists is concatenated in key
// order, and any other object becomes a single record. A missing file yields
// no records.
func LoadRecords(path string) ([]Record, error) {
	var doc interface{}
	found, err := store.ReadJSON(path, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return Flatten(doc)
}

// Flatten turns a decoded document into records
func Flatten(doc interface{}) ([]Record, error) {
	switch v := doc.(type) {
	case []interface{}:
		return toRecords(v)
	case map[string]interface{}:
		if isDictOfLists(v) {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			var out []Record
			for _, k := range keys {
				recs, err := toRecords(v[k].([]interface{}))
				if err != nil {
					return nil, fmt.Errorf("group %q: %w", k, err)
				}
				out = append(out, recs...)
			}
			return out, nil
		}
		return []Record{Record(v)}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported document type %T", doc)
	}
}

func isDictOfLists(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, ok := v.([]interface{}); !ok {
			return false
		}
	}
	return true
}

func toRecords(items []interface{}) ([]Record, error) {
	out := make([]Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, item)
		}
		out = append(out, Record(obj))
	}
	return out, nil
}

// Columns returns the sorted union of keys across records
func Columns(records []Record) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

var errNested = errors.New("cannot encode nested value")

// cellValue converts a decoded JSON value to what is stored in a TEXT column.
// Objects and arrays are stored as their JSON encoding and null stays NULL.
func cellValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errNested, err)
		}
		return string(data), nil
	default:
		return fmt.Sprint(x), nil
	}
}
