package books

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reserved field names stamped by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldDate      = "date"
	FieldVersion   = "version"
)

// Date layouts accepted on records. Imports and hand edits produce a mix,
// so reads try them in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Record is one schema-less document in a collection. Values are
// JSON-safe scalars, []any line-item lists, or nested maps. Relations
// between collections are by denormalized name strings, never by id.
type Record map[string]any

// ID returns the record identifier, or "" when unset.
func (r Record) ID() string { return StringOf(r[FieldID]) }

// Version returns the optimistic-lock counter, 0 when unset.
func (r Record) Version() int64 { return AmountOf(r[FieldVersion]) }

// CreatedAt returns the creation timestamp, zero when missing or
// unparseable.
func (r Record) CreatedAt() time.Time { return TimeOf(r[FieldCreatedAt]) }

// Date returns the record's date field, falling back to createdAt.
func (r Record) Date() time.Time {
	if t := TimeOf(r[FieldDate]); !t.IsZero() {
		return t
	}
	return r.CreatedAt()
}

// Str returns the string form of a field, "" when absent.
func (r Record) Str(key string) string { return StringOf(r[key]) }

// Amount returns a monetary field as integer currency units. Absent or
// malformed values degrade to 0 so totals stay computable over
// hand-edited or partially imported records.
func (r Record) Amount(key string) int64 { return AmountOf(r[key]) }

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate committed state through a read.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(vv))
		for k, e := range vv {
			m[k] = cloneValue(e)
		}
		return m
	case Record:
		return map[string]any(vv.Clone())
	case []any:
		s := make([]any, len(vv))
		for i, e := range vv {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// MatchesText reports whether any single field value, nested line items
// included, contains the lower-cased needle. Matching is per value: a
// needle spanning two fields never matches.
func (r Record) MatchesText(needle string) bool {
	for _, v := range r {
		if valueMatches(v, needle) {
			return true
		}
	}
	return false
}

func valueMatches(v any, needle string) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case map[string]any:
		for _, e := range vv {
			if valueMatches(e, needle) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range vv {
			if valueMatches(e, needle) {
				return true
			}
		}
		return false
	case float64:
		// Avoid 50000 rendering as 5e+04.
		return strings.Contains(strconv.FormatFloat(vv, 'f', -1, 64), needle)
	default:
		return strings.Contains(strings.ToLower(fmt.Sprintf("%v", vv)), needle)
	}
}

// StringOf coerces any stored value to its display string, "" for nil.
func StringOf(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

// AmountOf coerces any stored value to integer currency units. Malformed
// values degrade to 0, never an error: dashboard totals must stay
// computable over bad rows.
func AmountOf(v any) int64 {
	switch vv := v.(type) {
	case nil:
		return 0
	case int:
		return int64(vv)
	case int64:
		return vv
	case float64:
		return int64(vv)
	case json.Number:
		if f, err := vv.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return 0
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	case bool:
		if vv {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// TimeOf coerces a stored value to a time, zero when missing or
// unparseable.
func TimeOf(v any) time.Time {
	switch vv := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return vv
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
