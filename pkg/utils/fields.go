package utils

import (
	"encoding/json"
	"time"
)

// Field helpers for upload payloads. Each logical field can arrive under
// more than one key (camelCase from the client, snake_case from older
// payloads); callers pass the accepted keys in preference order and the
// first present, non-empty value wins.

// StringField returns the first non-empty string value among keys.
func StringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// IntField returns the first numeric value among keys, truncated to int.
func IntField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		}
	}
	return 0
}

// BoolField returns the first boolean value among keys and whether any of
// the keys was present at all. Absent is not the same as false for fields
// like the instructor flag.
func BoolField(m map[string]any, keys ...string) (value, present bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
	}
	return false, false
}

// TimeField parses the first present value among keys as a timestamp.
// Accepts RFC3339 and plain dates; anything else resolves to nil.
func TimeField(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok || s == "" {
			continue
		}
		if t := ParseTime(s); t != nil {
			return t
		}
	}
	return nil
}

// ParseTime parses an RFC3339 timestamp or a bare 2006-01-02 date.
func ParseTime(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// RawField re-serializes the first present value among keys through
// CanonicalJSON. Used for fields kept as opaque blobs (notes, crew lists)
// so that input key ordering never leaks into stored bytes. Returns the
// JSON for an empty list when no key is present.
func RawField(m map[string]any, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if b, err := json.Marshal(v); err == nil {
				return b
			}
		}
	}
	return json.RawMessage("[]")
}

// ListField returns the first present list value among keys.
func ListField(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k].([]any); ok {
			return v
		}
	}
	return nil
}

// MapList coerces a decoded JSON list to its object elements, dropping
// anything that is not an object.
func MapList(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// CanonicalJSON round-trips raw JSON through the generic decoder so that
// object keys come out sorted regardless of how the producer (or jsonb
// storage) ordered them. Invalid input is returned unchanged.
func CanonicalJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}
