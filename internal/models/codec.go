package models

import "encoding/json"

// JSON column codec. Encoding is total (a string slice always marshals);
// decoding treats any corrupted stored value as absent rather than failing
// the enclosing query. This is the single place that policy lives.

// EncodeStringList serializes a list for storage in a TEXT column.
// nil and empty both encode as "[]" so stored values are always valid JSON.
func EncodeStringList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeStringList parses a stored list column. A corrupted or empty value
// decodes to nil.
func DecodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	if len(v) == 0 {
		return nil
	}
	return v
}
