package recordstore

import (
	"math"
	"strconv"
	"time"
)

// Fields is the raw field map of a record as decoded from JSON.
type Fields map[string]any

func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case []any:
		// lookup fields arrive as single-element arrays
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func (f Fields) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

func (f Fields) Int(name string) int {
	switch v := f[name].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Time parses an RFC 3339 timestamp field. ok is false when the field is
// missing or malformed.
func (f Fields) Time(name string) (time.Time, bool) {
	s := f.String(name)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Strings reads a linked-record or multi-select field.
func (f Fields) Strings(name string) []string {
	raw, ok := f[name].([]any)
	if !ok {
		if s, ok := f[name].(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
