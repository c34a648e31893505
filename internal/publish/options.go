package publish

import (
	"fmt"
	"maps"
	"strconv"
)

// Options is the free-form, platform-specific option bag passed alongside a
// post (chat_id, parse_mode, type, ...).
type Options map[string]any

// Merge returns a new bag with other's entries layered over o's.
func (o Options) Merge(other Options) Options {
	out := make(Options, len(o)+len(other))
	maps.Copy(out, o)
	maps.Copy(out, other)
	return out
}

// Has reports whether key is set to a non-nil value.
func (o Options) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// String returns key as a string, or def when absent or empty.
func (o Options) String(key, def string) string {
	switch v := o[key].(type) {
	case nil:
		return def
	case string:
		if v == "" {
			return def
		}
		return v
	case fmt.Stringer:
		return v.String()
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	return def
}

// Bool reports whether key is set to a truthy value.
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// Int returns key as an int, or 0 when absent or not numeric.
func (o Options) Int(key string) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return 0
}
