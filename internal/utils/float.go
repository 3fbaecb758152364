package utils

import "encoding/json"

// ToFloat64 coerces a decoded request value to a float64 observation.
// JSON numbers arrive as float64, or as json.Number when the decoder is
// configured that way; in-process callers may hand over plain Go
// integers. Anything else (strings, booleans, nil) is not an
// observation and reports false. Finiteness is not checked here; the
// dataset builder rejects NaN and infinities.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
