package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat coerces a loosely typed column value to a finite float64.
// Unparseable strings, NaN, infinities and nil report false.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return ToFloat(string(t))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FloatPtr is ToFloat returning nil for anything non-numeric.
func FloatPtr(v any) *float64 {
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// AsString renders a column value as text; nil becomes "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// NormalizeURL prefixes site-relative URLs with origin. Absolute URLs pass
// through unchanged.
func NormalizeURL(origin, u string) string {
	if strings.HasPrefix(u, "/") {
		return strings.TrimRight(origin, "/") + u
	}
	return u
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

func intPtr(v any) *int64 {
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	i := int64(f)
	return &i
}
