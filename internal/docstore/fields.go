package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fields is a typed, validating view over document data. Numbers may arrive
// as int64 (Firestore) or float64 (JSON backed stores); both are accepted.
type Fields struct {
	data       map[string]any
	collection string
	id         string
}

// FieldsOf wraps a raw map, e.g. a nested object inside a document.
func FieldsOf(data map[string]any) Fields {
	return Fields{data: data}
}

func (f Fields) malformed(key, format string, args ...any) error {
	where := key
	if f.collection != "" {
		where = fmt.Sprintf("%s/%s.%s", f.collection, f.id, key)
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformed, where, fmt.Sprintf(format, args...))
}

// Has reports whether key is present and non-nil.
func (f Fields) Has(key string) bool {
	v, ok := f.data[key]
	return ok && v != nil
}

// String returns a required non-empty string.
func (f Fields) String(key string) (string, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return "", f.malformed(key, "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", f.malformed(key, "expected string, got %T", v)
	}
	if strings.TrimSpace(s) == "" {
		return "", f.malformed(key, "empty")
	}
	return s, nil
}

// OptString returns the string at key or "" when absent or not a string.
func (f Fields) OptString(key string) string {
	s, _ := f.data[key].(string)
	return s
}

// Int returns a required integral number.
func (f Fields) Int(key string) (int64, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return 0, f.malformed(key, "missing")
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, f.malformed(key, "%v", err)
	}
	return n, nil
}

// OptInt returns the integer at key, def when absent.
func (f Fields) OptInt(key string, def int64) (int64, error) {
	if !f.Has(key) {
		return def, nil
	}
	return f.Int(key)
}

// Decimal returns a number stored either natively or as a numeric string.
func (f Fields) Decimal(key string) (decimal.Decimal, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return decimal.Zero, f.malformed(key, "missing")
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, f.malformed(key, "not a number: %q", t)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, f.malformed(key, "not a number: %q", t)
		}
		return d, nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return decimal.Zero, f.malformed(key, "%v", err)
		}
		return decimal.NewFromInt(n), nil
	}
}

// Time returns a timestamp stored natively or as RFC 3339 text.
func (f Fields) Time(key string) (time.Time, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return time.Time{}, f.malformed(key, "missing")
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, f.malformed(key, "invalid timestamp %q", t)
		}
		return parsed, nil
	default:
		return time.Time{}, f.malformed(key, "expected timestamp, got %T", v)
	}
}

// Map returns a required nested object.
func (f Fields) Map(key string) (map[string]any, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return nil, f.malformed(key, "missing")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, f.malformed(key, "expected object, got %T", v)
	}
	return m, nil
}

// OptMap returns the nested object at key, or nil when absent.
func (f Fields) OptMap(key string) (map[string]any, error) {
	if !f.Has(key) {
		return nil, nil
	}
	return f.Map(key)
}

// Slice returns a required array.
func (f Fields) Slice(key string) ([]any, error) {
	v, ok := f.data[key]
	if !ok || v == nil {
		return nil, f.malformed(key, "missing")
	}
	s, ok := v.([]any)
	if !ok {
		return nil, f.malformed(key, "expected array, got %T", v)
	}
	return s, nil
}

// OptSlice returns the array at key, or nil when absent.
func (f Fields) OptSlice(key string) ([]any, error) {
	if !f.Has(key) {
		return nil, nil
	}
	return f.Slice(key)
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, fmt.Errorf("expected integer, got %v", t)
		}
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// cloneJSON deep-copies data through a JSON round trip, normalizing values
// the way the SQL and memory backends persist them.
func cloneJSON(data map[string]any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return out, nil
}

// matches evaluates equality filters against normalized data.
func matches(data map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		if f.Op != OpEqual {
			return false, fmt.Errorf("unsupported query operator %q", f.Op)
		}
		v, ok := data[f.Field]
		if !ok {
			return false, nil
		}
		if !valuesEqual(v, f.Value) {
			return false, nil
		}
	}
	return true, nil
}

func valuesEqual(a, b any) bool {
	if an, aerr := toFloat(a); aerr == nil {
		if bn, berr := toFloat(b); berr == nil {
			return an == bn
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("not numeric")
	}
}
