package preference

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeError is returned when a value cannot be converted.
type TypeError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("preference %s: expected %s, got %s", e.Name, e.Expected, e.Actual)
}

// normalize maps integer and float kinds onto int64 and float64 so stored
// values compare equal regardless of how they were written.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case fmt.Stringer:
		return v.String()
	default:
		return value
	}
}

// AsBool converts a stored value to a bool.
func AsBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, &TypeError{Name: name, Expected: "boolean", Actual: strconv.Quote(v)}
		}
		return b, nil
	default:
		return false, &TypeError{Name: name, Expected: "boolean", Actual: fmt.Sprintf("%T", value)}
	}
}

// AsInt64 converts a stored value to an int64.
func AsInt64(name string, value any) (int64, error) {
	switch v := normalize(value).(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, &TypeError{Name: name, Expected: "integer", Actual: strconv.Quote(v)}
		}
		return n, nil
	default:
		return 0, &TypeError{Name: name, Expected: "integer", Actual: fmt.Sprintf("%T", value)}
	}
}

// AsFloat64 converts a stored value to a float64.
func AsFloat64(name string, value any) (float64, error) {
	switch v := normalize(value).(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &TypeError{Name: name, Expected: "number", Actual: strconv.Quote(v)}
		}
		return f, nil
	default:
		return 0, &TypeError{Name: name, Expected: "number", Actual: fmt.Sprintf("%T", value)}
	}
}

// AsString converts a stored value to its string form.
func AsString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
