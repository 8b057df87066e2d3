package openlisa

import (
	"fmt"
	"strconv"
	"strings"
)

// ConvertType names the target kinds ConvertValue can coerce a command
// result value into.
type ConvertType string

const (
	ConvertToString ConvertType = "str"
	ConvertToDouble ConvertType = "double"
	ConvertToBytes  ConvertType = "bytes"
	ConvertToInt    ConvertType = "int"
)

// ConversionError reports a value that could not be coerced to the requested
// kind.
type ConversionError struct {
	Value  any
	Target ConvertType
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("could not convert '%v' to type '%s'.", e.Value, e.Target)
}

// ConvertValue coerces a command result value to the requested kind. It is a
// pure function kept outside the protocol dispatcher: runtime type shaping
// is façade policy, not wire mechanics.
//
// Integer conversion goes through a float parse first, so "3.7" converts to
// 3 rather than failing.
func ConvertValue(v any, to ConvertType) (any, error) {
	switch to {
	case ConvertToString:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return fmt.Sprintf("%v", v), nil

	case ConvertToDouble:
		f, ok := toFloat(v)
		if !ok {
			return nil, &ConversionError{Value: v, Target: to}
		}
		return f, nil

	case ConvertToInt:
		f, ok := toFloat(v)
		if !ok {
			return nil, &ConversionError{Value: v, Target: to}
		}
		return int(f), nil

	case ConvertToBytes:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return nil, &ConversionError{Value: v, Target: to}
	}
	return nil, fmt.Errorf("openlisa: unknown convert type %q", to)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	return 0, false
}
