package typing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func AssertType[T any](val any) (T, error) {
	castedVal, isOk := val.(T)
	if !isOk {
		var zero T
		return zero, fmt.Errorf("expected type %T, got %T", zero, val)
	}
	return castedVal, nil
}

// Cast converts [val] into the Go representation of [kd]:
// int64, float64, bool, string, time.Time, map[string]any or []any. Nil and empty strings (for non string kinds) become nil.
func Cast(column string, val any, kd KindDetails) (any, error) {
	if val == nil {
		return nil, nil
	}

	if str, isOk := val.(string); isOk && kd != String && strings.TrimSpace(str) == "" {
		return nil, nil
	}

	var casted any
	var err error
	switch kd {
	case String:
		casted, err = toString(val)
	case Integer:
		casted, err = toInteger(val)
	case Float:
		casted, err = toFloat(val)
	case Boolean:
		casted, err = toBoolean(val)
	case Timestamp:
		casted, err = toTimestamp(val)
	case Date:
		casted, err = toDate(val)
	case Struct:
		casted, err = fromJSON[map[string]any](val)
	case Array:
		casted, err = fromJSON[[]any](val)
	default:
		return nil, NewUnsupportedDataTypeError(fmt.Sprintf("unsupported kind: %q", kd.Kind))
	}

	if err != nil {
		return nil, CastError{Column: column, Kind: kd, Value: val, err: err}
	}

	return casted, nil
}

func toString(val any) (string, error) {
	switch castedVal := val.(type) {
	case string:
		return castedVal, nil
	case time.Time:
		return castedVal.UTC().Format(time.RFC3339Nano), nil
	case map[string]any, []any:
		bytes, err := jsonAPI.Marshal(castedVal)
		if err != nil {
			return "", err
		}
		return string(bytes), nil
	default:
		return fmt.Sprint(castedVal), nil
	}
}

func toInteger(val any) (int64, error) {
	switch castedVal := val.(type) {
	case int:
		return int64(castedVal), nil
	case int8:
		return int64(castedVal), nil
	case int16:
		return int64(castedVal), nil
	case int32:
		return int64(castedVal), nil
	case int64:
		return castedVal, nil
	case uint8:
		return int64(castedVal), nil
	case uint16:
		return int64(castedVal), nil
	case uint32:
		return int64(castedVal), nil
	case uint64:
		if castedVal > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", castedVal)
		}
		return int64(castedVal), nil
	case float32:
		return toInteger(float64(castedVal))
	case float64:
		if castedVal != math.Trunc(castedVal) {
			return 0, fmt.Errorf("value %v is not a whole number", castedVal)
		}
		return int64(castedVal), nil
	case number:
		return castedVal.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(castedVal), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", val)
	}
}

func toFloat(val any) (float64, error) {
	switch castedVal := val.(type) {
	case float64:
		return castedVal, nil
	case float32:
		return float64(castedVal), nil
	case number:
		return castedVal.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(castedVal), 64)
	case bool:
		return 0, fmt.Errorf("unexpected type %T", val)
	default:
		integer, err := toInteger(val)
		if err != nil {
			return 0, err
		}
		return float64(integer), nil
	}
}

func toBoolean(val any) (bool, error) {
	switch castedVal := val.(type) {
	case bool:
		return castedVal, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(castedVal))
	default:
		return false, fmt.Errorf("unexpected type %T", val)
	}
}

func toTimestamp(val any) (time.Time, error) {
	switch castedVal := val.(type) {
	case time.Time:
		return castedVal.UTC(), nil
	case string:
		castedVal = strings.TrimSpace(castedVal)
		if ts, err := ParseTimestamp(castedVal); err == nil {
			return ts.UTC(), nil
		}
		return time.Parse(DateLayout, castedVal)
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", val)
	}
}

func toDate(val any) (time.Time, error) {
	switch castedVal := val.(type) {
	case time.Time:
		year, month, day := castedVal.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	case string:
		return time.Parse(DateLayout, strings.TrimSpace(castedVal))
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", val)
	}
}

func fromJSON[T any](val any) (T, error) {
	if castedVal, isOk := val.(T); isOk {
		return castedVal, nil
	}

	var out T
	str, err := AssertType[string](val)
	if err != nil {
		return out, err
	}

	if err = jsonAPI.Unmarshal([]byte(str), &out); err != nil {
		return out, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return out, nil
}
