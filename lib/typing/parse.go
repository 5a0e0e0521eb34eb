package typing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = time.DateOnly

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// number is satisfied by json.Number and the json-iterator equivalent.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func parseTemporal(val any) (KindDetails, bool) {
	if _, isOk := val.(time.Time); isOk {
		return Timestamp, true
	}

	return Invalid, false
}

func parseNumber(val any) (KindDetails, bool) {
	num, isOk := val.(number)
	if !isOk {
		return Invalid, false
	}

	if _, err := num.Int64(); err == nil {
		return Integer, true
	}

	return Float, true
}

func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported timestamp layout: %q", value)
}

// InferFromString returns the narrowest kind for a textual value, as read from a CSV file.
// Empty strings are treated as nulls.
func InferFromString(value string) KindDetails {
	value = strings.TrimSpace(value)
	if value == "" {
		return Invalid
	}

	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return Integer
	}

	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return Float
	}

	if lowered := strings.ToLower(value); lowered == "true" || lowered == "false" {
		return Boolean
	}

	if _, err := time.Parse(DateLayout, value); err == nil {
		return Date
	}

	if _, err := ParseTimestamp(value); err == nil {
		return Timestamp
	}

	return String
}
