package typing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, Invalid, ParseValue(nil))
	assert.Equal(t, Integer, ParseValue(5))
	assert.Equal(t, Integer, ParseValue(int64(5)))
	assert.Equal(t, Float, ParseValue(5.5))
	assert.Equal(t, Boolean, ParseValue(true))
	assert.Equal(t, String, ParseValue("2024-01-01"))
	assert.Equal(t, Struct, ParseValue(map[string]any{"a": 1}))
	assert.Equal(t, Array, ParseValue([]any{1, 2}))
	assert.Equal(t, Timestamp, ParseValue(time.Now()))
	assert.Equal(t, Integer, ParseValue(json.Number("12")))
	assert.Equal(t, Float, ParseValue(json.Number("12.5")))
}

func TestKindFromSparkType(t *testing.T) {
	for name, expected := range map[string]KindDetails{
		"string":        String,
		"LONG":          Integer,
		"integer":       Integer,
		"double":        Float,
		"decimal(10,2)": Float,
		"boolean":       Boolean,
		"timestamp":     Timestamp,
		"date":          Date,
		"varchar(20)":   String,
		"array":         Array,
		"struct":        Struct,
	} {
		kd, err := KindFromSparkType(name)
		assert.NoError(t, err, name)
		assert.Equal(t, expected, kd, name)
	}

	_, err := KindFromSparkType("interval")
	assert.True(t, IsUnsupportedDataTypeError(err))
}

func TestWiden(t *testing.T) {
	assert.Equal(t, Integer, Widen(Invalid, Integer))
	assert.Equal(t, Integer, Widen(Integer, Invalid))
	assert.Equal(t, Integer, Widen(Integer, Integer))
	assert.Equal(t, Float, Widen(Integer, Float))
	assert.Equal(t, Float, Widen(Float, Integer))
	assert.Equal(t, Timestamp, Widen(Date, Timestamp))
	assert.Equal(t, String, Widen(Boolean, Integer))
	assert.Equal(t, String, Widen(Timestamp, String))
}

func TestInferFromString(t *testing.T) {
	assert.Equal(t, Invalid, InferFromString(""))
	assert.Equal(t, Invalid, InferFromString("   "))
	assert.Equal(t, Integer, InferFromString("42"))
	assert.Equal(t, Integer, InferFromString("-42"))
	assert.Equal(t, Float, InferFromString("4.2"))
	assert.Equal(t, Boolean, InferFromString("TRUE"))
	assert.Equal(t, Date, InferFromString("2024-03-01"))
	assert.Equal(t, Timestamp, InferFromString("2024-03-01T10:00:00Z"))
	assert.Equal(t, Timestamp, InferFromString("2024-03-01 10:00:00"))
	assert.Equal(t, String, InferFromString("hello"))
}

func TestCast(t *testing.T) {
	{
		// Nulls
		value, err := Cast("a", nil, Integer)
		assert.NoError(t, err)
		assert.Nil(t, value)

		value, err = Cast("a", " ", Integer)
		assert.NoError(t, err)
		assert.Nil(t, value)

		// Empty strings stay strings
		value, err = Cast("a", "", String)
		assert.NoError(t, err)
		assert.Equal(t, "", value)
	}
	{
		// Integers
		value, err := Cast("a", "15", Integer)
		assert.NoError(t, err)
		assert.Equal(t, int64(15), value)

		value, err = Cast("a", float64(15), Integer)
		assert.NoError(t, err)
		assert.Equal(t, int64(15), value)

		value, err = Cast("a", json.Number("16"), Integer)
		assert.NoError(t, err)
		assert.Equal(t, int64(16), value)

		_, err = Cast("a", 15.5, Integer)
		assert.ErrorContains(t, err, "failed to cast column a to int: value 15.5 is not a whole number")
	}
	{
		// Floats
		value, err := Cast("a", "1.5", Float)
		assert.NoError(t, err)
		assert.Equal(t, 1.5, value)

		value, err = Cast("a", 3, Float)
		assert.NoError(t, err)
		assert.Equal(t, float64(3), value)
	}
	{
		// Booleans
		value, err := Cast("a", "true", Boolean)
		assert.NoError(t, err)
		assert.Equal(t, true, value)

		_, err = Cast("a", 1, Boolean)
		var castErr CastError
		assert.ErrorAs(t, err, &castErr)
		assert.Equal(t, "a", castErr.Column)
	}
	{
		// Timestamps + dates
		value, err := Cast("a", "2024-03-01T10:00:00+02:00", Timestamp)
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), value)

		value, err = Cast("a", "2024-03-01", Timestamp)
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), value)

		value, err = Cast("a", "2024-03-01", Date)
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), value)
	}
	{
		// Strings
		value, err := Cast("a", 12, String)
		assert.NoError(t, err)
		assert.Equal(t, "12", value)

		value, err = Cast("a", map[string]any{"b": 1}, String)
		assert.NoError(t, err)
		assert.Equal(t, `{"b":1}`, value)
	}
	{
		// Structs + arrays
		value, err := Cast("a", `{"b": "c"}`, Struct)
		assert.NoError(t, err)
		assert.Equal(t, map[string]any{"b": "c"}, value)

		value, err = Cast("a", `[1, 2]`, Array)
		assert.NoError(t, err)
		assert.Equal(t, []any{float64(1), float64(2)}, value)

		_, err = Cast("a", `nope`, Array)
		assert.ErrorContains(t, err, "failed to parse JSON")
	}
	{
		// Unsupported kind
		_, err := Cast("a", "x", Invalid)
		assert.True(t, IsUnsupportedDataTypeError(err))
	}
}

func TestAssertType(t *testing.T) {
	val, err := AssertType[string]("hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", val)

	_, err = AssertType[string](1)
	assert.ErrorContains(t, err, "expected type string, got int")
}
