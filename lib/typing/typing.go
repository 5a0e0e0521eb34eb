package typing

import (
	"fmt"
	"strings"
)

type KindDetails struct {
	Kind string
}

var (
	Invalid = KindDetails{
		Kind: "invalid",
	}

	String = KindDetails{
		Kind: "string",
	}

	Integer = KindDetails{
		Kind: "int",
	}

	Float = KindDetails{
		Kind: "float",
	}

	Boolean = KindDetails{
		Kind: "bool",
	}

	Timestamp = KindDetails{
		Kind: "timestamp",
	}

	Date = KindDetails{
		Kind: "date",
	}

	Struct = KindDetails{
		Kind: "struct",
	}

	Array = KindDetails{
		Kind: "array",
	}
)

func (k KindDetails) String() string {
	return k.Kind
}

// sparkTypes maps the simple type names used by Spark StructType JSON documents.
var sparkTypes = map[string]KindDetails{
	"string":    String,
	"varchar":   String,
	"char":      String,
	"binary":    String,
	"byte":      Integer,
	"short":     Integer,
	"integer":   Integer,
	"int":       Integer,
	"long":      Integer,
	"bigint":    Integer,
	"float":     Float,
	"double":    Float,
	"boolean":   Boolean,
	"timestamp": Timestamp,
	"date":      Date,
	"struct":    Struct,
	"map":       Struct,
	"array":     Array,
}

// KindFromSparkType resolves a Spark simple type name. Decimals (`decimal(10,2)`) and sized strings map to their base kind.
func KindFromSparkType(name string) (KindDetails, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "decimal") {
		return Float, nil
	}

	if idx := strings.Index(name, "("); idx > 0 {
		name = name[:idx]
	}

	kd, isOk := sparkTypes[name]
	if !isOk {
		return Invalid, NewUnsupportedDataTypeError(fmt.Sprintf("unsupported data type: %q", name))
	}

	return kd, nil
}

// ParseValue returns the kind of a decoded Go value. Nil values are [Invalid] so they never decide a column's kind.
func ParseValue(val any) KindDetails {
	switch castedVal := val.(type) {
	case nil:
		return Invalid
	case uint, int, uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return Integer
	case float32, float64:
		return Float
	case bool:
		return Boolean
	case string:
		return String
	case map[string]any:
		return Struct
	case []any:
		return Array
	default:
		if kd, isOk := parseTemporal(castedVal); isOk {
			return kd
		}

		if kd, isOk := parseNumber(castedVal); isOk {
			return kd
		}

		return String
	}
}

// Widen returns the narrowest kind that can hold values of both [a] and [b].
func Widen(a, b KindDetails) KindDetails {
	switch {
	case a == Invalid:
		return b
	case b == Invalid, a == b:
		return a
	case (a == Integer && b == Float) || (a == Float && b == Integer):
		return Float
	case (a == Date && b == Timestamp) || (a == Timestamp && b == Date):
		return Timestamp
	default:
		return String
	}
}
