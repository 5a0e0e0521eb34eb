package columns

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/typing"
)

type sparkField struct {
	Name     string              `json:"name"`
	Type     jsoniter.RawMessage `json:"type"`
	Nullable *bool               `json:"nullable"`
}

type sparkStruct struct {
	Type   string       `json:"type"`
	Fields []sparkField `json:"fields"`
}

// FromSparkSchema parses a Spark StructType document, either already decoded (map[string]any) or as JSON text.
func FromSparkSchema(schema any) (*Columns, error) {
	var raw []byte
	switch castedSchema := schema.(type) {
	case nil:
		return nil, fmt.Errorf("schema is empty")
	case string:
		raw = []byte(castedSchema)
	case []byte:
		raw = castedSchema
	default:
		bytes, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(castedSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema: %w", err)
		}
		raw = bytes
	}

	var parsed sparkStruct
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	if parsed.Type != "struct" {
		return nil, fmt.Errorf("schema type must be %q, got %q", "struct", parsed.Type)
	}

	if len(parsed.Fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}

	cols := NewColumns()
	for _, field := range parsed.Fields {
		if field.Name == "" {
			return nil, fmt.Errorf("schema field is missing a name")
		}

		kd, err := fieldKind(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}

		cols.AddColumn(NewColumn(field.Name, kd))
	}

	return cols, nil
}

func fieldKind(raw jsoniter.RawMessage) (typing.KindDetails, error) {
	var simple string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &simple); err == nil {
		return typing.KindFromSparkType(simple)
	}

	var complexType struct {
		Type string `json:"type"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &complexType); err != nil {
		return typing.Invalid, fmt.Errorf("failed to parse type: %w", err)
	}

	return typing.KindFromSparkType(complexType.Type)
}
