package parquetutil

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	jsoniter "github.com/json-iterator/go"
)

// RecordToRows converts an Arrow record into rows keyed by field name.
func RecordToRows(record arrow.Record) ([]map[string]any, error) {
	rows := make([]map[string]any, record.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any, record.NumCols())
	}

	for colIdx, field := range record.Schema().Fields() {
		column := record.Column(colIdx)
		for rowIdx := range rows {
			value, err := valueAt(column, rowIdx)
			if err != nil {
				return nil, fmt.Errorf("failed to read column %q: %w", field.Name, err)
			}
			rows[rowIdx][field.Name] = value
		}
	}

	return rows, nil
}

func valueAt(column arrow.Array, idx int) (any, error) {
	if column.IsNull(idx) {
		return nil, nil
	}

	switch castedColumn := column.(type) {
	case *array.String:
		return castedColumn.Value(idx), nil
	case *array.LargeString:
		return castedColumn.Value(idx), nil
	case *array.Binary:
		return string(castedColumn.Value(idx)), nil
	case *array.Boolean:
		return castedColumn.Value(idx), nil
	case *array.Int8:
		return int64(castedColumn.Value(idx)), nil
	case *array.Int16:
		return int64(castedColumn.Value(idx)), nil
	case *array.Int32:
		return int64(castedColumn.Value(idx)), nil
	case *array.Int64:
		return castedColumn.Value(idx), nil
	case *array.Uint8:
		return int64(castedColumn.Value(idx)), nil
	case *array.Uint16:
		return int64(castedColumn.Value(idx)), nil
	case *array.Uint32:
		return int64(castedColumn.Value(idx)), nil
	case *array.Uint64:
		return castedColumn.Value(idx), nil
	case *array.Float32:
		return float64(castedColumn.Value(idx)), nil
	case *array.Float64:
		return castedColumn.Value(idx), nil
	case *array.Decimal128:
		scale := castedColumn.DataType().(*arrow.Decimal128Type).Scale
		return castedColumn.Value(idx).ToString(scale), nil
	case *array.Timestamp:
		unit := castedColumn.DataType().(*arrow.TimestampType).Unit
		return castedColumn.Value(idx).ToTime(unit).UTC(), nil
	case *array.Date32:
		return castedColumn.Value(idx).ToTime().UTC(), nil
	case *array.Date64:
		return castedColumn.Value(idx).ToTime().UTC(), nil
	default:
		// Nested types go through their JSON representation.
		bytes, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(column.GetOneForMarshal(idx))
		if err != nil {
			return nil, err
		}

		var out any
		if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(bytes, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
