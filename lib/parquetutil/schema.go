package parquetutil

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

func kindForArrowType(dataType arrow.DataType) typing.KindDetails {
	switch dataType.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64, arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return typing.Integer
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return typing.Float
	case arrow.BOOL:
		return typing.Boolean
	case arrow.TIMESTAMP:
		return typing.Timestamp
	case arrow.DATE32, arrow.DATE64:
		return typing.Date
	case arrow.STRUCT, arrow.MAP:
		return typing.Struct
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return typing.Array
	default:
		return typing.String
	}
}

// ColumnsFromArrowSchema maps the fields of a parquet file (read through Arrow) to columns.
func ColumnsFromArrowSchema(schema *arrow.Schema) (*columns.Columns, error) {
	if schema == nil || schema.NumFields() == 0 {
		return nil, fmt.Errorf("parquet schema has no fields")
	}

	cols := columns.NewColumns()
	for _, field := range schema.Fields() {
		cols.AddColumn(columns.NewColumn(field.Name, kindForArrowType(field.Type)))
	}

	return cols, nil
}
