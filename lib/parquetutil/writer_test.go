package parquetutil

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

func arrowTypeForKind(kd typing.KindDetails) (arrow.DataType, error) {
	switch kd {
	case typing.String, typing.Struct, typing.Array:
		return arrow.BinaryTypes.String, nil
	case typing.Integer:
		return arrow.PrimitiveTypes.Int64, nil
	case typing.Float:
		return arrow.PrimitiveTypes.Float64, nil
	case typing.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case typing.Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case typing.Date:
		return arrow.FixedWidthTypes.Date32, nil
	default:
		return nil, typing.NewUnsupportedDataTypeError(fmt.Sprintf("unsupported kind for parquet: %q", kd.Kind))
	}
}

// buildArrowSchema is the inverse of [ColumnsFromArrowSchema], nested kinds are written as JSON strings.
func buildArrowSchema(cols *columns.Columns) (*arrow.Schema, error) {
	var fields []arrow.Field
	for _, col := range cols.GetColumns() {
		dataType, err := arrowTypeForKind(col.KindDetails)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name(), err)
		}

		fields = append(fields, arrow.Field{Name: col.Name(), Type: dataType, Nullable: true})
	}

	return arrow.NewSchema(fields, nil), nil
}

// writeRows encodes rows into a snappy compressed parquet file.
func writeRows(cols *columns.Columns, rows []map[string]any) ([]byte, error) {
	schema, err := buildArrowSchema(cols)
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for _, row := range rows {
		for i, col := range cols.GetColumns() {
			value, err := typing.Cast(col.Name(), row[col.Name()], col.KindDetails)
			if err != nil {
				return nil, err
			}

			if err = appendValue(builder.Field(i), col.KindDetails, value); err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name(), err)
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf, parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy)), pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err = writer.Write(record); err != nil {
		return nil, fmt.Errorf("failed to write record: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

func appendValue(builder array.Builder, kd typing.KindDetails, value any) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}

	switch castedBuilder := builder.(type) {
	case *array.StringBuilder:
		str, err := typing.Cast("", value, typing.String)
		if err != nil {
			return err
		}
		castedBuilder.Append(str.(string))
	case *array.Int64Builder:
		castedBuilder.Append(value.(int64))
	case *array.Float64Builder:
		castedBuilder.Append(value.(float64))
	case *array.BooleanBuilder:
		castedBuilder.Append(value.(bool))
	case *array.TimestampBuilder:
		ts, err := arrow.TimestampFromTime(value.(time.Time), arrow.Microsecond)
		if err != nil {
			return err
		}
		castedBuilder.Append(ts)
	case *array.Date32Builder:
		castedBuilder.Append(arrow.Date32FromTime(value.(time.Time)))
	default:
		return fmt.Errorf("unsupported builder %T for kind %q", builder, kd.Kind)
	}

	return nil
}
