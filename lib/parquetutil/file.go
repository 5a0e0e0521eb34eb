package parquetutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/artie-labs/medallion/lib/typing/columns"
)

const readBatchSize = 1024

func newFileReader(contents []byte) (*pqarrow.FileReader, error) {
	reader, err := file.NewParquetReader(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{BatchSize: readBatchSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	return arrowReader, nil
}

// ReadSchema only reads the footer of a parquet file.
func ReadSchema(contents []byte) (*columns.Columns, error) {
	arrowReader, err := newFileReader(contents)
	if err != nil {
		return nil, err
	}
	defer arrowReader.ParquetReader().Close()

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet schema: %w", err)
	}

	return ColumnsFromArrowSchema(schema)
}

// ReadRows decodes every row of a parquet file.
func ReadRows(ctx context.Context, contents []byte) ([]map[string]any, error) {
	arrowReader, err := newFileReader(contents)
	if err != nil {
		return nil, err
	}
	defer arrowReader.ParquetReader().Close()

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table: %w", err)
	}
	defer table.Release()

	tableReader := array.NewTableReader(table, readBatchSize)
	defer tableReader.Release()

	var rows []map[string]any
	for tableReader.Next() {
		recordRows, err := RecordToRows(tableReader.Record())
		if err != nil {
			return nil, err
		}
		rows = append(rows, recordRows...)
	}

	return rows, tableReader.Err()
}
