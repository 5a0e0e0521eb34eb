package sql

import (
	"context"
	"database/sql"
	"fmt"
)

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func RowsToObjects(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var objects []map[string]any
	for rows.Next() {
		row := make([]any, len(columns))
		rowPointers := make([]any, len(columns))
		for i := range row {
			rowPointers[i] = &row[i]
		}

		if err = rows.Scan(rowPointers...); err != nil {
			return nil, err
		}

		object := make(map[string]any)
		for i, column := range columns {
			if bytes, isOk := row[i].([]byte); isOk {
				// Drivers return TEXT as []byte, which the buffer reuses on the next scan.
				object[column] = string(bytes)
			} else {
				object[column] = row[i]
			}
		}

		objects = append(objects, object)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over rows: %w", err)
	}

	return objects, nil
}

// QueryInt64 runs a query returning a single integer, NULL and no rows read as zero.
func QueryInt64(ctx context.Context, querier Querier, query string, args ...any) (int64, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var value sql.NullInt64
	if rows.Next() {
		if err = rows.Scan(&value); err != nil {
			return 0, fmt.Errorf("failed to scan %q: %w", query, err)
		}
	}

	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate over rows: %w", err)
	}

	return value.Int64, nil
}

var _ Rows = (*sql.Rows)(nil)
