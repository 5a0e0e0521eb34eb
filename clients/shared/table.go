package shared

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/destination/ddl"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// DescribeTable returns the columns of [tableID] with the engine types, nil if the table does not exist.
func DescribeTable(ctx context.Context, dest destination.Destination, tableID sql.TableIdentifier) (*columns.Columns, error) {
	query, args := dest.Dialect().BuildDescribeTableQuery(tableID)
	rows, err := dest.QueryContext(ctx, query, args...)
	if err != nil {
		if dest.Dialect().IsTableDoesNotExistErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe table %q: %w", tableID.FullyQualifiedName(), err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if len(colNames) < 2 {
		return nil, fmt.Errorf("describe query returned %d columns, expected at least 2", len(colNames))
	}

	cols := columns.NewColumns()
	for rows.Next() {
		values := make([]gosql.NullString, len(colNames))
		pointers := make([]any, len(colNames))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err = rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan describe row: %w", err)
		}

		// Databricks lists partition and table details after a blank or `#` prefixed row.
		name := strings.TrimSpace(values[0].String)
		if name == "" || strings.HasPrefix(name, "#") {
			break
		}

		dataType := strings.TrimSpace(values[1].String)
		cols.AddColumn(columns.NewColumnWithDataType(name, dest.Dialect().KindForDataType(dataType), dataType))
	}

	if err = rows.Err(); err != nil {
		if dest.Dialect().IsTableDoesNotExistErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe table %q: %w", tableID.FullyQualifiedName(), err)
	}

	if cols.Len() == 0 {
		return nil, nil
	}

	return cols, nil
}

func CreateTable(ctx context.Context, logger *slog.Logger, dest destination.Destination, tableID sql.TableIdentifier, cols []columns.Column, args sql.CreateTableArgs) error {
	if len(cols) == 0 {
		return fmt.Errorf("cannot create table %q without columns", tableID.FullyQualifiedName())
	}

	queries := dest.Dialect().BuildCreateTableQueries(tableID, ddl.ColumnDefinitions(dest.Dialect(), cols), args)
	for _, query := range queries {
		logger.Info("[DDL] Executing query", slog.String("query", query))
	}

	if _, err := destination.ExecContextStatements(ctx, logger, dest, queries); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

func AlterTableAddColumns(ctx context.Context, logger *slog.Logger, dest destination.Destination, tableID sql.TableIdentifier, cols []columns.Column) error {
	for _, colSQLPart := range ddl.ColumnDefinitions(dest.Dialect(), cols) {
		query := dest.Dialect().BuildAddColumnQuery(tableID, colSQLPart)
		logger.Info("[DDL] Executing query", slog.String("query", query))
		if _, err := dest.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to alter table: %w", err)
		}
	}

	return nil
}
