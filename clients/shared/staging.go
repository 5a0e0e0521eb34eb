package shared

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// rowsPerStatement bounds a multi-row INSERT by the configured row count and the bind parameter limit of the engine.
func rowsPerStatement(dialect sql.Dialect, rowsPerInsert, numCols int) (int, error) {
	maxRows := dialect.MaxBindParameters() / numCols
	if maxRows < 1 {
		return 0, fmt.Errorf("%d columns exceed the limit of %d bind parameters per statement", numCols, dialect.MaxBindParameters())
	}

	return max(min(rowsPerInsert, maxRows), 1), nil
}

// LoadRows creates [tableID] and inserts [rows] into it. Every row gets its position in the batch as
// [constants.OrdinalColumn], so later rows win over earlier rows with the same key.
func LoadRows(ctx context.Context, logger *slog.Logger, dest destination.Destination, tableID sql.TableIdentifier, cols *columns.Columns, rows []map[string]any, rowsPerInsert int) error {
	tableCols := append(cols.GetColumns(), columns.NewColumn(constants.OrdinalColumn, typing.Integer))
	if err := CreateTable(ctx, logger, dest, tableID, tableCols, sql.CreateTableArgs{}); err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	dialect := dest.Dialect()
	chunkSize, err := rowsPerStatement(dialect, rowsPerInsert, len(tableCols))
	if err != nil {
		return err
	}

	names := make([]string, len(tableCols))
	for i, col := range tableCols {
		names[i] = col.Name()
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", tableID.FullyQualifiedName(), strings.Join(sql.QuoteColumns(names, dialect), ","))

	tx, err := dest.Begin()
	if err != nil {
		return fmt.Errorf("failed to start tx: %w", err)
	}
	var committed bool
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				logger.Warn("Unable to rollback", slog.Any("err", rollbackErr))
			}
		}
	}()

	for start := 0; start < len(rows); start += chunkSize {
		chunk := rows[start:min(start+chunkSize, len(rows))]
		tuples := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(tableCols))
		for i, row := range chunk {
			tuples[i] = "(" + sql.Placeholders(dialect, len(args), len(tableCols)) + ")"
			for _, col := range cols.GetColumns() {
				value, err := dialect.ConvertValue(row[col.Name()])
				if err != nil {
					return fmt.Errorf("failed to convert value for column %q: %w", col.Name(), err)
				}
				args = append(args, value)
			}
			args = append(args, int64(start+i))
		}

		if _, err = tx.ExecContext(ctx, prefix+strings.Join(tuples, ","), args...); err != nil {
			return fmt.Errorf("failed to insert rows into %q: %w", tableID.FullyQualifiedName(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	committed = true
	return nil
}

// BuildStagingQuery wraps [query] so it yields the rows to merge: one row per primary key (the newest by sequence
// columns, then by arrival order), the [commit] stamp and, for targets with a delete predicate, the evaluated
// delete marker. It returns the query and the columns it produces.
func BuildStagingQuery(dialect sql.Dialect, target Target, query string, names []string, commit int64) (string, []string, error) {
	hasOrdinal := slices.ContainsFunc(names, func(name string) bool { return columns.EqualNames(name, constants.OrdinalColumn) })
	payload := slices.DeleteFunc(slices.Clone(names), func(name string) bool {
		return columns.EqualNames(name, constants.OrdinalColumn) || columns.EqualNames(name, constants.RankColumn) ||
			columns.EqualNames(name, constants.CommitColumn) ||
			(target.SoftDelete() && columns.EqualNames(name, constants.DeleteColumnMarker))
	})

	if len(payload) == 0 {
		return "", nil, fmt.Errorf("batch has no columns")
	}

	for _, name := range append(slices.Clone(target.PrimaryKeys), target.SequenceBy...) {
		if !slices.ContainsFunc(payload, func(n string) bool { return columns.EqualNames(n, name) }) {
			return "", nil, fmt.Errorf("column %q does not exist in the batch", name)
		}
	}

	selects := sql.QuoteColumns(payload, dialect)
	outputCols := slices.Clone(payload)
	if target.SoftDelete() {
		selects = append(selects, fmt.Sprintf("COALESCE((%s), false) AS %s", target.ApplyAsDelete, dialect.QuoteIdentifier(constants.DeleteColumnMarker)))
		outputCols = append(outputCols, constants.DeleteColumnMarker)
	}
	selects = append(selects, fmt.Sprintf("CAST(%d AS BIGINT) AS %s", commit, dialect.QuoteIdentifier(constants.CommitColumn)))
	outputCols = append(outputCols, constants.CommitColumn)

	if len(target.PrimaryKeys) == 0 {
		return fmt.Sprintf("SELECT %s FROM (%s) AS staged_", strings.Join(selects, ", "), query), outputCols, nil
	}

	var orderBy []string
	for _, name := range target.SequenceBy {
		orderBy = append(orderBy, dialect.QuoteIdentifier(name)+" DESC NULLS LAST")
	}
	if hasOrdinal {
		orderBy = append(orderBy, dialect.QuoteIdentifier(constants.OrdinalColumn)+" DESC")
	}
	if len(orderBy) == 0 {
		orderBy = sql.QuoteColumns(target.PrimaryKeys, dialect)
	}

	rank := dialect.QuoteIdentifier(constants.RankColumn)
	ranked := fmt.Sprintf("SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s FROM (%s) AS ranked_",
		strings.Join(sql.QuoteColumns(target.PrimaryKeys, dialect), ", "), strings.Join(orderBy, ", "), rank, query)
	return fmt.Sprintf("SELECT %s FROM (%s) AS staged_ WHERE %s = 1", strings.Join(selects, ", "), ranked, rank), outputCols, nil
}
