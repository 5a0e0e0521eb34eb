package destination

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
	sqllib "github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// SQLExecutor is an interface for destinations that can execute SQL commands.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Begin() (*sql.Tx, error)
}

// Catalog resolves table storage paths to relations the engine can evaluate.
type Catalog interface {
	// RegisterTable records that [tableID] is stored at [path].
	RegisterTable(ctx context.Context, tableID sqllib.TableIdentifier, path string) error
	RelationForPath(ctx context.Context, path string) (string, error)
	DescribeRelation(ctx context.Context, relation string) (*columns.Columns, error)
}

// Destination is a table engine hosting the targets of pipelines.
type Destination interface {
	SQLExecutor
	Catalog

	Kind() constants.DestinationKind
	Dialect() sqllib.Dialect
	IdentifierFor(database, table string) sqllib.TableIdentifier
	// EnsureDatabase creates the namespace of [tableID] at [location] unless it already exists.
	EnsureDatabase(ctx context.Context, tableID sqllib.TableIdentifier, location string) error
	// Merge applies [arg] atomically and reports what it changed.
	Merge(ctx context.Context, arg dml.MergeArgument) (types.MergeOutcome, error)
	Close() error
}

// ExecContextStatements executes one or more statements against a [SQLExecutor].
// If there is more than one statement, the statements will be executed inside of a transaction.
func ExecContextStatements(ctx context.Context, logger *slog.Logger, executor SQLExecutor, statements []string) ([]sql.Result, error) {
	switch len(statements) {
	case 0:
		return nil, fmt.Errorf("statements is empty")
	case 1:
		logger.Debug("Executing...", slog.String("query", statements[0]))
		result, err := executor.ExecContext(ctx, statements[0])
		if err != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", err)
		}

		return []sql.Result{result}, nil
	default:
		tx, err := executor.Begin()
		if err != nil {
			return nil, fmt.Errorf("failed to start tx: %w", err)
		}
		var committed bool
		defer func() {
			if !committed {
				if rollbackErr := tx.Rollback(); rollbackErr != nil {
					logger.Warn("Unable to rollback", slog.Any("err", rollbackErr))
				}
			}
		}()

		var results []sql.Result
		for _, statement := range statements {
			logger.Debug("Executing...", slog.String("query", statement))
			result, err := tx.ExecContext(ctx, statement)
			if err != nil {
				return nil, fmt.Errorf("failed to execute statement: %q, err: %w", statement, err)
			}

			results = append(results, result)
		}

		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit statements: %v, err: %w", statements, err)
		}
		committed = true
		return results, nil
	}
}
