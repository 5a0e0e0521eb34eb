package shared

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
)

// ExecuteStatementMerge runs the merge as an ordered list of statements inside one transaction and counts
// the rows each statement changed.
func ExecuteStatementMerge(ctx context.Context, logger *slog.Logger, executor destination.SQLExecutor, arg dml.MergeArgument) (types.MergeOutcome, error) {
	statements, err := arg.BuildStatements()
	if err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to generate merge statements: %w", err)
	}

	queries := make([]string, len(statements))
	for i, statement := range statements {
		queries[i] = statement.Query
	}

	results, err := destination.ExecContextStatements(ctx, logger, executor, queries)
	if err != nil {
		return types.MergeOutcome{}, err
	}

	var outcome types.MergeOutcome
	for i, result := range results {
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return types.MergeOutcome{}, fmt.Errorf("failed to get rows affected: %w", err)
		}

		switch statements[i].Kind {
		case dml.SoftDeleteStatement:
			outcome.Deleted = rowsAffected
		case dml.UpdateStatement:
			outcome.Updated = rowsAffected
		case dml.InsertStatement:
			outcome.Inserted = rowsAffected
		}
	}

	return outcome, nil
}
