package ddl

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/stringutil"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (gosql.Result, error)
}

// StagingTableName looks like this: tableName__ingest_RANDOM_STRING(5)_expiryUnixTs
func StagingTableName(table string, now time.Time) string {
	return fmt.Sprintf("%s%s_%s_%d", table, constants.IngestPrefix, stringutil.Random(5), now.Add(constants.TemporaryTableTTL).Unix())
}

func IsStagingTable(name string) bool {
	return strings.Contains(strings.ToLower(name), constants.IngestPrefix+"_") && !strings.EqualFold(name, constants.CatalogTable)
}

// ColumnDefinitions returns the column clauses of a CREATE TABLE statement. The reported engine type of a
// column wins over the type derived from its kind.
func ColumnDefinitions(dialect sql.Dialect, cols []columns.Column) []string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		dataType := col.DataType
		if dataType == "" {
			dataType = dialect.DataTypeForKind(col.KindDetails)
		}
		parts[i] = sql.BuildColumnDefinition(dialect, col.Name(), dataType)
	}
	return parts
}

// DropStagingTable drops [tableID], it refuses to drop tables that are not staging tables.
func DropStagingTable(ctx context.Context, logger *slog.Logger, executor executor, dialect sql.Dialect, tableID sql.TableIdentifier) error {
	if !IsStagingTable(tableID.Table()) {
		logger.Warn("Skipped dropping table because it is not a staging table", slog.String("table", tableID.FullyQualifiedName()))
		return nil
	}

	query := dialect.BuildDropTableQuery(tableID)
	logger.Debug("Dropping staging table", slog.String("query", query))
	if _, err := executor.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop staging table %q: %w", tableID.FullyQualifiedName(), err)
	}

	return nil
}
