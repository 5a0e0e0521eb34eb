package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/destination/ddl"
	"github.com/artie-labs/medallion/lib/sql"
)

// Sweep drops the expired staging tables of the namespace of [tableID].
func Sweep(ctx context.Context, logger *slog.Logger, dest destination.Destination, tableID sql.TableIdentifier) error {
	logger.Info("Looking to see if there are any dangling staging tables to delete...", slog.String("database", tableID.Database()))
	query, args := dest.Dialect().BuildListTablesQuery(tableID)
	rows, err := dest.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	var expired []string
	now := time.Now()
	for rows.Next() {
		var tableName string
		if err = rows.Scan(&tableName); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan table name: %w", err)
		}

		if ddl.ShouldDeleteFromName(tableName, now) {
			expired = append(expired, tableName)
		}
	}

	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	for _, tableName := range expired {
		if err = ddl.DropStagingTable(ctx, logger, dest, dest.Dialect(), tableID.WithTable(tableName)); err != nil {
			return err
		}
	}

	return nil
}
