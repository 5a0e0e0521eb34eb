package databricks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	_ "github.com/databricks/databricks-sql-go"

	"github.com/artie-labs/medallion/clients/databricks/dialect"
	"github.com/artie-labs/medallion/clients/shared"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/db"
	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// Store writes Delta tables through a Databricks SQL warehouse. Tables are created at their storage path,
// so the warehouse itself resolves paths to tables.
type Store struct {
	db.Store
	logger *slog.Logger
	cfg    config.Databricks
}

func LoadStore(ctx context.Context, logger *slog.Logger, cfg config.Databricks) (*Store, error) {
	store, err := db.Open(ctx, logger, "databricks", cfg.DSN(), db.Options{})
	if err != nil {
		return nil, err
	}

	return &Store{Store: store, logger: logger, cfg: cfg}, nil
}

func (s *Store) Kind() constants.DestinationKind {
	return constants.Databricks
}

func (s *Store) Dialect() sql.Dialect {
	return dialect.DatabricksDialect{}
}

func (s *Store) IdentifierFor(database, table string) sql.TableIdentifier {
	return dialect.NewTableIdentifier(s.cfg.Catalog, database, table)
}

func (s *Store) EnsureDatabase(ctx context.Context, tableID sql.TableIdentifier, location string) error {
	queries := s.Dialect().BuildCreateDatabaseQueries(tableID, location)
	for _, query := range queries {
		s.logger.Info("[DDL] Executing query", slog.String("query", query))
	}

	if _, err := destination.ExecContextStatements(ctx, s.logger, s, queries); err != nil {
		return fmt.Errorf("failed to create database %q: %w", tableID.Database(), err)
	}

	return nil
}

// RegisterTable is a no-op, tables are created with their storage path as LOCATION.
func (s *Store) RegisterTable(_ context.Context, _ sql.TableIdentifier, _ string) error {
	return nil
}

func (s *Store) RelationForPath(_ context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	return fmt.Sprintf("SELECT * FROM delta.%s", s.Dialect().QuoteIdentifier(path)), nil
}

func (s *Store) DescribeRelation(ctx context.Context, relation string) (*columns.Columns, error) {
	return shared.DescribeRelation(ctx, s, s.Dialect(), relation)
}

func toInt64(value any) (int64, error) {
	switch castedValue := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return castedValue, nil
	case int32:
		return int64(castedValue), nil
	case int:
		return int64(castedValue), nil
	case string:
		return strconv.ParseInt(castedValue, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", value)
	}
}

// Merge runs a single MERGE statement. Its result row carries the affected row counts, soft deletes are
// reported as updates since both are UPDATE clauses.
func (s *Store) Merge(ctx context.Context, arg dml.MergeArgument) (types.MergeOutcome, error) {
	statement, err := arg.GetStatement()
	if err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to generate merge statement: %w", err)
	}

	s.logger.Debug("Executing...", slog.String("query", statement))
	rows, err := s.QueryContext(ctx, statement)
	if err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to execute merge statement: %w", err)
	}

	objects, err := sql.RowsToObjects(rows)
	if err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to read merge result: %w", err)
	}

	var outcome types.MergeOutcome
	if len(objects) == 0 {
		return outcome, nil
	}

	for key, target := range map[string]*int64{
		"num_updated_rows":  &outcome.Updated,
		"num_deleted_rows":  &outcome.Deleted,
		"num_inserted_rows": &outcome.Inserted,
	} {
		if *target, err = toInt64(objects[0][key]); err != nil {
			return types.MergeOutcome{}, fmt.Errorf("failed to parse %q: %w", key, err)
		}
	}

	return outcome, nil
}
