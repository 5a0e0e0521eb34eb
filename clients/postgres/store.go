package postgres

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/artie-labs/medallion/clients/postgres/dialect"
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

const catalogSchema = "public"

// Store maps target databases to schemas of one Postgres database.
type Store struct {
	db.Store
	logger  *slog.Logger
	catalog *shared.PathCatalog
}

func LoadStore(ctx context.Context, logger *slog.Logger, cfg config.Postgres) (*Store, error) {
	store, err := db.Open(ctx, logger, "pgx", cfg.DSN(), db.Options{})
	if err != nil {
		return nil, err
	}

	return newStore(ctx, logger, store)
}

func newStore(ctx context.Context, logger *slog.Logger, store db.Store) (*Store, error) {
	s := &Store{Store: store, logger: logger}
	s.catalog = shared.NewPathCatalog(logger, store, s.Dialect(), catalogSchema, s.IdentifierFor)
	if err := s.catalog.Ensure(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Kind() constants.DestinationKind {
	return constants.Postgres
}

func (s *Store) Dialect() sql.Dialect {
	return dialect.PostgresDialect{}
}

func (s *Store) IdentifierFor(database, table string) sql.TableIdentifier {
	return dialect.NewTableIdentifier(database, table)
}

// EnsureDatabase creates the schema of [tableID], Postgres manages storage itself so [location] is only logged.
func (s *Store) EnsureDatabase(ctx context.Context, tableID sql.TableIdentifier, location string) error {
	queries := s.Dialect().BuildCreateDatabaseQueries(tableID, location)
	for _, query := range queries {
		s.logger.Info("[DDL] Executing query", slog.String("query", query), slog.String("location", location))
	}

	if _, err := destination.ExecContextStatements(ctx, s.logger, s, queries); err != nil {
		return fmt.Errorf("failed to create schema %q: %w", tableID.Database(), err)
	}

	return nil
}

func (s *Store) RegisterTable(ctx context.Context, tableID sql.TableIdentifier, path string) error {
	return s.catalog.RegisterTable(ctx, tableID, path)
}

func (s *Store) RelationForPath(ctx context.Context, path string) (string, error) {
	return s.catalog.RelationForPath(ctx, path)
}

func (s *Store) DescribeRelation(ctx context.Context, relation string) (*columns.Columns, error) {
	return shared.DescribeRelation(ctx, s, s.Dialect(), relation)
}

func (s *Store) Merge(ctx context.Context, arg dml.MergeArgument) (types.MergeOutcome, error) {
	return shared.ExecuteStatementMerge(ctx, s.logger, s, arg)
}
