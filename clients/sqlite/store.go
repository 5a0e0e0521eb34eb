package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/artie-labs/medallion/clients/shared"
	"github.com/artie-labs/medallion/clients/sqlite/dialect"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/db"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/storage"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

const (
	mainDatabase = "main"
	memoryPath   = ":memory:"
)

// Store hosts every target database as a database file attached to one connection.
type Store struct {
	db.Store
	logger  *slog.Logger
	config  config.SQLite
	catalog *shared.PathCatalog
}

func LoadStore(ctx context.Context, logger *slog.Logger, cfg config.SQLite) (*Store, error) {
	// Attached databases belong to a connection, so every statement has to go through the same one.
	store, err := db.Open(ctx, logger, "sqlite", cfg.DSN(), db.Options{MaxOpenConns: 1})
	if err != nil {
		return nil, err
	}

	return newStore(ctx, logger, store, cfg)
}

func newStore(ctx context.Context, logger *slog.Logger, store db.Store, cfg config.SQLite) (*Store, error) {
	s := &Store{Store: store, logger: logger, config: cfg}
	s.catalog = shared.NewPathCatalog(logger, store, s.Dialect(), mainDatabase, s.IdentifierFor)
	if err := s.catalog.Ensure(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Kind() constants.DestinationKind {
	return constants.SQLite
}

func (s *Store) Dialect() sql.Dialect {
	return dialect.SQLiteDialect{}
}

func (s *Store) IdentifierFor(database, table string) sql.TableIdentifier {
	return dialect.NewTableIdentifier(database, table)
}

func (s *Store) isAttached(ctx context.Context, database string) (bool, error) {
	rows, err := s.QueryContext(ctx, "SELECT name FROM pragma_database_list WHERE name = ?", database)
	if err != nil {
		return false, fmt.Errorf("failed to list databases: %w", err)
	}

	objects, err := sql.RowsToObjects(rows)
	if err != nil {
		return false, fmt.Errorf("failed to list databases: %w", err)
	}

	return len(objects) > 0, nil
}

// databaseFile returns the file backing [database], stored under [location].
func (s *Store) databaseFile(database, location string) (string, error) {
	if s.config.Path == memoryPath {
		return memoryPath, nil
	}

	if location == "" {
		dir, err := filepath.Abs(filepath.Dir(s.config.Path))
		if err != nil {
			return "", err
		}
		location = dir
	}

	parsed, err := storage.ParseLocation(location)
	if err != nil {
		return "", err
	}

	if parsed.IsS3() {
		return "", fmt.Errorf("sqlite databases must be stored on the local filesystem, got %q", location)
	}

	if err = os.MkdirAll(parsed.Path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %q: %w", parsed.Path, err)
	}

	return filepath.Join(parsed.Path, database+".db"), nil
}

// EnsureDatabase attaches the database file of [tableID] unless it is already attached.
func (s *Store) EnsureDatabase(ctx context.Context, tableID sql.TableIdentifier, location string) error {
	database := tableID.Database()
	if strings.EqualFold(database, mainDatabase) {
		return nil
	}

	attached, err := s.isAttached(ctx, database)
	if err != nil || attached {
		return err
	}

	file, err := s.databaseFile(database, location)
	if err != nil {
		return err
	}

	for _, query := range s.Dialect().BuildCreateDatabaseQueries(tableID, file) {
		s.logger.Info("[DDL] Executing query", slog.String("query", query))
		if _, err = s.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to attach database %q: %w", database, err)
		}
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
