package shared

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// PathCatalog maps storage paths to tables for engines that do not address tables by path.
type PathCatalog struct {
	logger        *slog.Logger
	executor      destination.SQLExecutor
	dialect       sql.Dialect
	tableID       sql.TableIdentifier
	identifierFor func(database, table string) sql.TableIdentifier
}

// NewPathCatalog returns a catalog stored in [catalogDatabase], call [PathCatalog.Ensure] before using it.
func NewPathCatalog(logger *slog.Logger, executor destination.SQLExecutor, dialect sql.Dialect, catalogDatabase string, identifierFor func(database, table string) sql.TableIdentifier) *PathCatalog {
	return &PathCatalog{
		logger:        logger,
		executor:      executor,
		dialect:       dialect,
		tableID:       identifierFor(catalogDatabase, constants.CatalogTable),
		identifierFor: identifierFor,
	}
}

func normalizePath(path string) string {
	return strings.TrimRight(strings.TrimSpace(path), "/")
}

func (p *PathCatalog) Ensure(ctx context.Context) error {
	colSQLParts := []string{
		p.dialect.QuoteIdentifier("path") + " TEXT PRIMARY KEY",
		p.dialect.QuoteIdentifier("database_name") + " TEXT NOT NULL",
		p.dialect.QuoteIdentifier("table_name") + " TEXT NOT NULL",
		p.dialect.QuoteIdentifier("registered_at") + " TEXT NOT NULL",
	}

	if _, err := destination.ExecContextStatements(ctx, p.logger, p.executor, p.dialect.BuildCreateTableQueries(p.tableID, colSQLParts, sql.CreateTableArgs{})); err != nil {
		return fmt.Errorf("failed to create catalog table: %w", err)
	}

	return nil
}

func (p *PathCatalog) RegisterTable(ctx context.Context, tableID sql.TableIdentifier, path string) error {
	if path == "" {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s, %s = excluded.%s`,
		p.tableID.FullyQualifiedName(),
		strings.Join(sql.QuoteColumns([]string{"path", "database_name", "table_name", "registered_at"}, p.dialect), ","),
		sql.Placeholders(p.dialect, 0, 4),
		p.dialect.QuoteIdentifier("path"),
		p.dialect.QuoteIdentifier("database_name"), p.dialect.QuoteIdentifier("database_name"),
		p.dialect.QuoteIdentifier("table_name"), p.dialect.QuoteIdentifier("table_name"),
	)

	if _, err := p.executor.ExecContext(ctx, query, normalizePath(path), tableID.Database(), tableID.Table(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to register table %q at %q: %w", tableID.FullyQualifiedName(), path, err)
	}

	return nil
}

func (p *PathCatalog) RelationForPath(ctx context.Context, path string) (string, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = %s`,
		p.dialect.QuoteIdentifier("database_name"), p.dialect.QuoteIdentifier("table_name"),
		p.tableID.FullyQualifiedName(), p.dialect.QuoteIdentifier("path"), p.dialect.Placeholder(0),
	)

	rows, err := p.executor.QueryContext(ctx, query, normalizePath(path))
	if err != nil {
		return "", fmt.Errorf("failed to look up path %q: %w", path, err)
	}

	objects, err := sql.RowsToObjects(rows)
	if err != nil {
		return "", fmt.Errorf("failed to look up path %q: %w", path, err)
	}

	if len(objects) == 0 {
		return "", fmt.Errorf("no table is registered at path %q", path)
	}

	tableID := p.identifierFor(fmt.Sprint(objects[0]["database_name"]), fmt.Sprint(objects[0]["table_name"]))
	return "SELECT * FROM " + tableID.FullyQualifiedName(), nil
}

// DescribeRelation runs [relation] without producing rows and maps the reported column types.
func DescribeRelation(ctx context.Context, executor destination.SQLExecutor, dialect sql.Dialect, relation string) (*columns.Columns, error) {
	rows, err := executor.QueryContext(ctx, fmt.Sprintf("SELECT * FROM (%s) AS probe_ WHERE 1 = 0", relation))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	cols := columns.NewColumns()
	for _, colType := range colTypes {
		cols.AddColumn(columns.NewColumn(colType.Name(), dialect.KindForDataType(colType.DatabaseTypeName())))
	}

	return cols, rows.Err()
}
