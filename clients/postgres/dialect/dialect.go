package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing"
)

const describeTableQuery = `
SELECT
    a.attname AS column_name,
    pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class cl ON cl.oid = a.attrelid
JOIN pg_catalog.pg_namespace pn ON pn.oid = cl.relnamespace
WHERE pn.nspname = $1 AND cl.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

const listTablesQuery = `SELECT table_name FROM information_schema.tables WHERE table_schema = $1`

type PostgresDialect struct{}

func (PostgresDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(identifier, `"`, `""`))
}

func (PostgresDialect) QuoteLiteral(value string) string {
	return sql.QuoteStandardLiteral(value)
}

func (PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (PostgresDialect) MaxBindParameters() int {
	return 65535
}

func (PostgresDialect) DataTypeForKind(kd typing.KindDetails) string {
	switch kd {
	case typing.Integer:
		return "bigint"
	case typing.Float:
		return "double precision"
	case typing.Boolean:
		return "boolean"
	case typing.Timestamp:
		return "timestamp with time zone"
	case typing.Date:
		return "date"
	case typing.Struct, typing.Array:
		return "jsonb"
	default:
		return "text"
	}
}

func (PostgresDialect) KindForDataType(dataType string) typing.KindDetails {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	if strings.HasSuffix(dataType, "[]") || strings.HasPrefix(dataType, "_") {
		return typing.Array
	}

	if idx := strings.Index(dataType, "("); idx > 0 {
		dataType = dataType[:idx]
	}

	switch dataType {
	case "bigint", "integer", "smallint", "int8", "int4", "int2":
		return typing.Integer
	case "double precision", "real", "numeric", "float8", "float4":
		return typing.Float
	case "boolean", "bool":
		return typing.Boolean
	case "timestamp with time zone", "timestamp without time zone", "timestamptz", "timestamp":
		return typing.Timestamp
	case "date":
		return typing.Date
	case "json", "jsonb":
		return typing.Struct
	default:
		return typing.String
	}
}

func (PostgresDialect) ConvertValue(value any) (any, error) {
	switch castedValue := value.(type) {
	case map[string]any, []any:
		bytes, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(castedValue)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T: %w", value, err)
		}
		return string(bytes), nil
	default:
		return value, nil
	}
}

func (PostgresDialect) IsTableDoesNotExistErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// https://www.postgresql.org/docs/current/errcodes-appendix.html#:~:text=undefined_function-,42P01,-undefined_table
		return pgErr.Code == "42P01"
	}

	return false
}

// BuildCreateDatabaseQueries creates a schema, Postgres manages its own storage so [location] is not used.
func (d PostgresDialect) BuildCreateDatabaseQueries(tableID sql.TableIdentifier, _ string) []string {
	return []string{fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", d.QuoteIdentifier(tableID.Database()))}
}

func (d PostgresDialect) BuildCreateTableQueries(tableID sql.TableIdentifier, colSQLParts []string, args sql.CreateTableArgs) []string {
	queries := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableID.FullyQualifiedName(), strings.Join(colSQLParts, ", "))}
	if args.Comment != "" {
		queries = append(queries, fmt.Sprintf("COMMENT ON TABLE %s IS %s", tableID.FullyQualifiedName(), d.QuoteLiteral(args.Comment)))
	}
	return queries
}

func (PostgresDialect) BuildCreateTableAsQuery(tableID sql.TableIdentifier, query string) string {
	return fmt.Sprintf("CREATE TABLE %s AS %s", tableID.FullyQualifiedName(), query)
}

func (PostgresDialect) BuildAddColumnQuery(tableID sql.TableIdentifier, colSQLPart string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", tableID.FullyQualifiedName(), colSQLPart)
}

func (PostgresDialect) BuildDropTableQuery(tableID sql.TableIdentifier) string {
	return sql.DefaultBuildDropTableQuery(tableID)
}

func (PostgresDialect) BuildDescribeTableQuery(tableID sql.TableIdentifier) (string, []any) {
	return describeTableQuery, []any{tableID.Database(), tableID.Table()}
}

func (PostgresDialect) BuildListTablesQuery(tableID sql.TableIdentifier) (string, []any) {
	return listTablesQuery, []any{tableID.Database()}
}
