package dialect

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing"
)

// SQLite caps bound parameters per statement at 32766 since 3.32.
const maxBindParameters = 32766

// timestampFormat has a fixed width so stored timestamps compare in time order.
const timestampFormat = "2006-01-02T15:04:05.000000000Z"

type SQLiteDialect struct{}

func (SQLiteDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(identifier, `"`, `""`))
}

func (SQLiteDialect) QuoteLiteral(value string) string {
	return sql.QuoteStandardLiteral(value)
}

func (SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

func (SQLiteDialect) MaxBindParameters() int {
	return maxBindParameters
}

// DataTypeForKind returns a declared type whose affinity keeps values of [kd] intact.
// Temporal and nested values are stored as text.
func (SQLiteDialect) DataTypeForKind(kd typing.KindDetails) string {
	switch kd {
	case typing.Integer:
		return "INTEGER"
	case typing.Float:
		return "REAL"
	case typing.Boolean:
		return "BOOLEAN"
	case typing.Invalid:
		return ""
	default:
		return "TEXT"
	}
}

// KindForDataType follows the affinity rules of https://www.sqlite.org/datatype3.html.
// Columns without a declared type (computed columns of CREATE TABLE AS) have no kind.
func (SQLiteDialect) KindForDataType(dataType string) typing.KindDetails {
	dataType = strings.ToUpper(strings.TrimSpace(dataType))
	switch {
	case dataType == "":
		return typing.Invalid
	case strings.Contains(dataType, "INT"):
		return typing.Integer
	case strings.Contains(dataType, "BOOL"):
		return typing.Boolean
	case strings.Contains(dataType, "REAL"), strings.Contains(dataType, "FLOA"), strings.Contains(dataType, "DOUB"),
		strings.Contains(dataType, "NUM"), strings.Contains(dataType, "DECIMAL"):
		return typing.Float
	default:
		return typing.String
	}
}

func (SQLiteDialect) ConvertValue(value any) (any, error) {
	switch castedValue := value.(type) {
	case time.Time:
		return castedValue.UTC().Format(timestampFormat), nil
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

func (SQLiteDialect) IsTableDoesNotExistErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// BuildCreateDatabaseQueries attaches the database file at [location].
func (d SQLiteDialect) BuildCreateDatabaseQueries(tableID sql.TableIdentifier, location string) []string {
	return []string{fmt.Sprintf("ATTACH DATABASE %s AS %s", d.QuoteLiteral(location), d.QuoteIdentifier(tableID.Database()))}
}

// BuildCreateTableQueries ignores [args], SQLite has no table comments, locations or partitions.
func (SQLiteDialect) BuildCreateTableQueries(tableID sql.TableIdentifier, colSQLParts []string, _ sql.CreateTableArgs) []string {
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableID.FullyQualifiedName(), strings.Join(colSQLParts, ", "))}
}

func (SQLiteDialect) BuildCreateTableAsQuery(tableID sql.TableIdentifier, query string) string {
	return fmt.Sprintf("CREATE TABLE %s AS %s", tableID.FullyQualifiedName(), query)
}

func (SQLiteDialect) BuildAddColumnQuery(tableID sql.TableIdentifier, colSQLPart string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tableID.FullyQualifiedName(), colSQLPart)
}

func (SQLiteDialect) BuildDropTableQuery(tableID sql.TableIdentifier) string {
	return sql.DefaultBuildDropTableQuery(tableID)
}

func (SQLiteDialect) BuildDescribeTableQuery(tableID sql.TableIdentifier) (string, []any) {
	return "SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid", []any{tableID.Table(), tableID.Database()}
}

func (d SQLiteDialect) BuildListTablesQuery(tableID sql.TableIdentifier) (string, []any) {
	return fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type = 'table'", d.QuoteIdentifier(tableID.Database())), nil
}
