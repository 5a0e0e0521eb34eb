package dialect

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing"
)

// Databricks SQL warehouses accept at most 256 parameter markers per statement.
const maxBindParameters = 256

type DatabricksDialect struct{}

func (DatabricksDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(identifier, "`", "``"))
}

func (DatabricksDialect) QuoteLiteral(value string) string {
	return sql.QuoteLiteral(value)
}

func (DatabricksDialect) Placeholder(_ int) string {
	return "?"
}

func (DatabricksDialect) MaxBindParameters() int {
	return maxBindParameters
}

func (DatabricksDialect) DataTypeForKind(kd typing.KindDetails) string {
	switch kd {
	case typing.Integer:
		return "BIGINT"
	case typing.Float:
		return "DOUBLE"
	case typing.Boolean:
		return "BOOLEAN"
	case typing.Timestamp:
		return "TIMESTAMP"
	case typing.Date:
		return "DATE"
	default:
		// Nested values are kept as JSON strings.
		return "STRING"
	}
}

func (DatabricksDialect) KindForDataType(dataType string) typing.KindDetails {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case strings.HasPrefix(dataType, "array"):
		return typing.Array
	case strings.HasPrefix(dataType, "struct"), strings.HasPrefix(dataType, "map"):
		return typing.Struct
	case strings.HasPrefix(dataType, "decimal"):
		return typing.Float
	}

	switch dataType {
	case "bigint", "int", "integer", "smallint", "tinyint", "long", "short", "byte":
		return typing.Integer
	case "double", "float", "real":
		return typing.Float
	case "boolean":
		return typing.Boolean
	case "timestamp", "timestamp_ntz":
		return typing.Timestamp
	case "date":
		return typing.Date
	default:
		return typing.String
	}
}

func (DatabricksDialect) ConvertValue(value any) (any, error) {
	switch castedValue := value.(type) {
	case time.Time:
		return castedValue.UTC(), nil
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

func (DatabricksDialect) IsTableDoesNotExistErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "[TABLE_OR_VIEW_NOT_FOUND]")
}

func (d DatabricksDialect) BuildCreateDatabaseQueries(tableID sql.TableIdentifier, location string) []string {
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", databaseName(tableID))
	if location != "" {
		query = fmt.Sprintf("%s LOCATION %s", query, d.QuoteLiteral(location))
	}
	return []string{query}
}

func (d DatabricksDialect) BuildCreateTableQueries(tableID sql.TableIdentifier, colSQLParts []string, args sql.CreateTableArgs) []string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (%s) USING DELTA", tableID.FullyQualifiedName(), strings.Join(colSQLParts, ", "))
	if len(args.PartitionBy) > 0 {
		fmt.Fprintf(&sb, " PARTITIONED BY (%s)", strings.Join(sql.QuoteColumns(args.PartitionBy, d), ", "))
	}
	if args.Comment != "" {
		fmt.Fprintf(&sb, " COMMENT %s", d.QuoteLiteral(args.Comment))
	}
	if args.Location != "" {
		fmt.Fprintf(&sb, " LOCATION %s", d.QuoteLiteral(args.Location))
	}
	return []string{sb.String()}
}

func (DatabricksDialect) BuildCreateTableAsQuery(tableID sql.TableIdentifier, query string) string {
	return fmt.Sprintf("CREATE TABLE %s USING DELTA AS %s", tableID.FullyQualifiedName(), query)
}

func (DatabricksDialect) BuildAddColumnQuery(tableID sql.TableIdentifier, colSQLPart string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tableID.FullyQualifiedName(), colSQLPart)
}

func (DatabricksDialect) BuildDropTableQuery(tableID sql.TableIdentifier) string {
	return sql.DefaultBuildDropTableQuery(tableID)
}

// BuildDescribeTableQuery returns `DESCRIBE TABLE`, whose column rows end at the first blank or `#` prefixed row.
func (DatabricksDialect) BuildDescribeTableQuery(tableID sql.TableIdentifier) (string, []any) {
	return "DESCRIBE TABLE " + tableID.FullyQualifiedName(), nil
}

func (d DatabricksDialect) BuildListTablesQuery(tableID sql.TableIdentifier) (string, []any) {
	informationSchema := "information_schema.tables"
	if castedTableID, ok := tableID.(TableIdentifier); ok && castedTableID.Catalog() != "" {
		informationSchema = fmt.Sprintf("%s.%s", d.QuoteIdentifier(castedTableID.Catalog()), informationSchema)
	}
	return fmt.Sprintf("SELECT table_name FROM %s WHERE table_schema = ?", informationSchema), []any{tableID.Database()}
}

func databaseName(tableID sql.TableIdentifier) string {
	if castedTableID, ok := tableID.(TableIdentifier); ok {
		return castedTableID.DatabaseName()
	}
	return _dialect.QuoteIdentifier(tableID.Database())
}
