package sql

import (
	"github.com/artie-labs/medallion/lib/typing"
)

type TableIdentifier interface {
	Database() string
	Table() string
	WithTable(table string) TableIdentifier
	FullyQualifiedName() string
}

type CreateTableArgs struct {
	Comment     string
	Location    string
	PartitionBy []string
}

type Dialect interface {
	QuoteIdentifier(identifier string) string
	QuoteLiteral(value string) string
	// Placeholder returns the bind parameter marker for the zero-based argument [index].
	Placeholder(index int) string
	// MaxBindParameters bounds the number of arguments of a single statement.
	MaxBindParameters() int
	DataTypeForKind(kd typing.KindDetails) string
	KindForDataType(dataType string) typing.KindDetails
	// ConvertValue turns a value produced by [typing.Cast] into one the driver can bind.
	ConvertValue(value any) (any, error)
	IsTableDoesNotExistErr(err error) bool

	// BuildCreateDatabaseQueries creates the namespace of [tableID] at [location] when it does not exist yet.
	BuildCreateDatabaseQueries(tableID TableIdentifier, location string) []string
	BuildCreateTableQueries(tableID TableIdentifier, colSQLParts []string, args CreateTableArgs) []string
	BuildCreateTableAsQuery(tableID TableIdentifier, query string) string
	BuildAddColumnQuery(tableID TableIdentifier, colSQLPart string) string
	BuildDropTableQuery(tableID TableIdentifier) string
	// BuildDescribeTableQuery returns a query whose rows start with the column name and its data type.
	// A table that does not exist yields no rows or an error matched by [Dialect.IsTableDoesNotExistErr].
	BuildDescribeTableQuery(tableID TableIdentifier) (string, []any)
	// BuildListTablesQuery returns a single column query listing the table names of the namespace of [tableID].
	BuildListTablesQuery(tableID TableIdentifier) (string, []any)
}
