package dialect

import (
	"fmt"

	"github.com/artie-labs/medallion/lib/sql"
)

var _dialect = PostgresDialect{}

// TableIdentifier names a table of a schema. Target databases map to schemas.
type TableIdentifier struct {
	schema string
	table  string
}

func NewTableIdentifier(schema, table string) TableIdentifier {
	return TableIdentifier{schema: schema, table: table}
}

func (ti TableIdentifier) Database() string {
	return ti.schema
}

func (ti TableIdentifier) Schema() string {
	return ti.schema
}

func (ti TableIdentifier) Table() string {
	return ti.table
}

func (ti TableIdentifier) WithTable(table string) sql.TableIdentifier {
	return NewTableIdentifier(ti.schema, table)
}

func (ti TableIdentifier) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s", _dialect.QuoteIdentifier(ti.schema), _dialect.QuoteIdentifier(ti.table))
}
