package dialect

import (
	"fmt"

	"github.com/artie-labs/medallion/lib/sql"
)

var _dialect = DatabricksDialect{}

type TableIdentifier struct {
	catalog  string
	database string
	table    string
}

// NewTableIdentifier returns an identifier for [database].[table], qualified by [catalog] when it is set.
func NewTableIdentifier(catalog, database, table string) TableIdentifier {
	return TableIdentifier{catalog: catalog, database: database, table: table}
}

func (ti TableIdentifier) Catalog() string {
	return ti.catalog
}

func (ti TableIdentifier) Database() string {
	return ti.database
}

func (ti TableIdentifier) Table() string {
	return ti.table
}

func (ti TableIdentifier) WithTable(table string) sql.TableIdentifier {
	return NewTableIdentifier(ti.catalog, ti.database, table)
}

// DatabaseName is the possibly catalog qualified, escaped database name.
func (ti TableIdentifier) DatabaseName() string {
	if ti.catalog == "" {
		return _dialect.QuoteIdentifier(ti.database)
	}
	return fmt.Sprintf("%s.%s", _dialect.QuoteIdentifier(ti.catalog), _dialect.QuoteIdentifier(ti.database))
}

func (ti TableIdentifier) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s", ti.DatabaseName(), _dialect.QuoteIdentifier(ti.table))
}
