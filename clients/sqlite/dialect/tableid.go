package dialect

import (
	"fmt"

	"github.com/artie-labs/medallion/lib/sql"
)

var _dialect = SQLiteDialect{}

// TableIdentifier names a table of an attached database. The main database file is named `main`.
type TableIdentifier struct {
	database string
	table    string
}

func NewTableIdentifier(database, table string) TableIdentifier {
	return TableIdentifier{database: database, table: table}
}

func (ti TableIdentifier) Database() string {
	return ti.database
}

func (ti TableIdentifier) Table() string {
	return ti.table
}

func (ti TableIdentifier) WithTable(table string) sql.TableIdentifier {
	return NewTableIdentifier(ti.database, table)
}

func (ti TableIdentifier) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s", _dialect.QuoteIdentifier(ti.database), _dialect.QuoteIdentifier(ti.table))
}
