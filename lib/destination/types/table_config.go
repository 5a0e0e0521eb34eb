package types

import (
	"sync"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// TableConfig is the last known schema of a target table.
type TableConfig struct {
	columns *columns.Columns
	sync.RWMutex
}

func NewTableConfig(cols *columns.Columns) *TableConfig {
	return &TableConfig{columns: cols}
}

func (t *TableConfig) Columns() *columns.Columns {
	if t == nil {
		return nil
	}

	t.RLock()
	defer t.RUnlock()
	return columns.NewColumns(t.columns.GetColumns()...)
}

// MissingColumns returns the columns of [cols] the table does not have yet.
func (t *TableConfig) MissingColumns(cols *columns.Columns) []columns.Column {
	t.RLock()
	defer t.RUnlock()

	var missing []columns.Column
	for _, col := range cols.GetColumns() {
		if _, ok := t.columns.GetColumn(col.Name()); !ok {
			missing = append(missing, col)
		}
	}

	return missing
}

func (t *TableConfig) AddColumns(cols ...columns.Column) {
	t.Lock()
	defer t.Unlock()

	for _, col := range cols {
		t.columns.AddColumn(col)
	}
}

// TableConfigMap caches [TableConfig] per fully qualified table name.
type TableConfigMap struct {
	fqNameToConfig map[string]*TableConfig
	sync.RWMutex
}

func (t *TableConfigMap) Get(tableID sql.TableIdentifier) *TableConfig {
	t.RLock()
	defer t.RUnlock()

	return t.fqNameToConfig[tableID.FullyQualifiedName()]
}

func (t *TableConfigMap) Add(tableID sql.TableIdentifier, config *TableConfig) {
	t.Lock()
	defer t.Unlock()

	if t.fqNameToConfig == nil {
		t.fqNameToConfig = make(map[string]*TableConfig)
	}

	t.fqNameToConfig[tableID.FullyQualifiedName()] = config
}

// Remove forgets a table, the next merge describes it again.
func (t *TableConfigMap) Remove(tableID sql.TableIdentifier) {
	t.Lock()
	defer t.Unlock()

	delete(t.fqNameToConfig, tableID.FullyQualifiedName())
}
