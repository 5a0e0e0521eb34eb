package columns

import (
	"slices"
	"strings"

	"github.com/artie-labs/medallion/lib/typing"
)

type Column struct {
	name        string
	KindDetails typing.KindDetails
	// DataType is the engine type as reported by the destination, empty for columns that came from a source schema.
	DataType string
}

func NewColumn(name string, kd typing.KindDetails) Column {
	return Column{
		name:        name,
		KindDetails: kd,
	}
}

func NewColumnWithDataType(name string, kd typing.KindDetails, dataType string) Column {
	return Column{
		name:        name,
		KindDetails: kd,
		DataType:    dataType,
	}
}

func (c Column) Name() string {
	return c.name
}

// Columns is an ordered set of columns. Names are matched case-insensitively.
type Columns struct {
	columns []Column
}

func NewColumns(columns ...Column) *Columns {
	c := &Columns{}
	for _, column := range columns {
		c.AddColumn(column)
	}

	return c
}

// EqualNames compares column names the way engines resolve unquoted identifiers.
func EqualNames(a, b string) bool {
	return strings.EqualFold(a, b)
}

func (c *Columns) index(name string) int {
	return slices.IndexFunc(c.columns, func(col Column) bool {
		return EqualNames(col.name, name)
	})
}

// AddColumn appends [col], replacing an existing column with the same name in place.
func (c *Columns) AddColumn(col Column) {
	if idx := c.index(col.name); idx >= 0 {
		c.columns[idx] = col
		return
	}

	c.columns = append(c.columns, col)
}

func (c *Columns) GetColumn(name string) (Column, bool) {
	if c == nil {
		return Column{}, false
	}

	if idx := c.index(name); idx >= 0 {
		return c.columns[idx], true
	}

	return Column{}, false
}

func (c *Columns) DeleteColumn(name string) bool {
	if idx := c.index(name); idx >= 0 {
		c.columns = slices.Delete(c.columns, idx, idx+1)
		return true
	}

	return false
}

func (c *Columns) GetColumns() []Column {
	if c == nil {
		return nil
	}

	return slices.Clone(c.columns)
}

func (c *Columns) Names() []string {
	if c == nil {
		return nil
	}

	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.name
	}

	return names
}

func (c *Columns) Len() int {
	if c == nil {
		return 0
	}

	return len(c.columns)
}

// Missing returns the columns of [c] that [other] does not have, in order.
func (c *Columns) Missing(other *Columns) []Column {
	var missing []Column
	for _, col := range c.GetColumns() {
		if _, isOk := other.GetColumn(col.name); !isOk {
			missing = append(missing, col)
		}
	}

	return missing
}
