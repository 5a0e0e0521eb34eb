package sql

import (
	"fmt"
	"strings"

	"github.com/artie-labs/medallion/lib/config/constants"
)

// QuoteLiteral wraps [value] in single quotes, escaping backslashes and quotes with a backslash.
func QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", `\'`))
}

// QuoteStandardLiteral wraps [value] in single quotes, doubling embedded quotes as ANSI SQL does.
func QuoteStandardLiteral(value string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", "''"))
}

func QuoteColumns(names []string, dialect Dialect) []string {
	result := make([]string, len(names))
	for i, name := range names {
		result[i] = dialect.QuoteIdentifier(name)
	}
	return result
}

func QuoteTableAliasColumn(tableAlias constants.TableAlias, name string, dialect Dialect) string {
	return fmt.Sprintf("%s.%s", tableAlias, dialect.QuoteIdentifier(name))
}

func QuoteTableAliasColumns(tableAlias constants.TableAlias, names []string, dialect Dialect) []string {
	result := make([]string, len(names))
	for i, name := range names {
		result[i] = QuoteTableAliasColumn(tableAlias, name, dialect)
	}
	return result
}

type Operator string

const (
	Equal              Operator = "="
	GreaterThanOrEqual Operator = ">="
)

// BuildColumnComparisons returns `left.col <op> right.col` for every column.
func BuildColumnComparisons(names []string, left, right constants.TableAlias, operator Operator, dialect Dialect) []string {
	result := make([]string, len(names))
	for i, name := range names {
		result[i] = fmt.Sprintf("%s %s %s", QuoteTableAliasColumn(left, name, dialect), operator, QuoteTableAliasColumn(right, name, dialect))
	}
	return result
}

// BuildColumnsUpdateFragment returns `col = source.col` pairs for the SET clause of an UPDATE or MERGE.
func BuildColumnsUpdateFragment(names []string, sourceAlias constants.TableAlias, targetAlias constants.TableAlias, qualifyTarget bool, dialect Dialect) string {
	parts := make([]string, len(names))
	for i, name := range names {
		left := dialect.QuoteIdentifier(name)
		if qualifyTarget {
			left = QuoteTableAliasColumn(targetAlias, name, dialect)
		}
		parts[i] = fmt.Sprintf("%s = %s", left, QuoteTableAliasColumn(sourceAlias, name, dialect))
	}
	return strings.Join(parts, ", ")
}

// Placeholders returns [count] comma separated placeholders starting at [offset].
func Placeholders(dialect Dialect, offset, count int) string {
	parts := make([]string, count)
	for i := range count {
		parts[i] = dialect.Placeholder(offset + i)
	}
	return strings.Join(parts, ", ")
}

func DefaultBuildDropTableQuery(tableID TableIdentifier) string {
	return "DROP TABLE IF EXISTS " + tableID.FullyQualifiedName()
}

// BuildColumnDefinition returns `"name" TYPE`, or only the quoted name when the engine does not need a type.
func BuildColumnDefinition(dialect Dialect, name, dataType string) string {
	if dataType == "" {
		return dialect.QuoteIdentifier(name)
	}
	return fmt.Sprintf("%s %s", dialect.QuoteIdentifier(name), dataType)
}
