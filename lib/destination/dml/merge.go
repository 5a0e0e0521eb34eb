package dml

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

type MergeArgument struct {
	TableID sql.TableIdentifier
	// SubQuery is the staging table holding at most one row per primary key.
	SubQuery    string
	PrimaryKeys []string
	SequenceBy  []string
	// Columns are written to the target, they must exist in both the target and the staging table.
	Columns []string
	// SoftDelete is set when the staging table carries [constants.DeleteColumnMarker].
	SoftDelete bool

	DestKind constants.DestinationKind
	Dialect  sql.Dialect
}

func containsName(names []string, name string) bool {
	return slices.ContainsFunc(names, func(n string) bool { return columns.EqualNames(n, name) })
}

func (m *MergeArgument) Valid() error {
	if m == nil {
		return fmt.Errorf("merge argument is nil")
	}

	if m.TableID == nil {
		return fmt.Errorf("tableID cannot be nil")
	}

	if m.SubQuery == "" {
		return fmt.Errorf("subQuery cannot be empty")
	}

	if len(m.Columns) == 0 {
		return fmt.Errorf("columns cannot be empty")
	}

	for _, name := range append(slices.Clone(m.PrimaryKeys), m.SequenceBy...) {
		if !containsName(m.Columns, name) {
			return fmt.Errorf("column %q does not exist", name)
		}
	}

	if m.SoftDelete && !containsName(m.Columns, constants.DeleteColumnMarker) {
		return fmt.Errorf("soft delete requires the %q column", constants.DeleteColumnMarker)
	}

	if !constants.IsValidDestination(m.DestKind) {
		return fmt.Errorf("invalid destination: %s", m.DestKind)
	}

	if m.Dialect == nil {
		return fmt.Errorf("dialect cannot be nil")
	}

	return nil
}

// MatchCondition joins target and staging rows on the primary keys. Without primary keys nothing matches.
func (m *MergeArgument) MatchCondition() string {
	if len(m.PrimaryKeys) == 0 {
		return "1 = 0"
	}

	return strings.Join(sql.BuildColumnComparisons(m.PrimaryKeys, constants.TargetAlias, constants.SourceAlias, sql.Equal, m.Dialect), " AND ")
}

// SequenceCondition only lets staging rows that are at least as new as the target row through, it is empty
// when there are no sequence columns.
func (m *MergeArgument) SequenceCondition() string {
	return strings.Join(sql.BuildColumnComparisons(m.SequenceBy, constants.SourceAlias, constants.TargetAlias, sql.GreaterThanOrEqual, m.Dialect), " AND ")
}

func (m *MergeArgument) matchedCondition() string {
	if gate := m.SequenceCondition(); gate != "" {
		return fmt.Sprintf("%s AND %s", m.MatchCondition(), gate)
	}
	return m.MatchCondition()
}

func (m *MergeArgument) quotedDeleteMarker() string {
	return sql.QuoteTableAliasColumn(constants.SourceAlias, constants.DeleteColumnMarker, m.Dialect)
}

// softDeleteColumns are written by the soft delete branch, the other columns of a flagged row keep their values.
func (m *MergeArgument) softDeleteColumns() []string {
	cols := []string{constants.DeleteColumnMarker}
	if containsName(m.Columns, constants.CommitColumn) {
		cols = append(cols, constants.CommitColumn)
	}
	return cols
}

type MergeStatementKind string

const (
	SoftDeleteStatement MergeStatementKind = "soft_delete"
	UpdateStatement     MergeStatementKind = "update"
	InsertStatement     MergeStatementKind = "insert"
)

type MergeStatement struct {
	Kind  MergeStatementKind
	Query string
}

// BuildStatements returns the merge as an ordered list of statements that must run in one transaction.
// Soft deletes run first so rows they flag are skipped by the update.
func (m *MergeArgument) BuildStatements() ([]MergeStatement, error) {
	if err := m.Valid(); err != nil {
		return nil, err
	}

	target := m.TableID.FullyQualifiedName()
	insert := fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s AS %s`,
		// INSERT INTO target (col1, col2)
		target, strings.Join(sql.QuoteColumns(m.Columns, m.Dialect), ","),
		// SELECT source_.col1, source_.col2 FROM staging AS source_
		strings.Join(sql.QuoteTableAliasColumns(constants.SourceAlias, m.Columns, m.Dialect), ","), m.SubQuery, constants.SourceAlias,
	)

	if len(m.PrimaryKeys) == 0 {
		return []MergeStatement{{Kind: InsertStatement, Query: insert}}, nil
	}

	var statements []MergeStatement
	updateCondition := m.matchedCondition()
	if m.SoftDelete {
		statements = append(statements, MergeStatement{
			Kind: SoftDeleteStatement,
			Query: fmt.Sprintf(`UPDATE %s AS %s SET %s FROM %s AS %s WHERE %s AND %s = true`,
				target, constants.TargetAlias,
				sql.BuildColumnsUpdateFragment(m.softDeleteColumns(), constants.SourceAlias, constants.TargetAlias, false, m.Dialect),
				m.SubQuery, constants.SourceAlias, updateCondition, m.quotedDeleteMarker(),
			),
		})
		updateCondition = fmt.Sprintf("%s AND COALESCE(%s, false) = false", updateCondition, m.quotedDeleteMarker())
	}

	return append(statements,
		MergeStatement{
			Kind: UpdateStatement,
			Query: fmt.Sprintf(`UPDATE %s AS %s SET %s FROM %s AS %s WHERE %s`,
				target, constants.TargetAlias,
				sql.BuildColumnsUpdateFragment(m.Columns, constants.SourceAlias, constants.TargetAlias, false, m.Dialect),
				m.SubQuery, constants.SourceAlias, updateCondition,
			),
		},
		MergeStatement{
			Kind: InsertStatement,
			Query: fmt.Sprintf(`%s WHERE NOT EXISTS (SELECT 1 FROM %s AS %s WHERE %s)`,
				insert, target, constants.TargetAlias, m.MatchCondition(),
			),
		},
	), nil
}

// GetStatement returns the merge as a single MERGE statement.
func (m *MergeArgument) GetStatement() (string, error) {
	if err := m.Valid(); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s AS %s USING %s AS %s ON %s",
		m.TableID.FullyQualifiedName(), constants.TargetAlias, m.SubQuery, constants.SourceAlias, m.MatchCondition())

	if len(m.PrimaryKeys) > 0 {
		matched := "WHEN MATCHED"
		if gate := m.SequenceCondition(); gate != "" {
			matched = fmt.Sprintf("%s AND %s", matched, gate)
		}

		if m.SoftDelete {
			fmt.Fprintf(&sb, "\n%s AND %s = true THEN UPDATE SET %s", matched, m.quotedDeleteMarker(),
				sql.BuildColumnsUpdateFragment(m.softDeleteColumns(), constants.SourceAlias, constants.TargetAlias, true, m.Dialect))
		}

		fmt.Fprintf(&sb, "\n%s THEN UPDATE SET %s", matched,
			sql.BuildColumnsUpdateFragment(m.Columns, constants.SourceAlias, constants.TargetAlias, true, m.Dialect))
	}

	fmt.Fprintf(&sb, "\nWHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(sql.QuoteColumns(m.Columns, m.Dialect), ","),
		strings.Join(sql.QuoteTableAliasColumns(constants.SourceAlias, m.Columns, m.Dialect), ","),
	)

	return sb.String(), nil
}
