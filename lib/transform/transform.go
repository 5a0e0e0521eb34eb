package transform

import (
	"context"
	gosql "database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*gosql.Rows, error)
}

// Result is the transformed batch, a query and the names of the columns it produces.
type Result struct {
	Query   string
	Columns []string
}

// TransformError aborts a batch before anything is written to the target.
type TransformError struct {
	// Group is the transformation group that failed, empty when dropping columns failed.
	Group string
	err   error
}

func NewTransformError(group string, err error) TransformError {
	return TransformError{Group: group, err: err}
}

func (t TransformError) Error() string {
	if t.Group == "" {
		return fmt.Sprintf("failed to drop columns: %v", t.err)
	}

	return fmt.Sprintf("transformation group %q failed: %v", t.Group, t.err)
}

func (t TransformError) Unwrap() error {
	return t.err
}

// SortedGroups returns the group names in the order they are applied.
func SortedGroups(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply layers every group of [groups] on top of [input] as one `SELECT *, ...` level, in ascending group name
// order, then removes [dropColumns]. An expression whose alias matches an existing column replaces it.
func Apply(ctx context.Context, querier Querier, dialect sql.Dialect, input string, groups map[string][]string, dropColumns []string) (Result, error) {
	names, err := probe(ctx, querier, fmt.Sprintf("SELECT * FROM (%s) AS input_ WHERE 1 = 0", input))
	if err != nil {
		return Result{}, fmt.Errorf("failed to describe input: %w", err)
	}

	result := Result{Query: input, Columns: names}
	for i, group := range SortedGroups(groups) {
		var exprs []string
		for _, expr := range groups[group] {
			if expr = strings.TrimSpace(expr); expr != "" {
				exprs = append(exprs, expr)
			}
		}

		if len(exprs) == 0 {
			continue
		}

		if result, err = applyGroup(ctx, querier, dialect, result, fmt.Sprintf("g_%d", i), exprs); err != nil {
			return Result{}, NewTransformError(group, err)
		}
	}

	if len(dropColumns) == 0 {
		return result, nil
	}

	if result, err = drop(dialect, result, dropColumns); err != nil {
		return Result{}, NewTransformError("", err)
	}

	return result, nil
}

func applyGroup(ctx context.Context, querier Querier, dialect sql.Dialect, prev Result, alias string, exprs []string) (Result, error) {
	level := fmt.Sprintf("SELECT *, %s FROM (%s) AS %s", strings.Join(exprs, ", "), prev.Query, alias)
	names, err := probe(ctx, querier, level+" WHERE 1 = 0")
	if err != nil {
		return Result{}, err
	}

	if len(names) < len(prev.Columns) {
		return Result{}, fmt.Errorf("expected at least %d columns, got %d", len(prev.Columns), len(names))
	}

	added := names[len(prev.Columns):]
	for i, name := range added {
		if slices.ContainsFunc(added[:i], func(other string) bool { return columns.EqualNames(name, other) }) {
			return Result{}, fmt.Errorf("column %q is defined more than once", name)
		}
	}

	var kept []string
	for _, name := range prev.Columns {
		if !slices.ContainsFunc(added, func(other string) bool { return columns.EqualNames(name, other) }) {
			kept = append(kept, name)
		}
	}

	if len(kept) == len(prev.Columns) {
		return Result{Query: level, Columns: names}, nil
	}

	// Redefined columns are selected from the expressions only.
	selectList := append(sql.QuoteColumns(kept, dialect), exprs...)
	level = fmt.Sprintf("SELECT %s FROM (%s) AS %s", strings.Join(selectList, ", "), prev.Query, alias)
	if names, err = probe(ctx, querier, level+" WHERE 1 = 0"); err != nil {
		return Result{}, err
	}

	return Result{Query: level, Columns: names}, nil
}

func drop(dialect sql.Dialect, prev Result, dropColumns []string) (Result, error) {
	for _, name := range dropColumns {
		if !slices.ContainsFunc(prev.Columns, func(other string) bool { return columns.EqualNames(name, other) }) {
			return Result{}, fmt.Errorf("column %q does not exist", name)
		}
	}

	var kept []string
	for _, name := range prev.Columns {
		if !slices.ContainsFunc(dropColumns, func(other string) bool { return columns.EqualNames(name, other) }) {
			kept = append(kept, name)
		}
	}

	if len(kept) == 0 {
		return Result{}, fmt.Errorf("every column would be dropped")
	}

	return Result{
		Query:   fmt.Sprintf("SELECT %s FROM (%s) AS drop_", strings.Join(sql.QuoteColumns(kept, dialect), ", "), prev.Query),
		Columns: kept,
	}, nil
}

func probe(ctx context.Context, querier Querier, query string) ([]string, error) {
	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	return names, rows.Err()
}
