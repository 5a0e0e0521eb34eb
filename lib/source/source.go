package source

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// Batch is one micro-batch. It either carries decoded [Rows] or a [Relation], a SQL query that the destination
// engine can evaluate (table snapshots and gold queries).
type Batch struct {
	// ID is assigned by the reader, it increases monotonically and only serves logging.
	ID       int64
	Columns  *columns.Columns
	Rows     []map[string]any
	Relation string
	// Files lists the source files consumed by the batch.
	Files []string
	// Offsets holds the next kafka offset per topic and partition.
	Offsets map[string]map[int32]int64
	// Version is the highest upstream commit stamp a table batch covers.
	Version int64
}

func (b Batch) IsRelation() bool {
	return b.Relation != ""
}

func (b Batch) Len() int {
	return len(b.Rows)
}

type Reader interface {
	Schema() *columns.Columns
	// Bounded readers produce a single batch, unbounded ones produce whatever is currently available on each call.
	Bounded() bool
	// Next returns the next currently available batch, false means the reader has caught up.
	Next(ctx context.Context) (Batch, bool, error)
	// Commit records the progress of a batch once it was merged.
	Commit(ctx context.Context, batch Batch) error
	Close() error
}

var (
	ErrSchemaMissing   = errors.New("schema inference is disabled and no schema was provided")
	ErrSchemaMalformed = errors.New("schema is malformed")
)

// SourceError is returned when a source cannot be opened, described or decoded.
type SourceError struct {
	Op     string
	Source string
	err    error
}

func NewSourceError(op, source string, err error) SourceError {
	return SourceError{Op: op, Source: source, err: err}
}

func (s SourceError) Error() string {
	return fmt.Sprintf("failed to %s source %q: %v", s.Op, s.Source, s.err)
}

func (s SourceError) Unwrap() error {
	return s.err
}

// InferColumns derives a schema from decoded rows. Columns are sorted by name, kinds are widened across rows
// and columns that are only ever null become strings.
func InferColumns(rows []map[string]any) *columns.Columns {
	kinds := make(map[string]typing.KindDetails)
	for _, row := range rows {
		for key, value := range row {
			kinds[key] = typing.Widen(kinds[key], typing.ParseValue(value))
		}
	}

	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	slices.Sort(names)

	cols := columns.NewColumns()
	for _, name := range names {
		kd := kinds[name]
		if kd == typing.Invalid {
			kd = typing.String
		}
		cols.AddColumn(columns.NewColumn(name, kd))
	}

	return cols
}

// CastRows converts every row to the kinds of [cols], keys that are not part of the schema are dropped.
func CastRows(cols *columns.Columns, rows []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		casted := make(map[string]any, cols.Len())
		for _, col := range cols.GetColumns() {
			value, err := typing.Cast(col.Name(), lookup(row, col.Name()), col.KindDetails)
			if err != nil {
				return nil, err
			}
			casted[col.Name()] = value
		}
		out = append(out, casted)
	}

	return out, nil
}

func lookup(row map[string]any, name string) any {
	if value, isOk := row[name]; isOk {
		return value
	}

	for key, value := range row {
		if columns.EqualNames(key, name) {
			return value
		}
	}

	return nil
}

// Rewinder is implemented by snapshot readers that can produce their data again on the next trigger.
type Rewinder interface {
	Rewind()
}
