package types

import (
	"errors"
	"fmt"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// TableHandle binds a merge to an existing target table.
type TableHandle struct {
	TableID sql.TableIdentifier
	Columns *columns.Columns
	// Created is set when the table did not exist before.
	Created bool
}

// MergeOutcome counts the rows a merge changed.
type MergeOutcome struct {
	Inserted int64
	Updated  int64
	// Deleted counts soft deletes. Engines that cannot tell them apart from updates report them as updates.
	Deleted int64
}

func (m MergeOutcome) Total() int64 {
	return m.Inserted + m.Updated + m.Deleted
}

type TableErrorKind string

const (
	DatabaseCreation TableErrorKind = "database_creation"
	TableCreation    TableErrorKind = "table_creation"
	Merge            TableErrorKind = "merge"
)

// TableError is returned when the target engine rejects a table operation, the cause is kept unmodified.
type TableError struct {
	Kind  TableErrorKind
	Table string
	err   error
}

func NewTableError(kind TableErrorKind, table string, err error) TableError {
	return TableError{Kind: kind, Table: table, err: err}
}

func (t TableError) Error() string {
	return fmt.Sprintf("%s failed for %q: %v", t.Kind, t.Table, t.err)
}

func (t TableError) Unwrap() error {
	return t.err
}

// IsTableError reports whether [err] wraps a [TableError] of [kind].
func IsTableError(err error, kind TableErrorKind) bool {
	var tableErr TableError
	return errors.As(err, &tableErr) && tableErr.Kind == kind
}
