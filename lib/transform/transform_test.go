package transform

import (
	"context"
	gosql "database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/artie-labs/medallion/clients/sqlite/dialect"
	"github.com/artie-labs/medallion/lib/sql"
)

const input = `SELECT * FROM orders`

func newDB(t *testing.T) *gosql.DB {
	db, err := gosql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER, Name TEXT, amount REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES (1, 'ada', 10.5), (2, 'grace', 3)`)
	require.NoError(t, err)
	return db
}

func query(t *testing.T, db *gosql.DB, result Result) []map[string]any {
	rows, err := db.Query(result.Query + " ORDER BY 1")
	require.NoError(t, err)
	objects, err := sql.RowsToObjects(rows)
	require.NoError(t, err)
	return objects
}

func TestSortedGroups(t *testing.T) {
	assert.Empty(t, SortedGroups(nil))
	assert.Equal(t, []string{"01_clean", "02_enrich", "b"}, SortedGroups(map[string][]string{"b": nil, "02_enrich": nil, "01_clean": nil}))
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	{
		// Nothing to do
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, Result{Query: input, Columns: []string{"id", "Name", "amount"}}, result)
	}
	{
		// Groups run in name order, later groups see columns of earlier ones
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{
			"02_total": {"amount_cents + 1 AS total"},
			"01_cents": {"CAST(amount * 100 AS INTEGER) AS amount_cents", "upper(Name) AS name_upper"},
		}, nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"id", "Name", "amount", "amount_cents", "name_upper", "total"}, result.Columns)

		objects := query(t, db, result)
		assert.Len(t, objects, 2)
		assert.Equal(t, int64(1051), objects[0]["total"])
		assert.Equal(t, "GRACE", objects[1]["name_upper"])
	}
	{
		// Running the same groups twice produces the same query
		groups := map[string][]string{"b": {"id + 1 AS b"}, "a": {"id + 2 AS a"}, "c": {"a + b AS c"}}
		first, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, groups, nil)
		assert.NoError(t, err)
		second, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, groups, nil)
		assert.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, []string{"id", "Name", "amount", "a", "b", "c"}, first.Columns)
	}
	{
		// Redefining a column replaces it, the last definition wins
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{
			"1": {"upper(Name) AS name"},
			"2": {"Name || '!' AS Name"},
		}, nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"id", "amount", "Name"}, result.Columns)

		objects := query(t, db, result)
		assert.Equal(t, "ADA!", objects[0]["Name"])
	}
	{
		// Blank expressions and empty groups are skipped
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{"empty": {}, "blank": {"  "}}, nil)
		assert.NoError(t, err)
		assert.Equal(t, input, result.Query)
	}
}

func TestApply_Drop(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	{
		// Drops are case-insensitive and apply to derived columns
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{"1": {"amount * 2 AS double_amount"}}, []string{"NAME", "Double_Amount"})
		assert.NoError(t, err)
		assert.Equal(t, []string{"id", "amount"}, result.Columns)

		objects := query(t, db, result)
		assert.Equal(t, map[string]any{"id": int64(1), "amount": 10.5}, objects[0])
	}
	{
		// A column that was redefined is still dropped
		result, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{"1": {"upper(Name) AS Name"}}, []string{"name"})
		assert.NoError(t, err)
		assert.Equal(t, []string{"id", "amount"}, result.Columns)
	}
	{
		_, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, nil, []string{"missing"})
		assert.ErrorContains(t, err, `failed to drop columns: column "missing" does not exist`)

		var transformErr TransformError
		assert.True(t, errors.As(err, &transformErr))
		assert.Empty(t, transformErr.Group)
	}
	{
		_, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, nil, []string{"id", "name", "amount"})
		assert.ErrorContains(t, err, "every column would be dropped")
	}
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	{
		// Invalid input
		_, err := Apply(ctx, db, dialect.SQLiteDialect{}, "SELECT * FROM missing", nil, nil)
		assert.ErrorContains(t, err, "failed to describe input")
	}
	{
		// Failing expression
		_, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{
			"01_ok":     {"id + 1 AS next_id"},
			"02_broken": {"no_such_column + 1 AS x"},
		}, nil)
		var transformErr TransformError
		assert.True(t, errors.As(err, &transformErr))
		assert.Equal(t, "02_broken", transformErr.Group)
		assert.ErrorContains(t, err, `transformation group "02_broken" failed`)
	}
	{
		// The same alias twice in one group
		_, err := Apply(ctx, db, dialect.SQLiteDialect{}, input, map[string][]string{"1": {"1 AS x", "2 AS X"}}, nil)
		assert.ErrorContains(t, err, `column "X" is defined more than once`)
	}
}
