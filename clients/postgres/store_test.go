package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artie-labs/medallion/clients/shared"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/db"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
	"github.com/artie-labs/medallion/lib/telemetry/metrics"
	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

const createCatalogQuery = `CREATE TABLE IF NOT EXISTS "public"."__ingest_catalog" ("path" TEXT PRIMARY KEY, "database_name" TEXT NOT NULL, "table_name" TEXT NOT NULL, "registered_at" TEXT NOT NULL)`

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectExec(regexp.QuoteMeta(createCatalogQuery)).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := newStore(context.Background(), slog.Default(), db.WrapDB(mockDB))
	require.NoError(t, err)
	return store, mock
}

func TestNewStore(t *testing.T) {
	{
		// Catalog creation fails
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectExec(regexp.QuoteMeta(createCatalogQuery)).WillReturnError(fmt.Errorf("permission denied for schema public"))
		mock.ExpectClose()
		_, err = newStore(context.Background(), slog.Default(), db.WrapDB(mockDB))
		assert.ErrorContains(t, err, "failed to create catalog table: failed to execute statement: permission denied for schema public")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		store, mock := newMockStore(t)
		assert.Equal(t, constants.Postgres, store.Kind())
		assert.Equal(t, `"silver"."orders"`, store.IdentifierFor("silver", "orders").FullyQualifiedName())
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestStore_EnsureDatabase(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "silver"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, store.EnsureDatabase(context.Background(), store.IdentifierFor("silver", "orders"), "/lake/silver"))

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "silver"`)).WillReturnError(fmt.Errorf("permission denied"))
	assert.ErrorContains(t, store.EnsureDatabase(context.Background(), store.IdentifierFor("silver", "orders"), ""), `failed to create schema "silver"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Catalog(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."__ingest_catalog" ("path","database_name","table_name","registered_at") VALUES ($1, $2, $3, $4) ON CONFLICT ("path") DO UPDATE SET "database_name" = excluded."database_name", "table_name" = excluded."table_name"`)).
		WithArgs("/lake/silver/orders", "silver", "orders", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, store.RegisterTable(ctx, store.IdentifierFor("silver", "orders"), "/lake/silver/orders/"))

	lookup := regexp.QuoteMeta(`SELECT "database_name", "table_name" FROM "public"."__ingest_catalog" WHERE "path" = $1`)
	mock.ExpectQuery(lookup).WithArgs("/lake/silver/orders").
		WillReturnRows(sqlmock.NewRows([]string{"database_name", "table_name"}).AddRow("silver", "orders"))
	relation, err := store.RelationForPath(ctx, "/lake/silver/orders")
	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "silver"."orders"`, relation)

	mock.ExpectQuery(lookup).WithArgs("/lake/bronze/orders").WillReturnRows(sqlmock.NewRows([]string{"database_name", "table_name"}))
	_, err = store.RelationForPath(ctx, "/lake/bronze/orders")
	assert.ErrorContains(t, err, `no table is registered at path "/lake/bronze/orders"`)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Merge(t *testing.T) {
	arg := dml.MergeArgument{
		SubQuery:    `"silver"."orders__ingest_abcde_1"`,
		PrimaryKeys: []string{"id"},
		SequenceBy:  []string{"updated_at"},
		Columns:     []string{"id", "updated_at", constants.DeleteColumnMarker},
		SoftDelete:  true,
		DestKind:    constants.Postgres,
	}
	{
		// Every statement runs in one transaction
		store, mock := newMockStore(t)
		arg.TableID = store.IdentifierFor("silver", "orders")
		arg.Dialect = store.Dialect()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "silver"."orders" AS target_ SET "__is_deleted" = source_."__is_deleted"`)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "silver"."orders" AS target_ SET "id" = source_."id"`)).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "silver"."orders"`)).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		outcome, err := store.Merge(context.Background(), arg)
		assert.NoError(t, err)
		assert.Equal(t, types.MergeOutcome{Inserted: 3, Updated: 2, Deleted: 1}, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// A failing statement rolls everything back
		store, mock := newMockStore(t)
		arg.TableID = store.IdentifierFor("silver", "orders")
		arg.Dialect = store.Dialect()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "silver"."orders"`)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "silver"."orders"`)).WillReturnError(fmt.Errorf("deadlock detected"))
		mock.ExpectRollback()

		_, err := store.Merge(context.Background(), arg)
		assert.ErrorContains(t, err, "deadlock detected")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestEngine_EnsureTable(t *testing.T) {
	ctx := context.Background()
	target := shared.Target{Path: "/lake/silver/orders", PartitionBy: []string{"day"}}
	cols := columns.NewColumns(
		columns.NewColumnWithDataType("id", typing.Integer, "bigint"),
		columns.NewColumnWithDataType("day", typing.Date, "date"),
	)
	describe := regexp.QuoteMeta("pg_catalog.format_type")
	{
		// Absent table is created with the framework comment and registered
		store, mock := newMockStore(t)
		engine := shared.NewEngine(slog.Default(), store, metrics.NullMetricsProvider{}, 100)
		target.TableID = store.IdentifierFor("silver", "orders")

		mock.ExpectQuery(describe).WithArgs("silver", "orders").WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "silver"."orders" ("id" bigint, "day" date)`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`COMMENT ON TABLE "silver"."orders" IS 'Table silver.orders created by framework.'`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."__ingest_catalog"`)).WithArgs("/lake/silver/orders", "silver", "orders", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

		handle, err := engine.EnsureTable(ctx, target, cols)
		assert.NoError(t, err)
		assert.True(t, handle.Created)
		assert.Equal(t, []string{"id", "day"}, handle.Columns.Names())

		// Cached afterwards, new columns are added
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "silver"."orders" ADD COLUMN IF NOT EXISTS "note" text`)).WillReturnResult(sqlmock.NewResult(0, 0))
		handle, err = engine.EnsureTable(ctx, target, columns.NewColumns(append(cols.GetColumns(), columns.NewColumnWithDataType("note", typing.String, "text"))...))
		assert.NoError(t, err)
		assert.False(t, handle.Created)
		assert.Equal(t, []string{"id", "day", "note"}, handle.Columns.Names())
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Existing table
		store, mock := newMockStore(t)
		engine := shared.NewEngine(slog.Default(), store, metrics.NullMetricsProvider{}, 100)
		target.TableID = store.IdentifierFor("silver", "orders")

		mock.ExpectQuery(describe).WithArgs("silver", "orders").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).AddRow("id", "bigint").AddRow("day", "date"))
		handle, err := engine.EnsureTable(ctx, target, cols)
		assert.NoError(t, err)
		assert.False(t, handle.Created)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Creation failure
		store, mock := newMockStore(t)
		engine := shared.NewEngine(slog.Default(), store, metrics.NullMetricsProvider{}, 100)
		target.TableID = store.IdentifierFor("silver", "orders")

		mock.ExpectQuery(describe).WithArgs("silver", "orders").WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied"})
		_, err := engine.EnsureTable(ctx, target, cols)
		assert.True(t, types.IsTableError(err, types.TableCreation))
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// A table that does not exist is reported by error code
		store, mock := newMockStore(t)
		mock.ExpectQuery(describe).WithArgs("silver", "orders").WillReturnError(&pgconn.PgError{Code: "42P01"})
		existing, err := shared.DescribeTable(ctx, store, store.IdentifierFor("silver", "orders"))
		assert.NoError(t, err)
		assert.Nil(t, existing)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}
