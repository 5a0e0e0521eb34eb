package dialect

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing"
)

func TestPostgresDialect_QuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"foo"`, PostgresDialect{}.QuoteIdentifier("foo"))
	assert.Equal(t, `"FOO"`, PostgresDialect{}.QuoteIdentifier("FOO"))
	assert.Equal(t, `"fo""o"`, PostgresDialect{}.QuoteIdentifier(`fo"o`))
}

func TestPostgresDialect_Placeholder(t *testing.T) {
	assert.Equal(t, "$1", PostgresDialect{}.Placeholder(0))
	assert.Equal(t, "$12", PostgresDialect{}.Placeholder(11))
}

func TestPostgresDialect_DataTypes(t *testing.T) {
	d := PostgresDialect{}
	for kd, expected := range map[typing.KindDetails]string{
		typing.Integer:   "bigint",
		typing.Float:     "double precision",
		typing.Boolean:   "boolean",
		typing.Timestamp: "timestamp with time zone",
		typing.Date:      "date",
		typing.Struct:    "jsonb",
		typing.Array:     "jsonb",
		typing.String:    "text",
	} {
		assert.Equal(t, expected, d.DataTypeForKind(kd), kd.Kind)
		assert.Equal(t, kd == typing.Array, d.KindForDataType(expected) != kd, kd.Kind)
	}

	assert.Equal(t, typing.Float, d.KindForDataType("numeric(10,2)"))
	assert.Equal(t, typing.String, d.KindForDataType("character varying(255)"))
	assert.Equal(t, typing.Array, d.KindForDataType("text[]"))
	assert.Equal(t, typing.Integer, d.KindForDataType("INT8"))
	assert.Equal(t, typing.Timestamp, d.KindForDataType("TIMESTAMPTZ"))
}

func TestPostgresDialect_IsTableDoesNotExistErr(t *testing.T) {
	assert.True(t, PostgresDialect{}.IsTableDoesNotExistErr(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "42P01"})))
	assert.False(t, PostgresDialect{}.IsTableDoesNotExistErr(&pgconn.PgError{Code: "42601"}))
	assert.False(t, PostgresDialect{}.IsTableDoesNotExistErr(fmt.Errorf("relation does not exist")))
}

func TestPostgresDialect_Queries(t *testing.T) {
	d := PostgresDialect{}
	tableID := NewTableIdentifier("silver_sales", "orders")
	assert.Equal(t, `"silver_sales"."orders"`, tableID.FullyQualifiedName())

	assert.Equal(t, []string{`CREATE SCHEMA IF NOT EXISTS "silver_sales"`}, d.BuildCreateDatabaseQueries(tableID, "/lake/silver/sales"))
	assert.Equal(t,
		[]string{
			`CREATE TABLE IF NOT EXISTS "silver_sales"."orders" ("id" bigint, "note" text)`,
			`COMMENT ON TABLE "silver_sales"."orders" IS 'Table silver_sales.orders created by framework.'`,
		},
		d.BuildCreateTableQueries(tableID, []string{`"id" bigint`, `"note" text`}, sql.CreateTableArgs{Comment: "Table silver_sales.orders created by framework."}),
	)
	assert.Len(t, d.BuildCreateTableQueries(tableID, []string{`"id" bigint`}, sql.CreateTableArgs{}), 1)
	assert.Equal(t, `ALTER TABLE "silver_sales"."orders" ADD COLUMN IF NOT EXISTS "v" text`, d.BuildAddColumnQuery(tableID, `"v" text`))

	query, args := d.BuildDescribeTableQuery(tableID)
	assert.Contains(t, query, "pg_catalog.format_type")
	assert.Equal(t, []any{"silver_sales", "orders"}, args)

	query, args = d.BuildListTablesQuery(tableID)
	assert.Equal(t, listTablesQuery, query)
	assert.Equal(t, []any{"silver_sales"}, args)
}
