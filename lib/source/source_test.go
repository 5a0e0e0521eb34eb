package source

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

func TestInferColumns(t *testing.T) {
	cols := InferColumns([]map[string]any{
		{"b": json.Number("1"), "a": "x", "c": nil},
		{"b": 2.5, "d": true},
	})

	assert.Equal(t, []string{"a", "b", "c", "d"}, cols.Names())
	var kinds []typing.KindDetails
	for _, col := range cols.GetColumns() {
		kinds = append(kinds, col.KindDetails)
	}
	assert.Equal(t, []typing.KindDetails{typing.String, typing.Float, typing.String, typing.Boolean}, kinds)
	assert.Equal(t, 0, InferColumns(nil).Len())
}

func TestCastRows(t *testing.T) {
	cols := columns.NewColumns(columns.NewColumn("id", typing.Integer), columns.NewColumn("Name", typing.String))
	{
		// Keys are matched case-insensitively, unknown keys are dropped
		rows, err := CastRows(cols, []map[string]any{{"ID": "1", "name": "a", "extra": true}, {}})
		assert.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(1), "Name": "a"}, {"id": nil, "Name": nil}}, rows)
	}
	{
		_, err := CastRows(cols, []map[string]any{{"id": "abc"}})
		assert.ErrorAs(t, err, &typing.CastError{})
	}
}

func TestSourceError(t *testing.T) {
	err := NewSourceError("describe", "/lake/raw", ErrSchemaMissing)
	assert.Equal(t, `failed to describe source "/lake/raw": schema inference is disabled and no schema was provided`, err.Error())
	assert.True(t, errors.Is(err, ErrSchemaMissing))
}
