package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artie-labs/medallion/lib/config/constants"
)

const silverDocument = `
layer: silver
project: sales
subject: erp
table: orders
datalake_path: /lake
id: sales_erp.orders_v1
step_raw_to_bronze:
  source:
    format: csv
    path: "{{ .datalake_path }}/raw/{{ .subject }}/{{ .table }}"
    options:
      delimiter: ";"
  target:
    options:
      primary_key: [id]
      sequence_by: [updated_at]
step_bronze_to_silver:
  source: {}
  target:
    table_name: orders_clean
    sql_transformations:
      b_second: ["upper(name) AS name_upper"]
      a_first: ["CAST(total AS REAL) AS total_real"]
    drop_columns: [name]
    options:
      primary_key: [id]
      apply_as_delete: "op = 'd'"
`

const goldDocument = `
layer: gold
project: sales
subject: erp
table: revenue
datalake_path: s3a://lake-bucket/prod
type_processing: batch
step_silver_to_gold:
  source:
    query: SELECT id, sum(total) AS total FROM silver_sales.erp_orders GROUP BY id
  target:
    options:
      primary_key: [id]
`

func TestParse(t *testing.T) {
	{
		// Numbers are kept verbatim
		doc, err := Parse([]byte("a: 1\nb:\n  c: 2.5\n  d: [x, 3]\n"))
		assert.NoError(t, err)
		assert.Equal(t, json.Number("1"), doc["a"])
		assert.Equal(t, map[string]any{"c": json.Number("2.5"), "d": []any{"x", json.Number("3")}}, doc["b"])
	}
	{
		// Integral floats keep their decimal point
		doc, err := Parse([]byte("version: 1.0\nratio: 2.50\n"))
		assert.NoError(t, err)
		assert.Equal(t, json.Number("1.0"), doc["version"])
		assert.Equal(t, json.Number("2.5"), doc["ratio"])
	}
	{
		// Not a mapping
		_, err := Parse([]byte("- a\n- b\n"))
		assert.ErrorAs(t, err, &MalformedDocumentError{})
		assert.ErrorIs(t, err, ErrConfig)
	}
	{
		// Not YAML
		_, err := Parse([]byte("a: [b"))
		assert.ErrorAs(t, err, &MalformedDocumentError{})
	}
}

func TestRender(t *testing.T) {
	{
		// No templates
		out, err := Render([]byte("a: b\n"))
		assert.NoError(t, err)
		assert.Equal(t, "a: b\n", string(out))
	}
	{
		// Chained references need more than one pass
		out, err := Render([]byte(`
lake: /lake
path: "{{ .lake }}/orders"
checkpoint: "{{ .path }}/_checkpoint"
`))
		assert.NoError(t, err)
		doc, err := Parse(out)
		assert.NoError(t, err)
		assert.Equal(t, "/lake/orders", doc["path"])
		assert.Equal(t, "/lake/orders/_checkpoint", doc["checkpoint"])
	}
	{
		// Nested references
		out, err := Render([]byte(`
target:
  path: /lake/t
checkpoint: "{{ .target.path }}/cp"
`))
		assert.NoError(t, err)
		assert.Contains(t, string(out), `checkpoint: "/lake/t/cp"`)
	}
	{
		// Missing key
		_, err := Render([]byte(`path: "{{ .nope }}/orders"`))
		assert.ErrorAs(t, err, &TemplateRenderError{})
		assert.ErrorIs(t, err, ErrConfig)
		assert.ErrorContains(t, err, "nope")
	}
	{
		// Invalid template
		_, err := Render([]byte(`path: "{{ .a "`))
		assert.ErrorAs(t, err, &TemplateRenderError{})
	}
	{
		// Self reference never settles
		_, err := Render([]byte(`a: "{{ .a }}x"`))
		assert.ErrorContains(t, err, "did not converge")
	}
}

func TestDetectStage(t *testing.T) {
	{
		stage, err := DetectStage(map[string]any{constants.StepRawToBronze: map[string]any{}})
		assert.NoError(t, err)
		assert.Equal(t, constants.StageSilver, stage)
	}
	{
		stage, err := DetectStage(map[string]any{constants.StepSilverToGold: map[string]any{}})
		assert.NoError(t, err)
		assert.Equal(t, constants.StageGold, stage)
	}
	{
		_, err := DetectStage(map[string]any{"layer": "silver"})
		assert.ErrorIs(t, err, ErrConfig)
	}
}

func TestResolve_Silver(t *testing.T) {
	cfg, err := Resolve([]byte(silverDocument), constants.StageAuto)
	require.NoError(t, err)

	assert.Equal(t, constants.StageSilver, cfg.Stage)
	assert.Equal(t, "sales_erp.orders_v1", cfg.Name())
	assert.Equal(t, constants.Batch, cfg.TypeProcessing)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "datalake", cfg.CatalogName)
	assert.True(t, cfg.IsActive())
	require.Len(t, cfg.Steps(), 2)

	bronze := cfg.StepRawToBronze
	assert.Equal(t, constants.StepRawToBronze, bronze.Name)
	assert.Equal(t, constants.CSV, bronze.Source.Format)
	assert.Equal(t, "/lake/raw/erp/orders", bronze.Source.Path)
	// Defaults are merged with the options the user set
	assert.Equal(t, ";", bronze.Source.Option("delimiter"))
	assert.Equal(t, "true", bronze.Source.Option("header"))
	assert.True(t, bronze.Source.InferSchema())

	assert.Equal(t, "bronze_sales", bronze.Target.DatabaseName)
	assert.Equal(t, "/lake/bronze/sales", bronze.Target.DatabasePath)
	assert.Equal(t, "erp_orders", bronze.Target.TableName)
	assert.Equal(t, "/lake/bronze/sales/erp_orders", bronze.Target.Path)
	assert.Equal(t, "delta", bronze.Target.Format)
	assert.Equal(t, []string{"id"}, bronze.Target.Options.PrimaryKey)
	assert.Equal(t, []string{"updated_at"}, bronze.Target.Options.SequenceBy)
	assert.Equal(t, constants.Overwrite, bronze.Target.Options.Mode)
	assert.Equal(t, "/lake/checkpoints/bronze/sales/erp_orders", bronze.Target.Options.CheckpointLocation)

	silver := cfg.StepBronzeToSilver
	// The silver step reads what the bronze step writes
	assert.Equal(t, constants.Delta, silver.Source.Format)
	assert.Equal(t, bronze.Target.Path, silver.Source.Path)
	assert.Equal(t, "silver_sales", silver.Target.DatabaseName)
	// Explicit values win over defaults
	assert.Equal(t, "orders_clean", silver.Target.TableName)
	assert.Equal(t, "/lake/silver/sales/erp_orders", silver.Target.Path)
	assert.Equal(t, []string{"name"}, silver.Target.DropColumns)
	assert.Equal(t, "op = 'd'", silver.Target.Options.ApplyAsDelete)
	assert.Len(t, silver.Target.SQLTransformations, 2)
	assert.Empty(t, silver.Target.Options.SequenceBy)
}

func TestResolve_Gold(t *testing.T) {
	{
		cfg, err := Resolve([]byte(goldDocument), constants.StageGold)
		require.NoError(t, err)
		require.Len(t, cfg.Steps(), 1)

		step := cfg.StepSilverToGold
		assert.True(t, step.Source.IsQuery())
		assert.Equal(t, "gold_sales", step.Target.DatabaseName)
		assert.Equal(t, "s3a://lake-bucket/prod/gold/sales", step.Target.DatabasePath)
		assert.Equal(t, "s3a://lake-bucket/prod/gold/sales/erp_revenue", step.Target.Path)
	}
	{
		// A gold document validated as silver
		_, err := Resolve([]byte(goldDocument), constants.StageSilver)
		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.True(t, validationErr.HasField(constants.StepRawToBronze))
		assert.True(t, validationErr.HasField(constants.StepBronzeToSilver))
	}
	{
		// Queries must look like a select
		_, err := Resolve([]byte(`
layer: gold
project: sales
subject: erp
table: revenue
datalake_path: /lake
step_silver_to_gold:
  source:
    query: DELETE FROM silver_sales.erp_orders
  target:
    options: {}
`), constants.StageAuto)
		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.True(t, validationErr.HasField("step_silver_to_gold.source.query"))
	}
}

func TestResolve_ValidationErrors(t *testing.T) {
	{
		// Missing target.options fails before anything is read
		_, err := Resolve([]byte(`
layer: silver
project: sales
subject: erp
table: orders
datalake_path: /lake
step_raw_to_bronze:
  source:
    format: csv
    path: /lake/raw
  target: {}
step_bronze_to_silver:
  source: {}
  target:
    options: {}
`), constants.StageSilver)
		assert.ErrorIs(t, err, ErrConfig)

		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, []FieldError{{Path: "step_raw_to_bronze.target.options", Message: "is required"}}, validationErr.Fields)
		assert.ErrorContains(t, err, "step_raw_to_bronze.target.options: is required")
	}
	{
		// Every offending field is reported
		_, err := Resolve([]byte(`
layer: silver
project: sales-team
subject: erp
datalake_path: relative/lake
version: "1"
active: "yes"
step_raw_to_bronze:
  source:
    format: xml
  target:
    options:
      mode: upsert
step_bronze_to_silver:
  source: {}
  target:
    options: {}
`), constants.StageSilver)
		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		for _, path := range []string{
			"table",
			"project",
			"datalake_path",
			"version",
			"active",
			"step_raw_to_bronze.source.format",
			"step_raw_to_bronze.target.options.mode",
		} {
			assert.True(t, validationErr.HasField(path), path)
		}
	}
	{
		// inferSchema disabled without a schema
		_, err := Resolve([]byte(`
layer: silver
project: sales
subject: erp
table: orders
datalake_path: /lake
step_raw_to_bronze:
  source:
    format: json
    path: /lake/raw
    options:
      inferSchema: "false"
  target:
    options: {}
step_bronze_to_silver:
  source: {}
  target:
    options: {}
`), constants.StageAuto)
		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.True(t, validationErr.HasField("step_raw_to_bronze.source.schema"))
	}
	{
		// Unquoted versions are YAML floats
		_, err := Resolve([]byte(strings.Replace(silverDocument, "id: sales_erp.orders_v1\n", "id: sales_erp.orders_v1\nversion: 1.0\n", 1)), constants.StageSilver)
		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.True(t, validationErr.HasField("version"))
		assert.ErrorContains(t, err, "version: expected string, but got number, quote the value to keep it as text")

		_, err = Resolve([]byte(strings.Replace(silverDocument, "id: sales_erp.orders_v1\n", "id: sales_erp.orders_v1\nversion: \"1.0\"\n", 1)), constants.StageSilver)
		assert.NoError(t, err)
	}
}

func TestResolve_Inactive(t *testing.T) {
	cfg, err := Resolve([]byte(goldDocument+"active: \"false\"\n"), constants.StageAuto)
	require.NoError(t, err)
	assert.False(t, cfg.IsActive())
}

func TestResolveFile(t *testing.T) {
	{
		path := filepath.Join(t.TempDir(), "gold.yaml")
		require.NoError(t, os.WriteFile(path, []byte(goldDocument), 0o644))
		cfg, err := ResolveFile(path, constants.StageAuto)
		assert.NoError(t, err)
		assert.Equal(t, "gold.sales.erp_revenue", cfg.Name())
	}
	{
		_, err := ResolveFile(filepath.Join(t.TempDir(), "missing.yaml"), constants.StageAuto)
		assert.ErrorContains(t, err, "failed to read settings document")
		assert.False(t, errors.Is(err, ErrConfig))
	}
}

func TestPipelineConfig_Validate(t *testing.T) {
	step := func() *StepConfig {
		return &StepConfig{
			Name:   constants.StepRawToBronze,
			Source: SourceSpec{Format: constants.CSV, Path: "/lake/raw"},
			Target: TargetSpec{DatabaseName: "bronze_sales", TableName: "erp_orders"},
		}
	}
	{
		cfg := PipelineConfig{TypeProcessing: constants.Batch, StepRawToBronze: step()}
		assert.NoError(t, cfg.Validate())
	}
	{
		// Streaming needs a checkpoint
		cfg := PipelineConfig{TypeProcessing: constants.Streaming, StepRawToBronze: step()}
		var validationErr ValidationError
		require.ErrorAs(t, cfg.Validate(), &validationErr)
		assert.True(t, validationErr.HasField("step_raw_to_bronze.target.options.checkpoint_location"))
	}
	{
		// Malformed explicit schema
		cfg := PipelineConfig{TypeProcessing: constants.Batch, StepRawToBronze: step()}
		cfg.StepRawToBronze.Source.Schema = map[string]any{"type": "array"}
		var validationErr ValidationError
		require.ErrorAs(t, cfg.Validate(), &validationErr)
		assert.True(t, validationErr.HasField("step_raw_to_bronze.source.schema"))
	}
	{
		// Kafka needs topics, file sources need a path
		cfg := PipelineConfig{TypeProcessing: constants.Batch, StepRawToBronze: step()}
		cfg.StepRawToBronze.Source = SourceSpec{Format: constants.Kafka}
		cfg.StepBronzeToSilver = step()
		cfg.StepBronzeToSilver.Name = constants.StepBronzeToSilver
		cfg.StepBronzeToSilver.Source.Path = ""

		var validationErr ValidationError
		require.ErrorAs(t, cfg.Validate(), &validationErr)
		assert.True(t, validationErr.HasField("step_raw_to_bronze.source.options.subscribe"))
		assert.True(t, validationErr.HasField("step_bronze_to_silver.source.path"))
	}
	{
		// No steps, unknown processing type
		var validationErr ValidationError
		require.ErrorAs(t, PipelineConfig{TypeProcessing: "hourly"}.Validate(), &validationErr)
		assert.Len(t, validationErr.Fields, 2)
	}
}

func TestSourceSpec_Options(t *testing.T) {
	spec := SourceSpec{Options: map[string]any{"header": "false", "maxFilesPerTrigger": json.Number("5"), "bad": "x"}}
	assert.False(t, spec.BoolOption("header", true))
	assert.True(t, spec.BoolOption("missing", true))
	assert.True(t, spec.InferSchema())

	number, err := spec.IntOption("maxFilesPerTrigger", 1)
	assert.NoError(t, err)
	assert.Equal(t, 5, number)

	_, err = spec.IntOption("bad", 1)
	assert.ErrorContains(t, err, `option "bad" must be an integer`)
}
