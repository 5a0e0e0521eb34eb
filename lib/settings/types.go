package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/artie-labs/medallion/lib/config/constants"
)

type PipelineConfig struct {
	Layer          string                   `yaml:"layer"`
	Project        string                   `yaml:"project"`
	Subject        string                   `yaml:"subject"`
	Table          string                   `yaml:"table"`
	DatalakePath   string                   `yaml:"datalake_path"`
	ID             string                   `yaml:"id,omitempty"`
	CatalogName    string                   `yaml:"catalog_name"`
	TypeProcessing constants.ProcessingType `yaml:"type_processing"`
	Version        string                   `yaml:"version"`
	Active         string                   `yaml:"active"`

	StepRawToBronze    *StepConfig `yaml:"step_raw_to_bronze,omitempty"`
	StepBronzeToSilver *StepConfig `yaml:"step_bronze_to_silver,omitempty"`
	StepSilverToGold   *StepConfig `yaml:"step_silver_to_gold,omitempty"`

	Stage constants.StageKind `yaml:"-"`
}

func (p PipelineConfig) IsActive() bool {
	return p.Active != "false"
}

func (p PipelineConfig) IsStreaming() bool {
	return p.TypeProcessing == constants.Streaming
}

// Name identifies the pipeline in logs, the id is used when it was provided.
func (p PipelineConfig) Name() string {
	if p.ID != "" {
		return p.ID
	}

	return fmt.Sprintf("%s.%s.%s_%s", p.Layer, p.Project, p.Subject, p.Table)
}

// Steps returns the configured steps in execution order.
func (p PipelineConfig) Steps() []*StepConfig {
	var steps []*StepConfig
	for _, step := range []*StepConfig{p.StepRawToBronze, p.StepBronzeToSilver, p.StepSilverToGold} {
		if step != nil {
			steps = append(steps, step)
		}
	}

	return steps
}

type StepConfig struct {
	Name   string     `yaml:"-"`
	Source SourceSpec `yaml:"source"`
	Target TargetSpec `yaml:"target"`
}

type SourceSpec struct {
	Format  constants.SourceFormat `yaml:"format,omitempty"`
	Path    string                 `yaml:"path,omitempty"`
	Query   string                 `yaml:"query,omitempty"`
	Options map[string]any         `yaml:"options,omitempty"`
	// Schema is an explicit Spark StructType document, only used when the format is not self-describing.
	Schema any `yaml:"schema,omitempty"`
}

// Option returns the option as a string, or an empty string if it was not set.
func (s SourceSpec) Option(key string) string {
	val, isOk := s.Options[key]
	if !isOk || val == nil {
		return ""
	}

	return fmt.Sprint(val)
}

func (s SourceSpec) BoolOption(key string, defaultValue bool) bool {
	val := s.Option(key)
	if val == "" {
		return defaultValue
	}

	return strings.EqualFold(val, "true")
}

func (s SourceSpec) IntOption(key string, defaultValue int) (int, error) {
	val := s.Option(key)
	if val == "" {
		return defaultValue, nil
	}

	number, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("option %q must be an integer, got %q", key, val)
	}

	return number, nil
}

// InferSchema defaults to true, the same way the stage defaults do.
func (s SourceSpec) InferSchema() bool {
	return s.BoolOption("inferSchema", true)
}

// IsQuery is true for gold derivation steps.
func (s SourceSpec) IsQuery() bool {
	return s.Query != ""
}

type TargetSpec struct {
	CatalogName        string              `yaml:"catalog_name"`
	DatabaseName       string              `yaml:"database_name"`
	DatabasePath       string              `yaml:"database_path"`
	TableName          string              `yaml:"table_name"`
	Path               string              `yaml:"path"`
	Format             string              `yaml:"format"`
	Options            TargetOptions       `yaml:"options"`
	SQLTransformations map[string][]string `yaml:"sql_transformations,omitempty"`
	DropColumns        []string            `yaml:"drop_columns,omitempty"`
}

// TargetOptions are the merge options of a target.
type TargetOptions struct {
	PrimaryKey  []string `yaml:"primary_key,omitempty"`
	SequenceBy  []string `yaml:"sequence_by,omitempty"`
	PartitionBy []string `yaml:"partition_by,omitempty"`
	// ApplyAsDelete is a boolean SQL expression over source columns, rows matching it are soft deleted.
	ApplyAsDelete      string              `yaml:"apply_as_delete,omitempty"`
	Mode               constants.WriteMode `yaml:"mode,omitempty"`
	CheckpointLocation string              `yaml:"checkpoint_location,omitempty"`
}
