package settings

import (
	"fmt"
	"slices"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// Validate runs the checks that the stage schemas cannot express.
func (p PipelineConfig) Validate() error {
	var fields []FieldError
	if !slices.Contains([]constants.ProcessingType{constants.Batch, constants.Streaming}, p.TypeProcessing) {
		fields = append(fields, FieldError{Path: "type_processing", Message: fmt.Sprintf("%q is not one of batch, streaming", p.TypeProcessing)})
	}

	steps := p.Steps()
	if len(steps) == 0 {
		fields = append(fields, FieldError{Path: "(root)", Message: "declares no steps"})
	}

	for _, step := range steps {
		fields = append(fields, step.validate(p.IsStreaming())...)
	}

	if len(fields) > 0 {
		return ValidationError{Fields: fields}
	}

	return nil
}

func (s StepConfig) validate(streaming bool) []FieldError {
	var fields []FieldError
	add := func(path, message string) {
		fields = append(fields, FieldError{Path: s.Name + "." + path, Message: message})
	}

	if s.Target.DatabaseName == "" {
		add("target.database_name", "is required")
	}
	if s.Target.TableName == "" {
		add("target.table_name", "is required")
	}
	if streaming && s.Target.Options.CheckpointLocation == "" {
		add("target.options.checkpoint_location", "is required for streaming pipelines")
	}

	source := s.Source
	if source.IsQuery() {
		return fields
	}

	switch {
	case source.Format == "":
		add("source.format", "is required when no query is set")
	case source.Format.IsFile():
		if source.Path == "" {
			add("source.path", fmt.Sprintf("is required for %s sources", source.Format))
		}

		if source.Format != constants.Parquet {
			if source.Schema != nil {
				if _, err := columns.FromSparkSchema(source.Schema); err != nil {
					add("source.schema", err.Error())
				}
			} else if !source.InferSchema() {
				add("source.schema", "is required when inferSchema is false")
			}
		}

		if _, err := source.IntOption("maxFilesPerTrigger", 0); err != nil {
			add("source.options.maxFilesPerTrigger", err.Error())
		}
	case source.Format == constants.Delta, source.Format == constants.Table:
		if source.Path == "" {
			add("source.path", fmt.Sprintf("is required for %s sources", source.Format))
		}
	case source.Format == constants.Kafka:
		if source.Option("subscribe") == "" {
			add("source.options.subscribe", "is required for kafka sources")
		}
	}

	return fields
}
