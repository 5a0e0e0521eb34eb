package constants

import (
	"slices"
	"time"
)

const (
	IngestPrefix = "__ingest"
	// DeleteColumnMarker is the soft delete flag written to targets that configure `apply_as_delete`.
	DeleteColumnMarker = "__is_deleted"
	// OrdinalColumn carries the arrival order of a row within a batch. It never reaches the target.
	OrdinalColumn = IngestPrefix + "_ordinal"
	RankColumn    = IngestPrefix + "_rank"
	// CommitColumn stamps every row a merge inserts or changes. Stamps grow with every merge into a table, so
	// readers of the table can resume after the last stamp they consumed.
	CommitColumn = IngestPrefix + "_commit"

	// CatalogTable maps table storage paths to tables for engines without a native path catalog.
	CatalogTable = IngestPrefix + "_catalog"

	TemporaryTableTTL         = 6 * time.Hour
	DeletionConfidencePadding = 4 * time.Hour

	DefaultTriggerInterval = 30 * time.Second
	DefaultRowsPerInsert   = 500

	TableCommentFormat = "Table %s.%s created by framework."
)

type TableAlias string

const (
	SourceAlias TableAlias = "source_"
	TargetAlias TableAlias = "target_"
)

// ExporterKind is used for the Telemetry package
type ExporterKind string

const (
	Datadog ExporterKind = "datadog"
)

type DestinationKind string

const (
	SQLite     DestinationKind = "sqlite"
	Postgres   DestinationKind = "postgres"
	Databricks DestinationKind = "databricks"
)

var validDestinations = []DestinationKind{
	SQLite,
	Postgres,
	Databricks,
}

func IsValidDestination(destination DestinationKind) bool {
	return slices.Contains(validDestinations, destination)
}

type ProcessingType string

const (
	Batch     ProcessingType = "batch"
	Streaming ProcessingType = "streaming"
)

type WriteMode string

const (
	Append    WriteMode = "append"
	Overwrite WriteMode = "overwrite"
)

type SourceFormat string

const (
	CSV     SourceFormat = "csv"
	JSON    SourceFormat = "json"
	Parquet SourceFormat = "parquet"
	Delta   SourceFormat = "delta"
	Table   SourceFormat = "table"
	Kafka   SourceFormat = "kafka"
)

func (s SourceFormat) IsFile() bool {
	return s == CSV || s == JSON || s == Parquet
}

// SelfDescribing formats carry their own schema.
func (s SourceFormat) SelfDescribing() bool {
	return s == Parquet || s == Delta || s == Table
}

type StageKind string

const (
	StageAuto   StageKind = ""
	StageSilver StageKind = "silver"
	StageGold   StageKind = "gold"
)

const (
	StepRawToBronze    = "step_raw_to_bronze"
	StepBronzeToSilver = "step_bronze_to_silver"
	StepSilverToGold   = "step_silver_to_gold"
)
