package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/artie-labs/medallion/lib/config/constants"
)

const (
	defaultTriggerIntervalSeconds = 30

	triggerIntervalSecondsStart = 1
	triggerIntervalSecondsEnd   = 6 * 60 * 60

	rowsPerInsertStart = 1
	// SQLite caps bound parameters at 32766 per statement.
	rowsPerInsertEnd = 10_000
)

type Sentry struct {
	DSN string `yaml:"dsn"`
}

type Reporting struct {
	Sentry *Sentry `yaml:"sentry"`
}

type Config struct {
	Output constants.DestinationKind `yaml:"outputSource"`

	// TriggerIntervalSeconds is how often continuous pipelines look for new micro-batches.
	TriggerIntervalSeconds int `yaml:"triggerIntervalSeconds"`
	// StagingRowsPerInsert bounds the number of rows written per staging INSERT statement.
	StagingRowsPerInsert int `yaml:"stagingRowsPerInsert"`

	SQLite     *SQLite     `yaml:"sqlite,omitempty"`
	Postgres   *Postgres   `yaml:"postgres,omitempty"`
	Databricks *Databricks `yaml:"databricks,omitempty"`
	S3         *S3Settings `yaml:"s3,omitempty"`
	Kafka      *Kafka      `yaml:"kafka,omitempty"`

	Reporting Reporting `yaml:"reporting"`

	Telemetry struct {
		Metrics struct {
			Provider constants.ExporterKind `yaml:"provider"`
			Settings map[string]any         `yaml:"settings,omitempty"`
		}
	}
}

func readFileToConfig(pathToConfig string) (*Config, error) {
	bytes, err := os.ReadFile(pathToConfig)
	if err != nil {
		return nil, err
	}

	var config Config
	if err = yaml.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}

	if config.TriggerIntervalSeconds == 0 {
		config.TriggerIntervalSeconds = defaultTriggerIntervalSeconds
	}

	if config.StagingRowsPerInsert == 0 {
		config.StagingRowsPerInsert = constants.DefaultRowsPerInsert
	}

	return &config, nil
}

func betweenEq(start, end, number int) bool {
	return number >= start && number <= end
}

// Validate checks the output source and the settings it needs. Pipeline settings documents are validated separately.
func (c Config) Validate() error {
	if !betweenEq(triggerIntervalSecondsStart, triggerIntervalSecondsEnd, c.TriggerIntervalSeconds) {
		return fmt.Errorf("config is invalid, trigger interval is outside of our range, seconds: %d, expected start: %d, end: %d",
			c.TriggerIntervalSeconds, triggerIntervalSecondsStart, triggerIntervalSecondsEnd)
	}

	if !betweenEq(rowsPerInsertStart, rowsPerInsertEnd, c.StagingRowsPerInsert) {
		return fmt.Errorf("config is invalid, staging rows per insert is outside of our range: %d, expected start: %d, end: %d",
			c.StagingRowsPerInsert, rowsPerInsertStart, rowsPerInsertEnd)
	}

	if !constants.IsValidDestination(c.Output) {
		return fmt.Errorf("config is invalid, output: %q is invalid", c.Output)
	}

	switch c.Output {
	case constants.SQLite:
		if c.SQLite == nil {
			return fmt.Errorf("config is invalid, sqlite settings are missing")
		}
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("config is invalid: %w", err)
		}
	case constants.Postgres:
		if c.Postgres == nil {
			return fmt.Errorf("config is invalid, postgres settings are missing")
		}
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("config is invalid: %w", err)
		}
	case constants.Databricks:
		if c.Databricks == nil {
			return fmt.Errorf("config is invalid, databricks settings are missing")
		}
		if err := c.Databricks.Validate(); err != nil {
			return fmt.Errorf("config is invalid: %w", err)
		}
	}

	return nil
}
