package utils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artie-labs/medallion/clients/databricks"
	"github.com/artie-labs/medallion/clients/postgres"
	"github.com/artie-labs/medallion/clients/sqlite"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination"
)

// LoadDestination opens the table engine configured as the output source.
func LoadDestination(ctx context.Context, logger *slog.Logger, cfg config.Config) (destination.Destination, error) {
	switch cfg.Output {
	case constants.SQLite:
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite settings are missing")
		}
		return sqlite.LoadStore(ctx, logger, *cfg.SQLite)
	case constants.Postgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres settings are missing")
		}
		return postgres.LoadStore(ctx, logger, *cfg.Postgres)
	case constants.Databricks:
		if cfg.Databricks == nil {
			return nil, fmt.Errorf("databricks settings are missing")
		}
		return databricks.LoadStore(ctx, logger, *cfg.Databricks)
	}

	return nil, fmt.Errorf("invalid output source: %q", cfg.Output)
}
