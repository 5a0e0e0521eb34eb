package metrics

import (
	"log/slog"

	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/telemetry/metrics/base"
	"github.com/artie-labs/medallion/lib/telemetry/metrics/datadog"
)

func LoadExporter(cfg config.Config, logger *slog.Logger) base.Client {
	kind := cfg.Telemetry.Metrics.Provider
	switch kind {
	case constants.Datadog:
		statsClient, err := datadog.NewDatadogClient(cfg.Telemetry.Metrics.Settings, logger)
		if err != nil {
			logger.Error("Metrics client error", slog.Any("err", err), slog.Any("provider", kind))
			return NullMetricsProvider{}
		}

		logger.Info("Metrics client loaded", slog.Any("provider", kind))
		return statsClient
	case "":
		logger.Info("No metrics exporter configured, skipping...")
	default:
		logger.Info("Invalid exporter kind passed in, skipping...", slog.Any("exporterKind", kind))
	}

	return NullMetricsProvider{}
}
