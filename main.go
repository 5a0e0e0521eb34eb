package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artie-labs/medallion/clients/shared"
	"github.com/artie-labs/medallion/clients/utils"
	"github.com/artie-labs/medallion/lib/awslib"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/logger"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/storage"
	"github.com/artie-labs/medallion/lib/telemetry/metrics"
	"github.com/artie-labs/medallion/processes/pipeline"
)

func main() {
	// Parse args into settings.
	cfg, err := config.LoadSettings(os.Args[1:], true)
	if err != nil {
		logger.Fatal("Failed to initialize config", slog.Any("err", err))
	}

	// Initialize default logger
	_logger, cleanUpHandlers := logger.NewLogger(cfg.VerboseLogging, cfg.Config.Reporting.Sentry)
	slog.SetDefault(_logger)
	defer cleanUpHandlers()

	// Settings documents are resolved before anything is opened.
	var pipelines []*settings.PipelineConfig
	for _, path := range cfg.SettingsFilePaths {
		pipelineCfg, err := settings.ResolveFile(path, cfg.Stage)
		if err != nil {
			logger.Fatal("Failed to resolve settings document", slog.String("path", path), slog.Any("err", err))
		}
		pipelines = append(pipelines, pipelineCfg)
	}

	slog.Info("Config is loaded",
		slog.String("outputSource", string(cfg.Config.Output)),
		slog.Int("triggerIntervalSeconds", cfg.Config.TriggerIntervalSeconds),
		slog.Int("stagingRowsPerInsert", cfg.Config.StagingRowsPerInsert),
		slog.Int("pipelines", len(pipelines)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsClient := metrics.LoadExporter(cfg.Config, _logger)
	dest, err := utils.LoadDestination(ctx, _logger, cfg.Config)
	if err != nil {
		logger.Fatal("Unable to load destination", slog.Any("err", err))
	}
	defer dest.Close()

	var s3Client storage.S3API
	if cfg.Config.S3 != nil {
		awsCfg, err := awslib.NewConfig(ctx, cfg.Config.S3)
		if err != nil {
			logger.Fatal("Failed to load AWS config", slog.Any("err", err))
		}
		s3Client = awslib.NewS3Client(awsCfg, cfg.Config.S3.Endpoint)
	}

	engine := shared.NewEngine(_logger, dest, metricsClient, cfg.Config.StagingRowsPerInsert)
	runner := pipeline.NewRunner(_logger, engine, storage.NewMux(s3Client), metricsClient, pipeline.Options{
		Kafka:           cfg.Config.Kafka,
		TriggerInterval: time.Duration(cfg.Config.TriggerIntervalSeconds) * time.Second,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	for _, pipelineCfg := range pipelines {
		group.Go(func() error {
			return runner.Run(groupCtx, pipelineCfg)
		})
	}

	if err = group.Wait(); err != nil {
		slog.Error("Pipeline run failed", slog.Any("err", err))
		cleanUpHandlers()
		os.Exit(1)
	}

	slog.Info("All pipelines completed")
}
