package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artie-labs/medallion/clients/shared"
	"github.com/artie-labs/medallion/lib/checkpoint"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/kafkalib"
	"github.com/artie-labs/medallion/lib/retry"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/source/file"
	"github.com/artie-labs/medallion/lib/source/table"
	"github.com/artie-labs/medallion/lib/storage"
	"github.com/artie-labs/medallion/lib/telemetry/metrics/base"
	"github.com/artie-labs/medallion/lib/transform"
	"github.com/artie-labs/medallion/processes/scheduler"
)

// Runner executes resolved pipelines against one destination.
type Runner struct {
	logger   *slog.Logger
	engine   *shared.Engine
	fs       storage.FileSystem
	metrics  base.Client
	kafka    config.Kafka
	interval time.Duration
}

type Options struct {
	Kafka *config.Kafka
	// TriggerInterval is how often continuous pipelines look for new batches.
	TriggerInterval time.Duration
}

func NewRunner(logger *slog.Logger, engine *shared.Engine, fs storage.FileSystem, metricsClient base.Client, opts Options) *Runner {
	r := &Runner{
		logger:   logger,
		engine:   engine,
		fs:       fs,
		metrics:  metricsClient,
		interval: opts.TriggerInterval,
	}

	if r.interval <= 0 {
		r.interval = scheduler.DefaultInterval
	}

	if opts.Kafka != nil {
		r.kafka = *opts.Kafka
	}

	return r
}

// Run executes every step of [pipeline]. Batch pipelines run their steps in order, streaming pipelines run them
// concurrently since every step writes a different table.
func (r *Runner) Run(ctx context.Context, pipeline *settings.PipelineConfig) error {
	logger := r.logger.With(slog.String("pipeline", pipeline.Name()), slog.String("typeProcessing", string(pipeline.TypeProcessing)))
	if !pipeline.IsActive() {
		logger.Info("Pipeline is inactive, skipping")
		return nil
	}

	steps := pipeline.Steps()
	if len(steps) == 0 {
		return fmt.Errorf("pipeline %q has no steps", pipeline.Name())
	}

	logger.Info("Starting pipeline", slog.Int("steps", len(steps)), slog.String("version", pipeline.Version))
	if !pipeline.IsStreaming() {
		for _, step := range steps {
			if err := r.RunStep(ctx, logger, pipeline, step); err != nil {
				return err
			}
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, step := range steps {
		group.Go(func() error {
			return r.RunStep(groupCtx, logger, pipeline, step)
		})
	}

	return group.Wait()
}

// RunStep reads the source of [step] and merges every batch into its target.
func (r *Runner) RunStep(ctx context.Context, logger *slog.Logger, pipeline *settings.PipelineConfig, step *settings.StepConfig) error {
	target := shared.NewTarget(r.engine.Destination(), step.Target)
	logger = logger.With(slog.String("step", step.Name), slog.String("target", target.Name()))

	if err := r.engine.EnsureDatabase(ctx, target); err != nil {
		return err
	}

	if err := r.engine.Sweep(ctx, target); err != nil {
		logger.Warn("Failed to sweep staging tables", slog.Any("err", err))
	}

	store, err := checkpoint.Open(ctx, r.fs, step.Target.Options.CheckpointLocation)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for %q: %w", target.Name(), err)
	}

	reader, err := r.openReader(ctx, logger, pipeline.IsStreaming(), step.Source, store)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer reader.Close()

	mode := scheduler.ModeFor(reader, pipeline.IsStreaming())
	tags := map[string]string{
		"pipeline": pipeline.Name(),
		"step":     step.Name,
		"engine":   string(r.engine.Destination().Kind()),
	}

	handler := func(ctx context.Context, batch source.Batch) error {
		return r.processBatch(ctx, logger, target, step.Target, batch)
	}

	return scheduler.New(logger, r.metrics, reader, handler, r.interval, tags).Run(ctx, mode)
}

// openReader opens the source of a step. Streaming steps reading a table wait for the upstream step to create it.
func (r *Runner) openReader(ctx context.Context, logger *slog.Logger, streaming bool, spec settings.SourceSpec, store *checkpoint.Store) (source.Reader, error) {
	if !streaming || !isTableSource(spec) {
		return r.newReader(ctx, logger, spec, store)
	}

	// The upstream step may not have created its table yet.
	retryCfg := retry.NewRetryConfig(retry.NewRetryConfigArgs{
		Interval:    r.interval,
		MaxAttempts: math.MaxInt,
		Logger:      logger.With(slog.String("waitingFor", spec.Path)),
	})
	reader, err := retry.WithRetries(ctx, retryCfg, func(_ int, _ error) (source.Reader, error) {
		return r.newReader(ctx, logger, spec, store)
	})
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return nil, ctxErr
	}

	return reader, err
}

func isTableSource(spec settings.SourceSpec) bool {
	return !spec.IsQuery() && (spec.Format == constants.Delta || spec.Format == constants.Table)
}

func (r *Runner) newReader(ctx context.Context, logger *slog.Logger, spec settings.SourceSpec, store *checkpoint.Store) (source.Reader, error) {
	switch {
	case spec.IsQuery(), spec.Format == constants.Delta, spec.Format == constants.Table:
		return table.NewReader(ctx, logger, r.engine.Destination(), spec, store)
	case spec.Format == constants.Kafka:
		return kafkalib.NewReader(ctx, logger, spec, r.kafka, store)
	case spec.Format.IsFile():
		return file.NewReader(ctx, logger, r.fs, spec, store)
	default:
		return nil, source.NewSourceError("open", spec.Path, fmt.Errorf("unsupported format %q", spec.Format))
	}
}

func (r *Runner) processBatch(ctx context.Context, logger *slog.Logger, target shared.Target, spec settings.TargetSpec, batch source.Batch) error {
	logger = logger.With(slog.Int64("batchID", batch.ID), slog.String("mode", string(target.Mode)))
	if !batch.IsRelation() && batch.Len() == 0 {
		logger.Info("Batch is empty, nothing to merge")
		return nil
	}

	input, err := r.engine.Stage(ctx, target, batch)
	if err != nil {
		return err
	}
	defer r.engine.Release(ctx, input)

	dest := r.engine.Destination()
	result, err := transform.Apply(ctx, dest, dest.Dialect(), input.Query, spec.SQLTransformations, spec.DropColumns)
	if err != nil {
		logger.Error("Failed to apply transformations", slog.Any("groups", transform.SortedGroups(spec.SQLTransformations)), slog.Any("err", err))
		return err
	}

	outcome, err := r.engine.Sync(ctx, target, result.Query, result.Columns)
	if err != nil {
		return err
	}

	logger.Info("Batch merged",
		slog.Int("rows", batch.Len()),
		slog.Int64("inserted", outcome.Inserted),
		slog.Int64("updated", outcome.Updated),
		slog.Int64("deleted", outcome.Deleted),
	)
	return nil
}
