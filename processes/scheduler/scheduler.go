package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/telemetry/metrics/base"
)

const DefaultInterval = 30 * time.Second

type Mode string

const (
	// OneShot runs the single batch of a bounded reader.
	OneShot Mode = "one_shot"
	// CatchUp drains every batch that is currently available and stops.
	CatchUp Mode = "catch_up"
	// Continuous drains available batches on every trigger until the context is cancelled.
	Continuous Mode = "continuous"
)

func ModeFor(reader source.Reader, streaming bool) Mode {
	switch {
	case streaming:
		return Continuous
	case reader.Bounded():
		return OneShot
	default:
		return CatchUp
	}
}

// Handler processes one batch, the reader commits the batch once it returns without error.
type Handler func(ctx context.Context, batch source.Batch) error

type Scheduler struct {
	logger   *slog.Logger
	metrics  base.Client
	reader   source.Reader
	handler  Handler
	interval time.Duration
	tags     map[string]string
}

func New(logger *slog.Logger, metricsClient base.Client, reader source.Reader, handler Handler, interval time.Duration, tags map[string]string) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		logger:   logger,
		metrics:  metricsClient,
		reader:   reader,
		handler:  handler,
		interval: interval,
		tags:     tags,
	}
}

func (s *Scheduler) Run(ctx context.Context, mode Mode) error {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("runID", runID), slog.String("mode", string(mode)))
	logger.Info("Starting scheduler")

	switch mode {
	case OneShot:
		_, err := s.runNext(ctx, logger)
		return err
	case CatchUp:
		_, err := s.drain(ctx, logger)
		return err
	case Continuous:
		return s.runContinuous(ctx, logger)
	default:
		return fmt.Errorf("unsupported scheduler mode %q", mode)
	}
}

func (s *Scheduler) runContinuous(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if rewinder, isOk := s.reader.(source.Rewinder); isOk {
			rewinder.Rewind()
		}

		count, err := s.drain(ctx, logger)
		if err != nil {
			return err
		}
		logger.Debug("Trigger completed", slog.Int("batches", count))

		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped", slog.Any("reason", context.Cause(ctx)))
			return nil
		case <-ticker.C:
		}
	}
}

// drain processes batches until the reader has caught up. Cancellation is only observed between batches.
func (s *Scheduler) drain(ctx context.Context, logger *slog.Logger) (int, error) {
	var count int
	for ctx.Err() == nil {
		processed, err := s.runNext(ctx, logger)
		if err != nil {
			return count, err
		}

		if !processed {
			break
		}
		count++
	}

	return count, nil
}

func (s *Scheduler) runNext(ctx context.Context, logger *slog.Logger) (bool, error) {
	batch, ok, err := s.reader.Next(ctx)
	if err != nil {
		if interrupted(ctx, err) {
			// Stopping while the source blocks is a regular shutdown, nothing was read.
			logger.Info("Source read interrupted by shutdown", slog.Any("err", err))
			return false, nil
		}
		return false, err
	}

	if !ok {
		logger.Debug("No batch available")
		return false, nil
	}

	return true, s.process(context.WithoutCancel(ctx), logger, batch)
}

func (s *Scheduler) process(ctx context.Context, logger *slog.Logger, batch source.Batch) error {
	logger = logger.With(slog.Int64("batchID", batch.ID))
	start := time.Now()
	if err := s.handler(ctx, batch); err != nil {
		s.metrics.Incr("batch.failed", s.tags)
		logger.Error("Batch failed", slog.Any("err", err))
		return err
	}

	if err := s.reader.Commit(ctx, batch); err != nil {
		s.metrics.Incr("batch.failed", s.tags)
		return fmt.Errorf("failed to commit batch %d: %w", batch.ID, err)
	}

	s.metrics.Incr("batch.processed", s.tags)
	s.metrics.Timing("batch.duration", time.Since(start), s.tags)
	logger.Info("Batch processed", slog.Duration("duration", time.Since(start)))
	return nil
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
