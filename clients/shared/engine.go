package shared

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/destination/ddl"
	"github.com/artie-labs/medallion/lib/destination/dml"
	"github.com/artie-labs/medallion/lib/destination/types"
	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/telemetry/metrics/base"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// Input is a batch as seen by transformations: a query over the engine.
type Input struct {
	Query string
	// staging is the table holding the rows of a row batch, nil for relation batches.
	staging sql.TableIdentifier
}

// Engine synchronizes batches into target tables.
type Engine struct {
	logger        *slog.Logger
	dest          destination.Destination
	metrics       base.Client
	rowsPerInsert int
	tableConfigs  types.TableConfigMap

	mu      sync.Mutex
	commits map[string]int64
}

func NewEngine(logger *slog.Logger, dest destination.Destination, metricsClient base.Client, rowsPerInsert int) *Engine {
	return &Engine{
		logger:        logger,
		dest:          dest,
		metrics:       metricsClient,
		rowsPerInsert: max(rowsPerInsert, 1),
		commits:       make(map[string]int64),
	}
}

func (e *Engine) Destination() destination.Destination {
	return e.dest
}

func (e *Engine) stagingTableID(target Target) sql.TableIdentifier {
	return target.TableID.WithTable(ddl.StagingTableName(target.TableID.Table(), time.Now()))
}

func (e *Engine) tags(target Target) map[string]string {
	return map[string]string{
		"database": target.TableID.Database(),
		"table":    target.TableID.Table(),
		"engine":   string(e.dest.Kind()),
	}
}

// EnsureDatabase creates the namespace of the target unless it exists.
func (e *Engine) EnsureDatabase(ctx context.Context, target Target) error {
	if err := e.dest.EnsureDatabase(ctx, target.TableID, target.DatabaseLocation); err != nil {
		e.logger.Error("Failed to create database",
			slog.String("database", target.TableID.Database()),
			slog.String("location", target.DatabaseLocation),
			slog.Any("err", err),
		)
		return types.NewTableError(types.DatabaseCreation, target.TableID.Database(), err)
	}

	e.logger.Info("Database is ready", slog.String("database", target.TableID.Database()), slog.String("location", target.DatabaseLocation))
	return nil
}

// Sweep drops expired staging tables left behind next to the target.
func (e *Engine) Sweep(ctx context.Context, target Target) error {
	return Sweep(ctx, e.logger, e.dest, target.TableID)
}

// Stage makes [batch] available as a query. Row batches are loaded into a staging table that [Engine.Release] drops.
func (e *Engine) Stage(ctx context.Context, target Target, batch source.Batch) (Input, error) {
	if batch.IsRelation() {
		return Input{Query: batch.Relation}, nil
	}

	stagingID := e.stagingTableID(target)
	input := Input{Query: "SELECT * FROM " + stagingID.FullyQualifiedName(), staging: stagingID}
	if err := LoadRows(ctx, e.logger, e.dest, stagingID, batch.Columns, batch.Rows, e.rowsPerInsert); err != nil {
		e.Release(ctx, input)
		return Input{}, fmt.Errorf("failed to stage batch %d: %w", batch.ID, err)
	}

	return input, nil
}

func (e *Engine) Release(ctx context.Context, input Input) {
	if input.staging == nil {
		return
	}

	if err := ddl.DropStagingTable(ctx, e.logger, e.dest, e.dest.Dialect(), input.staging); err != nil {
		e.logger.Warn("Failed to drop staging table, it will be swept once it expires", slog.Any("err", err))
	}
}

// EnsureTable creates the target with [cols] if it is absent, otherwise it adds the columns it is missing.
func (e *Engine) EnsureTable(ctx context.Context, target Target, cols *columns.Columns) (types.TableHandle, error) {
	handle, err := e.ensureTable(ctx, target, cols)
	if err != nil {
		e.logger.Error("Failed to create table", slog.String("table", target.Name()), slog.String("path", target.Path), slog.Any("err", err))
		return types.TableHandle{}, types.NewTableError(types.TableCreation, target.Name(), err)
	}

	return handle, nil
}

func (e *Engine) ensureTable(ctx context.Context, target Target, cols *columns.Columns) (types.TableHandle, error) {
	tableConfig := e.tableConfigs.Get(target.TableID)
	if tableConfig == nil {
		existing, err := DescribeTable(ctx, e.dest, target.TableID)
		if err != nil {
			return types.TableHandle{}, err
		}

		if existing == nil {
			if err = e.createTable(ctx, target, cols); err != nil {
				return types.TableHandle{}, err
			}

			tableConfig = types.NewTableConfig(columns.NewColumns(cols.GetColumns()...))
			e.tableConfigs.Add(target.TableID, tableConfig)
			return types.TableHandle{TableID: target.TableID, Columns: tableConfig.Columns(), Created: true}, nil
		}

		tableConfig = types.NewTableConfig(existing)
		e.tableConfigs.Add(target.TableID, tableConfig)
	}

	if missing := tableConfig.MissingColumns(cols); len(missing) > 0 {
		if err := AlterTableAddColumns(ctx, e.logger, e.dest, target.TableID, missing); err != nil {
			// The table may have changed underneath us, describe it again next time.
			e.tableConfigs.Remove(target.TableID)
			return types.TableHandle{}, err
		}
		tableConfig.AddColumns(missing...)
	}

	return types.TableHandle{TableID: target.TableID, Columns: tableConfig.Columns()}, nil
}

func (e *Engine) createTable(ctx context.Context, target Target, cols *columns.Columns) error {
	args := sql.CreateTableArgs{
		Comment: fmt.Sprintf(constants.TableCommentFormat, target.TableID.Database(), target.TableID.Table()),
	}

	if e.dest.Kind() == constants.Databricks {
		args.Location = target.Path
		args.PartitionBy = target.PartitionBy
	} else if len(target.PartitionBy) > 0 {
		e.logger.Info("Partitioning is not supported by this engine, ignoring partition_by",
			slog.String("engine", string(e.dest.Kind())), slog.Any("partitionBy", target.PartitionBy))
	}

	if err := CreateTable(ctx, e.logger, e.dest, target.TableID, cols.GetColumns(), args); err != nil {
		return err
	}

	if err := e.dest.RegisterTable(ctx, target.TableID, target.Path); err != nil {
		return err
	}

	e.logger.Info("Created table", slog.String("table", target.Name()), slog.String("path", target.Path))
	return nil
}

// Merge reconciles the rows of [staged] into the target bound by [handle].
func (e *Engine) Merge(ctx context.Context, target Target, handle types.TableHandle, staged sql.TableIdentifier, cols []string) (types.MergeOutcome, error) {
	arg := dml.MergeArgument{
		TableID:     handle.TableID,
		SubQuery:    staged.FullyQualifiedName(),
		PrimaryKeys: target.PrimaryKeys,
		SequenceBy:  target.SequenceBy,
		Columns:     cols,
		SoftDelete:  target.SoftDelete(),
		DestKind:    e.dest.Kind(),
		Dialect:     e.dest.Dialect(),
	}

	logAttrs := []any{
		slog.String("table", target.Name()),
		slog.Any("primaryKey", target.PrimaryKeys),
		slog.String("mergeCondition", arg.MatchCondition()),
		slog.Any("sequenceBy", target.SequenceBy),
		slog.String("applyAsDelete", target.ApplyAsDelete),
	}
	e.logger.Info("Table merge starting", logAttrs...)

	start := time.Now()
	outcome, err := e.dest.Merge(ctx, arg)
	if err != nil {
		e.logger.Error("Table merge failed", append(logAttrs, slog.Any("err", err))...)
		return types.MergeOutcome{}, types.NewTableError(types.Merge, target.Name(), err)
	}

	tags := e.tags(target)
	e.metrics.Timing("merge.duration", time.Since(start), tags)
	for op, count := range map[string]int64{"insert": outcome.Inserted, "update": outcome.Updated, "delete": outcome.Deleted} {
		opTags := map[string]string{"op": op}
		for key, value := range tags {
			opTags[key] = value
		}
		e.metrics.Count("merge.rows", count, opTags)
	}

	e.logger.Info("Table merged successfully",
		slog.String("table", target.Name()),
		slog.Int64("inserted", outcome.Inserted),
		slog.Int64("updated", outcome.Updated),
		slog.Int64("deleted", outcome.Deleted),
		slog.Duration("duration", time.Since(start)),
	)
	return outcome, nil
}

// lastCommit returns the highest commit stamp stored in the target, zero if the table or the column is missing.
func (e *Engine) lastCommit(ctx context.Context, target Target) int64 {
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", e.dest.Dialect().QuoteIdentifier(constants.CommitColumn), target.TableID.FullyQualifiedName())
	stamp, err := sql.QueryInt64(ctx, e.dest, query)
	if err != nil {
		e.logger.Debug("Target has no commit stamps yet", slog.String("table", target.Name()), slog.Any("err", err))
		return 0
	}

	return stamp
}

// nextCommit returns the stamp for the next merge into the target. Stamps follow the clock but always increase
// per table, even across restarts with a clock that went backwards.
func (e *Engine) nextCommit(ctx context.Context, target Target) int64 {
	key := target.TableID.FullyQualifiedName()
	e.mu.Lock()
	last, isOk := e.commits[key]
	e.mu.Unlock()
	if !isOk {
		last = e.lastCommit(ctx, target)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	stamp := max(time.Now().UnixMicro(), last+1, e.commits[key]+1)
	e.commits[key] = stamp
	return stamp
}

// Sync merges the rows produced by [query], whose columns are [names], into the target. The rows are
// deduplicated into a staging table first, which also fixes the column types the target is created with.
func (e *Engine) Sync(ctx context.Context, target Target, query string, names []string) (types.MergeOutcome, error) {
	stagingQuery, _, err := BuildStagingQuery(e.dest.Dialect(), target, query, names, e.nextCommit(ctx, target))
	if err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to build staging query: %w", err)
	}

	stagingID := e.stagingTableID(target)
	createQuery := e.dest.Dialect().BuildCreateTableAsQuery(stagingID, stagingQuery)
	e.logger.Debug("Staging merge rows", slog.String("query", createQuery))
	if _, err = e.dest.ExecContext(ctx, createQuery); err != nil {
		return types.MergeOutcome{}, fmt.Errorf("failed to stage rows for %q: %w", target.Name(), err)
	}
	defer e.Release(ctx, Input{staging: stagingID})

	stagedCols, err := DescribeTable(ctx, e.dest, stagingID)
	if err != nil {
		return types.MergeOutcome{}, err
	}
	if stagedCols == nil {
		return types.MergeOutcome{}, fmt.Errorf("staging table %q has no columns", stagingID.FullyQualifiedName())
	}

	handle, err := e.EnsureTable(ctx, target, stagedCols)
	if err != nil {
		return types.MergeOutcome{}, err
	}

	return e.Merge(ctx, target, handle, stagingID, stagedCols.Names())
}
