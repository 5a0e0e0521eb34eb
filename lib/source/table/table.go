package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artie-labs/medallion/lib/checkpoint"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/sql"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// Catalog is implemented by destinations, relations are evaluated by the same engine that hosts the targets.
type Catalog interface {
	sql.Querier

	Dialect() sql.Dialect
	// RelationForPath returns a query selecting every row of the table stored at [path].
	RelationForPath(ctx context.Context, path string) (string, error)
	// DescribeRelation returns the columns a query produces without running it.
	DescribeRelation(ctx context.Context, relation string) (*columns.Columns, error)
}

// Reader yields relations instead of rows. Tables written by the engine carry [constants.CommitColumn], so a
// table source only yields the rows merged after the last committed batch. Other tables and query sources
// produce a full snapshot on every drain.
type Reader struct {
	logger     *slog.Logger
	catalog    Catalog
	relation   string
	cols       *columns.Columns
	stamped    bool
	position   int64
	checkpoint *checkpoint.Store
	nextID     int64
	served     bool
}

func NewReader(ctx context.Context, logger *slog.Logger, catalog Catalog, spec settings.SourceSpec, store *checkpoint.Store) (*Reader, error) {
	var relation string
	switch {
	case spec.IsQuery():
		relation = strings.TrimRight(strings.TrimSpace(spec.Query), "; \n\t")
	case spec.Format == constants.Delta, spec.Format == constants.Table:
		var err error
		if relation, err = catalog.RelationForPath(ctx, spec.Path); err != nil {
			return nil, source.NewSourceError("open", spec.Path, err)
		}
	default:
		return nil, source.NewSourceError("open", spec.Path, fmt.Errorf("format %q is not a table format", spec.Format))
	}

	described, err := catalog.DescribeRelation(ctx, relation)
	if err != nil {
		return nil, source.NewSourceError("describe", relation, err)
	}

	cols := columns.NewColumns(described.GetColumns()...)
	stamped := !spec.IsQuery() && cols.DeleteColumn(constants.CommitColumn)
	if !spec.IsQuery() && !stamped {
		logger.Info("Table has no commit stamps, every drain reads the whole table", slog.String("relation", relation))
	}

	logger.Info("Opened table source",
		slog.String("relation", relation),
		slog.Any("columns", cols.Names()),
		slog.Int64("position", store.SourceVersion()),
	)
	return &Reader{
		logger:     logger,
		catalog:    catalog,
		relation:   relation,
		cols:       cols,
		stamped:    stamped,
		position:   store.SourceVersion(),
		checkpoint: store,
		nextID:     store.NextBatchID(),
	}, nil
}

func (r *Reader) Schema() *columns.Columns {
	return r.cols
}

func (r *Reader) Bounded() bool {
	return true
}

// Next returns at most one batch until [Reader.Rewind] is called.
func (r *Reader) Next(ctx context.Context) (source.Batch, bool, error) {
	if r.served {
		return source.Batch{}, false, nil
	}

	r.served = true
	if !r.stamped {
		return r.batch(r.relation, 0), true, nil
	}

	dialect := r.catalog.Dialect()
	commit := dialect.QuoteIdentifier(constants.CommitColumn)
	latest, err := sql.QueryInt64(ctx, r.catalog, fmt.Sprintf("SELECT MAX(%s) FROM (%s) AS upstream_", commit, r.relation))
	if err != nil {
		return source.Batch{}, false, source.NewSourceError("read", r.relation, err)
	}

	if latest <= r.position {
		r.logger.Debug("Table has no new commits", slog.Int64("position", r.position))
		return source.Batch{}, false, nil
	}

	relation := fmt.Sprintf("SELECT %s FROM (%s) AS upstream_ WHERE %s > %d AND %s <= %d",
		strings.Join(sql.QuoteColumns(r.cols.Names(), dialect), ", "), r.relation, commit, r.position, commit, latest)
	return r.batch(relation, latest), true, nil
}

func (r *Reader) batch(relation string, version int64) source.Batch {
	batch := source.Batch{ID: r.nextID, Columns: r.cols, Relation: relation, Version: version}
	r.nextID++
	return batch
}

// Rewind is called by continuous schedulers before every trigger.
func (r *Reader) Rewind() {
	r.served = false
}

func (r *Reader) Commit(ctx context.Context, batch source.Batch) error {
	if batch.Version == 0 {
		return r.checkpoint.Commit(ctx, batch.ID, nil)
	}

	if err := r.checkpoint.CommitVersion(ctx, batch.ID, batch.Version); err != nil {
		return err
	}

	r.position = max(r.position, batch.Version)
	return nil
}

func (r *Reader) Close() error {
	return nil
}
