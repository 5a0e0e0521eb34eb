package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artie-labs/medallion/lib/checkpoint"
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/parquetutil"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/storage"
	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

// inferenceSampleFiles bounds the eager read used to infer a schema.
const inferenceSampleFiles = 10

// Reader streams csv, json and parquet files from a local directory or an S3 prefix.
// Every call to [Reader.Next] picks up the files that were not processed yet.
type Reader struct {
	logger     *slog.Logger
	fs         storage.FileSystem
	spec       settings.SourceSpec
	root       storage.Location
	csvOptions csvOptions
	cols       *columns.Columns
	checkpoint *checkpoint.Store
	maxFiles   int
	nextID     int64
	pending    map[string]bool
}

func NewReader(ctx context.Context, logger *slog.Logger, fs storage.FileSystem, spec settings.SourceSpec, store *checkpoint.Store) (*Reader, error) {
	if !spec.Format.IsFile() {
		return nil, source.NewSourceError("open", spec.Path, fmt.Errorf("format %q is not a file format", spec.Format))
	}

	root, err := storage.ParseLocation(spec.Path)
	if err != nil {
		return nil, source.NewSourceError("open", spec.Path, err)
	}

	maxFiles, err := spec.IntOption("maxFilesPerTrigger", 0)
	if err != nil {
		return nil, source.NewSourceError("open", spec.Path, err)
	}

	opts, err := newCSVOptions(spec)
	if err != nil {
		return nil, source.NewSourceError("open", spec.Path, err)
	}

	r := &Reader{
		logger:     logger.With(slog.String("source", spec.Path), slog.String("format", string(spec.Format))),
		fs:         fs,
		spec:       spec,
		root:       root,
		csvOptions: opts,
		checkpoint: store,
		maxFiles:   maxFiles,
		nextID:     store.NextBatchID(),
		pending:    make(map[string]bool),
	}

	if r.cols, err = r.resolveSchema(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("Opened file source", slog.Any("columns", r.cols.Names()), slog.Int64("nextBatchId", r.nextID))
	return r, nil
}

func (r *Reader) resolveSchema(ctx context.Context) (*columns.Columns, error) {
	if r.spec.Format == constants.Parquet {
		files, err := r.fs.List(ctx, r.root)
		if err != nil {
			return nil, source.NewSourceError("describe", r.spec.Path, err)
		}

		if len(files) == 0 {
			return nil, source.NewSourceError("describe", r.spec.Path, fmt.Errorf("no parquet files found"))
		}

		contents, err := r.fs.Read(ctx, files[0].Location)
		if err != nil {
			return nil, source.NewSourceError("describe", r.spec.Path, err)
		}

		cols, err := parquetutil.ReadSchema(contents)
		if err != nil {
			return nil, source.NewSourceError("describe", files[0].Location.String(), err)
		}
		return cols, nil
	}

	if r.spec.Schema != nil {
		cols, err := columns.FromSparkSchema(r.spec.Schema)
		if err != nil {
			return nil, source.NewSourceError("describe", r.spec.Path, fmt.Errorf("%w: %w", source.ErrSchemaMalformed, err))
		}
		return cols, nil
	}

	if !r.spec.InferSchema() {
		return nil, source.NewSourceError("describe", r.spec.Path, source.ErrSchemaMissing)
	}

	return r.inferSchema(ctx)
}

// inferSchema does one bounded read over the first files.
func (r *Reader) inferSchema(ctx context.Context) (*columns.Columns, error) {
	files, err := r.fs.List(ctx, r.root)
	if err != nil {
		return nil, source.NewSourceError("infer schema of", r.spec.Path, err)
	}

	if len(files) > inferenceSampleFiles {
		files = files[:inferenceSampleFiles]
	}

	switch r.spec.Format {
	case constants.CSV:
		var names []string
		kinds := make(map[string]typing.KindDetails)
		for _, file := range files {
			contents, err := r.fs.Read(ctx, file.Location)
			if err != nil {
				return nil, source.NewSourceError("infer schema of", file.Location.String(), err)
			}

			header, rows, err := decodeCSV(contents, r.csvOptions, nil)
			if err != nil {
				return nil, source.NewSourceError("infer schema of", file.Location.String(), err)
			}

			for _, name := range header {
				if _, isOk := kinds[name]; !isOk {
					names = append(names, name)
					kinds[name] = typing.Invalid
				}
			}

			for _, row := range rows {
				for name, value := range row {
					if str, isOk := value.(string); isOk {
						kinds[name] = typing.Widen(kinds[name], typing.InferFromString(str))
					}
				}
			}
		}

		if len(names) == 0 {
			return nil, source.NewSourceError("infer schema of", r.spec.Path, fmt.Errorf("no columns found"))
		}

		cols := columns.NewColumns()
		for _, name := range names {
			kd := kinds[name]
			if kd == typing.Invalid {
				kd = typing.String
			}
			cols.AddColumn(columns.NewColumn(name, kd))
		}
		return cols, nil
	default:
		var sample []map[string]any
		for _, file := range files {
			contents, err := r.fs.Read(ctx, file.Location)
			if err != nil {
				return nil, source.NewSourceError("infer schema of", file.Location.String(), err)
			}

			rows, err := decodeJSON(contents)
			if err != nil {
				return nil, source.NewSourceError("infer schema of", file.Location.String(), err)
			}
			sample = append(sample, rows...)
		}

		cols := source.InferColumns(sample)
		if cols.Len() == 0 {
			return nil, source.NewSourceError("infer schema of", r.spec.Path, fmt.Errorf("no columns found"))
		}
		return cols, nil
	}
}

func (r *Reader) Schema() *columns.Columns {
	return r.cols
}

// Bounded is false, new files can land under the path at any time.
func (r *Reader) Bounded() bool {
	return false
}

func (r *Reader) Next(ctx context.Context) (source.Batch, bool, error) {
	files, err := r.fs.List(ctx, r.root)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return source.Batch{}, false, nil
		}
		return source.Batch{}, false, source.NewSourceError("list", r.spec.Path, err)
	}

	var selected []storage.File
	for _, file := range files {
		path := file.Location.String()
		if r.checkpoint.IsProcessed(path) || r.pending[path] {
			continue
		}

		selected = append(selected, file)
		if r.maxFiles > 0 && len(selected) == r.maxFiles {
			break
		}
	}

	if len(selected) == 0 {
		return source.Batch{}, false, nil
	}

	batch := source.Batch{ID: r.nextID, Columns: r.cols}
	for _, file := range selected {
		rows, err := r.readFile(ctx, file.Location)
		if err != nil {
			return source.Batch{}, false, err
		}

		batch.Rows = append(batch.Rows, rows...)
		batch.Files = append(batch.Files, file.Location.String())
	}

	for _, file := range batch.Files {
		r.pending[file] = true
	}

	r.nextID++
	r.logger.Debug("Read micro-batch", slog.Int64("batchId", batch.ID), slog.Int("files", len(batch.Files)), slog.Int("rows", batch.Len()))
	return batch, true, nil
}

func (r *Reader) readFile(ctx context.Context, loc storage.Location) ([]map[string]any, error) {
	contents, err := r.fs.Read(ctx, loc)
	if err != nil {
		return nil, source.NewSourceError("read", loc.String(), err)
	}

	var rows []map[string]any
	switch r.spec.Format {
	case constants.CSV:
		var names []string
		if r.spec.Schema != nil {
			names = r.cols.Names()
		}
		_, rows, err = decodeCSV(contents, r.csvOptions, names)
	case constants.JSON:
		rows, err = decodeJSON(contents)
	case constants.Parquet:
		rows, err = parquetutil.ReadRows(ctx, contents)
	}
	if err != nil {
		return nil, source.NewSourceError("decode", loc.String(), err)
	}

	casted, err := source.CastRows(r.cols, rows)
	if err != nil {
		return nil, source.NewSourceError("decode", loc.String(), err)
	}

	return casted, nil
}

func (r *Reader) Commit(ctx context.Context, batch source.Batch) error {
	if err := r.checkpoint.Commit(ctx, batch.ID, batch.Files); err != nil {
		return err
	}

	for _, file := range batch.Files {
		delete(r.pending, file)
	}

	return nil
}

func (r *Reader) Close() error {
	return nil
}
