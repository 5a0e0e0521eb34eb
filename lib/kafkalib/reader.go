package kafkalib

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/artie-labs/medallion/lib/checkpoint"
	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/cryptography"
	"github.com/artie-labs/medallion/lib/retry"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/source"
	"github.com/artie-labs/medallion/lib/typing"
	"github.com/artie-labs/medallion/lib/typing/columns"
)

var jsonAPI = jsoniter.Config{UseNumber: true}.Froze()

const (
	defaultMaxOffsetsPerTrigger = 10_000
	defaultPollTimeout          = 2 * time.Second
)

// Client is the subset of [kgo.Client] the reader needs.
type Client interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitOffsetsSync(ctx context.Context, uncommitted map[string]map[int32]kgo.EpochOffset, onDone func(*kgo.Client, *kmsg.OffsetCommitRequest, *kmsg.OffsetCommitResponse, error))
	Close()
}

type Options struct {
	Brokers              []string
	Topics               []string
	GroupID              string
	StartingOffsets      string
	MaxOffsetsPerTrigger int
	PollTimeout          time.Duration
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OptionsFromSpec reads the kafka source options, brokers fall back to the engine configuration.
// Without an explicit group id, the group is derived from the checkpoint location so restarts resume.
func OptionsFromSpec(spec settings.SourceSpec, cfg config.Kafka, checkpointLocation string) (Options, error) {
	opts := Options{
		Brokers:         splitList(spec.Option("kafka.bootstrap.servers")),
		Topics:          splitList(spec.Option("subscribe")),
		GroupID:         spec.Option("kafka.group.id"),
		StartingOffsets: cmp.Or(spec.Option("startingOffsets"), "earliest"),
	}

	if len(opts.Brokers) == 0 {
		opts.Brokers = cfg.BootstrapServers()
	}

	if len(opts.Brokers) == 0 {
		return Options{}, fmt.Errorf("kafka.bootstrap.servers is not set")
	}

	if len(opts.Topics) == 0 {
		return Options{}, fmt.Errorf("subscribe is not set")
	}

	if opts.StartingOffsets != "earliest" && opts.StartingOffsets != "latest" {
		return Options{}, fmt.Errorf("startingOffsets must be earliest or latest, got %q", opts.StartingOffsets)
	}

	if opts.GroupID == "" {
		opts.GroupID = "medallion-" + cryptography.ShortHash(cmp.Or(checkpointLocation, strings.Join(opts.Topics, ",")), 12)
	}

	var err error
	if opts.MaxOffsetsPerTrigger, err = spec.IntOption("maxOffsetsPerTrigger", defaultMaxOffsetsPerTrigger); err != nil {
		return Options{}, err
	}

	if opts.MaxOffsetsPerTrigger <= 0 {
		return Options{}, fmt.Errorf("maxOffsetsPerTrigger must be positive, got %d", opts.MaxOffsetsPerTrigger)
	}

	pollTimeoutMs, err := spec.IntOption("kafkaConsumer.pollTimeoutMs", int(defaultPollTimeout.Milliseconds()))
	if err != nil {
		return Options{}, err
	}
	opts.PollTimeout = time.Duration(pollTimeoutMs) * time.Millisecond
	return opts, nil
}

// NewClient joins the consumer group. Offsets are only committed by [Reader.Commit].
func NewClient(ctx context.Context, conn Connection, opts Options) (*kgo.Client, error) {
	clientOpts, err := conn.ClientOptions(ctx, opts.Brokers)
	if err != nil {
		return nil, err
	}

	resetOffset := kgo.NewOffset().AtStart()
	if opts.StartingOffsets == "latest" {
		resetOffset = kgo.NewOffset().AtEnd()
	}

	clientOpts = append(clientOpts,
		kgo.ConsumerGroup(opts.GroupID),
		kgo.ConsumeTopics(opts.Topics...),
		kgo.ConsumeResetOffset(resetOffset),
		kgo.DisableAutoCommit(),
	)

	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return client, nil
}

// envelopeColumns is the schema of a kafka source without an explicit value schema.
func envelopeColumns() *columns.Columns {
	return columns.NewColumns(
		columns.NewColumn("key", typing.String),
		columns.NewColumn("value", typing.String),
		columns.NewColumn("topic", typing.String),
		columns.NewColumn("partition", typing.Integer),
		columns.NewColumn("offset", typing.Integer),
		columns.NewColumn("timestamp", typing.Timestamp),
	)
}

// Reader consumes micro-batches of records. With an explicit schema, record values are JSON objects decoded
// into rows, otherwise each record becomes one envelope row.
type Reader struct {
	logger     *slog.Logger
	client     Client
	opts       Options
	cols       *columns.Columns
	decode     bool
	hwm        *HighWaterMark
	checkpoint *checkpoint.Store
	nextID     int64
	// commitRetry covers offset commits that race a consumer group rebalance.
	commitRetry retry.RetryConfig
}

func NewReader(ctx context.Context, logger *slog.Logger, spec settings.SourceSpec, cfg config.Kafka, store *checkpoint.Store) (*Reader, error) {
	opts, err := OptionsFromSpec(spec, cfg, store.Location())
	if err != nil {
		return nil, source.NewSourceError("open", spec.Option("subscribe"), err)
	}

	conn, err := NewConnection(spec, cfg)
	if err != nil {
		return nil, source.NewSourceError("open", spec.Option("subscribe"), err)
	}

	client, err := NewClient(ctx, conn, opts)
	if err != nil {
		return nil, source.NewSourceError("open", spec.Option("subscribe"), err)
	}

	reader, err := newReader(logger, client, spec, opts, store)
	if err != nil {
		client.Close()
		return nil, err
	}

	return reader, nil
}

func newReader(logger *slog.Logger, client Client, spec settings.SourceSpec, opts Options, store *checkpoint.Store) (*Reader, error) {
	r := &Reader{
		logger:     logger.With(slog.Any("topics", opts.Topics), slog.String("groupID", opts.GroupID)),
		client:     client,
		opts:       opts,
		cols:       envelopeColumns(),
		hwm:        NewHighWaterMark(),
		checkpoint: store,
		nextID:     store.NextBatchID(),
		commitRetry: retry.NewRetryConfig(retry.NewRetryConfigArgs{
			JitterBaseMs:   100,
			JitterMaxMs:    2_000,
			MaxAttempts:    5,
			IsRetryableErr: IsRetryableErr,
			Logger:         logger,
		}),
	}

	if spec.Schema != nil {
		cols, err := columns.FromSparkSchema(spec.Schema)
		if err != nil {
			return nil, source.NewSourceError("describe", strings.Join(opts.Topics, ","), fmt.Errorf("%w: %w", source.ErrSchemaMalformed, err))
		}
		r.cols = cols
		r.decode = true
	}

	return r, nil
}

func (r *Reader) Schema() *columns.Columns {
	return r.cols
}

func (r *Reader) Bounded() bool {
	return false
}

func (r *Reader) poll(ctx context.Context, limit int) ([]*kgo.Record, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.opts.PollTimeout)
	defer cancel()

	fetches := r.client.PollRecords(pollCtx, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := fetchErrors(fetches); err != nil {
		return nil, NewFetchMessageError(err)
	}

	var records []*kgo.Record
	fetches.EachPartition(func(partition kgo.FetchTopicPartition) {
		r.hwm.SetHWM(partition.Topic, partition.Partition, partition.HighWatermark)
		for _, record := range partition.Records {
			records = append(records, record)
			r.hwm.Advance(record.Topic, record.Partition, record.Offset+1)
		}
	})

	return records, nil
}

// Next polls until [Options.MaxOffsetsPerTrigger] records were read, a poll comes back empty or every
// assigned partition reached its high watermark.
func (r *Reader) Next(ctx context.Context) (source.Batch, bool, error) {
	var records []*kgo.Record
	for len(records) < r.opts.MaxOffsetsPerTrigger {
		polled, err := r.poll(ctx, r.opts.MaxOffsetsPerTrigger-len(records))
		if err != nil {
			return source.Batch{}, false, source.NewSourceError("read", strings.Join(r.opts.Topics, ","), err)
		}

		records = append(records, polled...)
		if len(polled) == 0 || r.hwm.CaughtUp() {
			break
		}
	}

	if len(records) == 0 {
		return source.Batch{}, false, nil
	}

	rows, err := r.rows(records)
	if err != nil {
		return source.Batch{}, false, err
	}

	batch := source.Batch{ID: r.nextID, Columns: r.cols, Rows: rows, Offsets: map[string]map[int32]int64{}}
	for _, record := range records {
		if _, ok := batch.Offsets[record.Topic]; !ok {
			batch.Offsets[record.Topic] = map[int32]int64{}
		}
		batch.Offsets[record.Topic][record.Partition] = max(batch.Offsets[record.Topic][record.Partition], record.Offset+1)
	}

	r.nextID++
	r.logger.Debug("Read micro-batch", slog.Int64("batchId", batch.ID), slog.Int("records", len(records)), slog.Any("lag", r.hwm.Lag()))
	return batch, true, nil
}

func (r *Reader) rows(records []*kgo.Record) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if !r.decode {
			var key any
			if record.Key != nil {
				key = string(record.Key)
			}
			var value any
			if record.Value != nil {
				value = string(record.Value)
			}

			rows = append(rows, map[string]any{
				"key":       key,
				"value":     value,
				"topic":     record.Topic,
				"partition": int64(record.Partition),
				"offset":    record.Offset,
				"timestamp": record.Timestamp.UTC(),
			})
			continue
		}

		// Tombstones carry no row.
		if record.Value == nil {
			continue
		}

		var row map[string]any
		if err := jsonAPI.Unmarshal(record.Value, &row); err != nil {
			return nil, source.NewSourceError("decode", fmt.Sprintf("%s/%d@%d", record.Topic, record.Partition, record.Offset), err)
		}
		rows = append(rows, row)
	}

	if !r.decode {
		return rows, nil
	}

	casted, err := source.CastRows(r.cols, rows)
	if err != nil {
		return nil, source.NewSourceError("decode", strings.Join(r.opts.Topics, ","), err)
	}
	return casted, nil
}

// Commit stores the batch offsets in the consumer group, then advances the checkpoint.
func (r *Reader) Commit(ctx context.Context, batch source.Batch) error {
	offsetsToCommit := make(map[string]map[int32]kgo.EpochOffset, len(batch.Offsets))
	for topic, partitions := range batch.Offsets {
		offsetsToCommit[topic] = make(map[int32]kgo.EpochOffset, len(partitions))
		for partition, offset := range partitions {
			// -1 lets the broker skip epoch validation.
			offsetsToCommit[topic][partition] = kgo.EpochOffset{Epoch: -1, Offset: offset}
		}
	}

	if len(offsetsToCommit) > 0 {
		err := r.commitRetry.WithRetries(ctx, func(_ int, _ error) error {
			return r.commitOffsets(ctx, offsetsToCommit)
		})
		if err != nil {
			return fmt.Errorf("failed to commit offsets for batch %d: %w", batch.ID, err)
		}
	}

	return r.checkpoint.Commit(ctx, batch.ID, nil)
}

func (r *Reader) commitOffsets(ctx context.Context, offsets map[string]map[int32]kgo.EpochOffset) error {
	var commitError error
	r.client.CommitOffsetsSync(ctx, offsets, func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, resp *kmsg.OffsetCommitResponse, err error) {
		if err != nil {
			commitError = err
			return
		}

		if resp == nil {
			return
		}

		for _, topic := range resp.Topics {
			for _, partition := range topic.Partitions {
				if partition.ErrorCode != 0 {
					commitError = fmt.Errorf("topic %q partition %d: %w", topic.Topic, partition.Partition, kerr.ErrorForCode(partition.ErrorCode))
				}
			}
		}
	})
	return commitError
}

func (r *Reader) Close() error {
	r.client.Close()
	return nil
}
